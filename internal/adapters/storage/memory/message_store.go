package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fakhriadk/calmbot/internal/domain"
)

// MessageStore is an in-memory domain.MessageLog. Subscribers receive the
// full ordered log right away and again after every append.
type MessageStore struct {
	// deliverMu keeps deliveries in write order.
	deliverMu sync.Mutex

	mu       sync.RWMutex
	messages map[domain.UserID][]*domain.Message
	subs     map[domain.UserID]map[int]domain.MessageHandler
	nextSub  int
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[domain.UserID][]*domain.Message),
		subs:     make(map[domain.UserID]map[int]domain.MessageHandler),
	}
}

// AppendMessage stores a copy of msg. Writing an existing ID replaces it.
func (s *MessageStore) AppendMessage(ctx context.Context, userID domain.UserID, msg *domain.Message) error {
	if msg == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	c := *msg
	msgs := s.messages[userID]
	replaced := false
	for i, m := range msgs {
		if m.ID == c.ID {
			msgs[i] = &c
			replaced = true
			break
		}
	}
	if !replaced {
		msgs = append(msgs, &c)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	s.messages[userID] = msgs

	snapshot := s.snapshotLocked(userID)
	handlers := make([]domain.MessageHandler, 0, len(s.subs[userID]))
	for _, fn := range s.subs[userID] {
		handlers = append(handlers, fn)
	}
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(cloneAll(snapshot), nil)
	}
	return nil
}

// Subscribe registers fn and delivers the current log before returning.
func (s *MessageStore) Subscribe(ctx context.Context, userID domain.UserID, fn domain.MessageHandler) (domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	if s.subs[userID] == nil {
		s.subs[userID] = make(map[int]domain.MessageHandler)
	}
	s.subs[userID][id] = fn
	snapshot := s.snapshotLocked(userID)
	s.mu.Unlock()

	fn(snapshot, nil)

	var once sync.Once
	return domain.SubscriptionFunc(func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[userID], id)
			s.mu.Unlock()
		})
	}), nil
}

// Messages returns the stored log of a user, oldest first.
func (s *MessageStore) Messages(userID domain.UserID) []*domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(userID)
}

// Subscribers is the number of live subscriptions for a user.
func (s *MessageStore) Subscribers(userID domain.UserID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[userID])
}

func (s *MessageStore) snapshotLocked(userID domain.UserID) []*domain.Message {
	return cloneAll(s.messages[userID])
}

func cloneAll(msgs []*domain.Message) []*domain.Message {
	out := make([]*domain.Message, 0, len(msgs))
	for _, m := range msgs {
		c := *m
		out = append(out, &c)
	}
	return out
}
