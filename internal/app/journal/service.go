package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fakhriadk/calmbot/internal/domain"
	"github.com/fakhriadk/calmbot/internal/observability"
)

var (
	ErrEmptyContent = errors.New("journal entry is empty")
	ErrLimitReached = errors.New("free journal limit reached")
)

const defaultListLimit = 20

// Service holds the logic of reading and writing journal entries
type Service struct {
	store domain.JournalStore
	now   func() time.Time

	// limit check and append run under the user's lock
	mu    sync.Mutex
	users map[domain.UserID]*sync.Mutex
}

// NewService creates a journal service from a JournalStore
func NewService(store domain.JournalStore) *Service {
	return &Service{
		store: store,
		now:   time.Now,
		users: make(map[domain.UserID]*sync.Mutex),
	}
}

// GetUserJournal returns the last `limit` journal entries for a user, newest
// first. If limit <= 0, a reasonable default value is used.
func (s *Service) GetUserJournal(
	ctx context.Context,
	userID domain.UserID,
	limit int,
) ([]*domain.JournalEntry, error) {

	if limit <= 0 {
		limit = defaultListLimit
	}

	entries, err := s.store.ListJournalEntriesByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	return entries, nil
}

// AddEntry stores a new entry. ent is the caller's entitlement: free users
// are capped at domain.FreeJournalLimit entries.
func (s *Service) AddEntry(
	ctx context.Context,
	userID domain.UserID,
	content string,
	ent domain.UserEntitlement,
) (*domain.JournalEntry, error) {
	log := observability.LoggerFromContext(ctx).With("user_id", userID)

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.store.CountJournalEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count journal entries: %w", err)
	}
	if !ent.CanAddJournalEntry(existing) {
		log.Info("journal entry rejected, free limit reached", "existing", existing)
		return nil, ErrLimitReached
	}

	entry := &domain.JournalEntry{
		ID:        domain.JournalEntryID(uuid.NewString()),
		UserID:    userID,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.store.AppendJournalEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("append journal entry: %w", err)
	}

	log.Info("journal entry added", "entry_id", entry.ID, "premium", ent.Premium)
	return entry, nil
}

func (s *Service) userLock(userID domain.UserID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.users[userID]
	if !ok {
		l = &sync.Mutex{}
		s.users[userID] = l
	}
	return l
}
