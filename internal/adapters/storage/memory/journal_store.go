package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/fakhriadk/calmbot/internal/domain"
)

// JournalStore is a simple in-memory implementation of domain.JournalStore.
// It is NOT persistent and is only suitable for development / local mode.
type JournalStore struct {
	mu       sync.RWMutex
	entries  map[domain.JournalEntryID]*domain.JournalEntry
	byUserID map[domain.UserID][]domain.JournalEntryID
}

func NewJournalStore() *JournalStore {
	return &JournalStore{
		entries:  make(map[domain.JournalEntryID]*domain.JournalEntry),
		byUserID: make(map[domain.UserID][]domain.JournalEntryID),
	}
}

// AppendJournalEntry saves a new journal entry.
func (s *JournalStore) AppendJournalEntry(_ context.Context, entry *domain.JournalEntry) error {
	if entry == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = domain.JournalEntryID(uuid.NewString())
	}

	c := *entry
	s.entries[c.ID] = &c
	s.byUserID[c.UserID] = append(s.byUserID[c.UserID], c.ID)

	return nil
}

// ListJournalEntriesByUser returns up to limit entries for a user, newest
// first. If limit <= 0, returns all.
func (s *JournalStore) ListJournalEntriesByUser(
	_ context.Context,
	userID domain.UserID,
	limit int,
) ([]*domain.JournalEntry, error) {

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUserID[userID]
	if len(ids) == 0 {
		return []*domain.JournalEntry{}, nil
	}

	if limit <= 0 || limit > len(ids) {
		limit = len(ids)
	}

	out := make([]*domain.JournalEntry, 0, limit)
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		if e, ok := s.entries[ids[i]]; ok {
			c := *e
			out = append(out, &c)
		}
	}

	return out, nil
}

func (s *JournalStore) CountJournalEntries(_ context.Context, userID domain.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUserID[userID]), nil
}
