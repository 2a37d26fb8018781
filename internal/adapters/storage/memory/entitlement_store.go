package memory

import (
	"context"
	"sync"

	"github.com/fakhriadk/calmbot/internal/domain"
)

type EntitlementStore struct {
	mu   sync.RWMutex
	ents map[domain.UserID]domain.UserEntitlement
}

func NewEntitlementStore() *EntitlementStore {
	return &EntitlementStore{ents: make(map[domain.UserID]domain.UserEntitlement)}
}

// GetEntitlement returns the zero (free) entitlement for unknown users.
func (s *EntitlementStore) GetEntitlement(_ context.Context, userID domain.UserID) (domain.UserEntitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ents[userID], nil
}

func (s *EntitlementStore) SetEntitlement(_ context.Context, userID domain.UserID, ent domain.UserEntitlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ents[userID] = ent
	return nil
}
