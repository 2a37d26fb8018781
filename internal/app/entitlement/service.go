// Package entitlement resolves and changes the premium status of a user.
package entitlement

import (
	"context"
	"fmt"

	"github.com/fakhriadk/calmbot/internal/domain"
	"github.com/fakhriadk/calmbot/internal/observability"
)

type Service struct {
	store domain.EntitlementStore
}

func NewService(store domain.EntitlementStore) *Service {
	return &Service{store: store}
}

// Resolve returns the user's entitlement. Unknown users are free users.
func (s *Service) Resolve(ctx context.Context, userID domain.UserID) (domain.UserEntitlement, error) {
	ent, err := s.store.GetEntitlement(ctx, userID)
	if err != nil {
		return domain.UserEntitlement{}, fmt.Errorf("get entitlement: %w", err)
	}
	return ent, nil
}

// Upgrade marks the user as premium. There is no payment step.
func (s *Service) Upgrade(ctx context.Context, userID domain.UserID) (domain.UserEntitlement, error) {
	ent := domain.UserEntitlement{Premium: true}
	if err := s.store.SetEntitlement(ctx, userID, ent); err != nil {
		return domain.UserEntitlement{}, fmt.Errorf("set entitlement: %w", err)
	}
	observability.LoggerFromContext(ctx).Info("user upgraded to premium", "user_id", userID)
	return ent, nil
}
