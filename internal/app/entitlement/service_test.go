package entitlement_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakhriadk/calmbot/internal/adapters/storage/memory"
	"github.com/fakhriadk/calmbot/internal/app/entitlement"
)

func TestResolveAndUpgrade(t *testing.T) {
	ctx := context.Background()
	svc := entitlement.NewService(memory.NewEntitlementStore())

	ent, err := svc.Resolve(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ent.Premium)
	assert.True(t, ent.CanAddJournalEntry(2))
	assert.False(t, ent.CanAddJournalEntry(3))

	_, err = svc.Upgrade(ctx, "u1")
	require.NoError(t, err)

	ent, err = svc.Resolve(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ent.Premium)
	assert.True(t, ent.CanAddJournalEntry(100))

	other, err := svc.Resolve(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, other.Premium)
}
