package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakhriadk/calmbot/internal/adapters/storage/sqlite"
	"github.com/fakhriadk/calmbot/internal/domain"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "calmbot.db"), 20*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func waitFor(t *testing.T, ch <-chan []*domain.Message, n int) []*domain.Message {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case msgs := <-ch:
			if len(msgs) == n {
				return msgs
			}
		case <-deadline:
			t.Fatalf("no delivery with %d messages", n)
			return nil
		}
	}
}

func TestStore_Subscribe(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	deliveries := make(chan []*domain.Message, 16)
	sub, err := s.Subscribe(ctx, "u1", func(msgs []*domain.Message, err error) {
		if err == nil {
			deliveries <- msgs
		}
	})
	require.NoError(t, err)

	assert.Empty(t, waitFor(t, deliveries, 0))

	now := time.Now()
	require.NoError(t, s.AppendMessage(ctx, "u1", &domain.Message{ID: "m1", Author: domain.RoleUser, Text: "hi", CreatedAt: now}))
	require.NoError(t, s.AppendMessage(ctx, "u1", &domain.Message{ID: "m2", Author: domain.RoleAssistant, Text: "hello", CreatedAt: now.Add(time.Millisecond)}))
	require.NoError(t, s.AppendMessage(ctx, "u2", &domain.Message{ID: "m3", Author: domain.RoleUser, Text: "other user", CreatedAt: now}))

	msgs := waitFor(t, deliveries, 2)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, domain.RoleUser, msgs[0].Author)
	assert.Equal(t, "hello", msgs[1].Text)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Author)

	sub.Cancel()
	sub.Cancel()
}

func TestStore_AppendSameIDReplaces(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	msg := &domain.Message{ID: "m1", Author: domain.RoleUser, Text: "hi", CreatedAt: time.Now()}
	require.NoError(t, s.AppendMessage(ctx, "u1", msg))
	require.NoError(t, s.AppendMessage(ctx, "u1", msg))

	deliveries := make(chan []*domain.Message, 1)
	sub, err := s.Subscribe(ctx, "u1", func(msgs []*domain.Message, _ error) { deliveries <- msgs })
	require.NoError(t, err)
	defer sub.Cancel()

	assert.Len(t, <-deliveries, 1)
}

func TestStore_Moods(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	latest, err := s.LatestMood(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	now := time.Now()
	require.NoError(t, s.UpsertMood(ctx, &domain.MoodSnapshot{UserID: "u1", Value: 2, Date: "2025-01-01", CreatedAt: now}))
	require.NoError(t, s.UpsertMood(ctx, &domain.MoodSnapshot{UserID: "u1", Value: 4, Date: "2025-01-02", CreatedAt: now.Add(time.Second)}))
	require.NoError(t, s.UpsertMood(ctx, &domain.MoodSnapshot{UserID: "u1", Value: 5, Date: "2025-01-02", CreatedAt: now.Add(2 * time.Second)}))

	moods, err := s.ListMoods(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, moods, 2)
	assert.Equal(t, 5, moods[0].Value)

	latest, err = s.LatestMood(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, latest.Value)
}

func TestStore_JournalsAndEntitlements(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	now := time.Now()
	for i, c := range []string{"a", "b", "c"} {
		require.NoError(t, s.AppendJournalEntry(ctx, &domain.JournalEntry{
			ID:        domain.JournalEntryID(c),
			UserID:    "u1",
			Content:   c,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}))
	}

	n, err := s.CountJournalEntries(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entries, err := s.ListJournalEntriesByUser(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].Content)

	ent, err := s.GetEntitlement(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ent.Premium)

	require.NoError(t, s.SetEntitlement(ctx, "u1", domain.UserEntitlement{Premium: true}))
	ent, err = s.GetEntitlement(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ent.Premium)
}
