package journal_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakhriadk/calmbot/internal/adapters/storage/memory"
	"github.com/fakhriadk/calmbot/internal/app/journal"
	"github.com/fakhriadk/calmbot/internal/domain"
)

func TestAddEntry_FreeLimit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewJournalStore()
	svc := journal.NewService(store)
	free := domain.UserEntitlement{}

	for i := 0; i < domain.FreeJournalLimit; i++ {
		_, err := svc.AddEntry(ctx, "u1", "entry", free)
		require.NoError(t, err)
	}

	_, err := svc.AddEntry(ctx, "u1", "one too many", free)
	assert.ErrorIs(t, err, journal.ErrLimitReached)

	entry, err := svc.AddEntry(ctx, "u1", "premium can write", domain.UserEntitlement{Premium: true})
	require.NoError(t, err)
	assert.Equal(t, "premium can write", entry.Content)

	n, err := store.CountJournalEntries(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.FreeJournalLimit+1, n)
}

func TestAddEntry_Empty(t *testing.T) {
	svc := journal.NewService(memory.NewJournalStore())

	_, err := svc.AddEntry(context.Background(), "u1", "   ", domain.UserEntitlement{})
	assert.ErrorIs(t, err, journal.ErrEmptyContent)
}

func TestGetUserJournal_NewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := journal.NewService(memory.NewJournalStore())
	premium := domain.UserEntitlement{Premium: true}

	for _, c := range []string{"first", "second", "third"} {
		_, err := svc.AddEntry(ctx, "u1", c, premium)
		require.NoError(t, err)
	}
	_, err := svc.AddEntry(ctx, "u2", "not mine", premium)
	require.NoError(t, err)

	entries, err := svc.GetUserJournal(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "third", entries[0].Content)
	assert.Equal(t, "second", entries[1].Content)
}

func TestAddEntry_ConcurrentFreeLimit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewJournalStore()
	svc := journal.NewService(store)

	const writers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		added   int
		limited int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddEntry(ctx, "u1", "entry", domain.UserEntitlement{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				added++
			case errors.Is(err, journal.ErrLimitReached):
				limited++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, domain.FreeJournalLimit, added)
	assert.Equal(t, writers-domain.FreeJournalLimit, limited)

	n, err := store.CountJournalEntries(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.FreeJournalLimit, n)
}
