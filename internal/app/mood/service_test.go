package mood_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakhriadk/calmbot/internal/adapters/storage/memory"
	"github.com/fakhriadk/calmbot/internal/app/mood"
	"github.com/fakhriadk/calmbot/internal/domain"
)

func TestLogMood_Validation(t *testing.T) {
	svc := mood.NewService(memory.NewMoodStore(), memory.NewJournalStore())
	ctx := context.Background()

	for _, v := range []int{0, 6, -1} {
		_, err := svc.LogMood(ctx, "u1", "2025-01-01", v)
		assert.ErrorIs(t, err, mood.ErrInvalidMood)
	}

	_, err := svc.LogMood(ctx, "u1", "01/01/2025", 3)
	assert.ErrorIs(t, err, mood.ErrInvalidDate)
}

func TestLogMood_SameDayReplaces(t *testing.T) {
	svc := mood.NewService(memory.NewMoodStore(), memory.NewJournalStore())
	ctx := context.Background()

	_, err := svc.LogMood(ctx, "u1", "2025-01-01", 2)
	require.NoError(t, err)
	_, err = svc.LogMood(ctx, "u1", "2025-01-01", 4)
	require.NoError(t, err)

	moods, err := svc.Recent(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, moods, 1)
	assert.Equal(t, 4, moods[0].Value)
}

func TestStatistics(t *testing.T) {
	journals := memory.NewJournalStore()
	svc := mood.NewService(memory.NewMoodStore(), journals)
	ctx := context.Background()

	stats, err := svc.Statistics(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, stats.JournalEntries)
	assert.Empty(t, stats.Moods)

	_, err = svc.LogMood(ctx, "u1", "2025-01-01", 2)
	require.NoError(t, err)
	_, err = svc.LogMood(ctx, "u1", "2025-01-02", 4)
	require.NoError(t, err)
	require.NoError(t, journals.AppendJournalEntry(ctx, &domain.JournalEntry{UserID: "u1", Content: "x"}))

	stats, err = svc.Statistics(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.JournalEntries)
	assert.Len(t, stats.Moods, 2)
	assert.InDelta(t, 3.0, stats.AverageMood, 0.001)
}
