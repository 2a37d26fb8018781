package mood

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fakhriadk/calmbot/internal/domain"
	"github.com/fakhriadk/calmbot/internal/observability"
)

var (
	ErrInvalidMood = errors.New("mood value must be between 1 and 5")
	ErrInvalidDate = errors.New("mood date must be yyyy-mm-dd")
)

const (
	dateLayout        = "2006-01-02"
	statisticsHorizon = 30
)

// Statistics is the summary shown on the statistics page.
type Statistics struct {
	JournalEntries int                    `json:"journal_entries"`
	Moods          []*domain.MoodSnapshot `json:"moods"`
	AverageMood    float64                `json:"average_mood"`
}

type Service struct {
	moods    domain.MoodStore
	journals domain.JournalStore
	now      func() time.Time
}

func NewService(moods domain.MoodStore, journals domain.JournalStore) *Service {
	return &Service{moods: moods, journals: journals, now: time.Now}
}

// LogMood records the mood for date (yyyy-mm-dd, today when empty). Logging
// again for the same day replaces the earlier value.
func (s *Service) LogMood(ctx context.Context, userID domain.UserID, date string, value int) (*domain.MoodSnapshot, error) {
	if !domain.ValidMoodValue(value) {
		return nil, ErrInvalidMood
	}

	now := s.now()
	if date == "" {
		date = now.Format(dateLayout)
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	snap := &domain.MoodSnapshot{
		UserID:    userID,
		Value:     value,
		Date:      date,
		CreatedAt: now,
	}
	if err := s.moods.UpsertMood(ctx, snap); err != nil {
		return nil, fmt.Errorf("upsert mood: %w", err)
	}

	observability.LoggerFromContext(ctx).Info("mood logged",
		"user_id", userID,
		"date", date,
		"mood_value", value,
	)
	return snap, nil
}

// Recent returns up to limit snapshots, newest first.
func (s *Service) Recent(ctx context.Context, userID domain.UserID, limit int) ([]*domain.MoodSnapshot, error) {
	if limit <= 0 {
		limit = statisticsHorizon
	}
	moods, err := s.moods.ListMoods(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list moods: %w", err)
	}
	return moods, nil
}

func (s *Service) Statistics(ctx context.Context, userID domain.UserID) (*Statistics, error) {
	moods, err := s.Recent(ctx, userID, statisticsHorizon)
	if err != nil {
		return nil, err
	}

	count, err := s.journals.CountJournalEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count journal entries: %w", err)
	}

	stats := &Statistics{JournalEntries: count, Moods: moods}
	if len(moods) > 0 {
		sum := 0
		for _, m := range moods {
			sum += m.Value
		}
		stats.AverageMood = float64(sum) / float64(len(moods))
	}
	if stats.Moods == nil {
		stats.Moods = []*domain.MoodSnapshot{}
	}
	return stats, nil
}
