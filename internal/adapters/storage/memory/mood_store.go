package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fakhriadk/calmbot/internal/domain"
)

// MoodStore keeps one snapshot per user and day.
type MoodStore struct {
	mu    sync.RWMutex
	moods map[string]*domain.MoodSnapshot
}

func NewMoodStore() *MoodStore {
	return &MoodStore{moods: make(map[string]*domain.MoodSnapshot)}
}

func (s *MoodStore) UpsertMood(_ context.Context, mood *domain.MoodSnapshot) error {
	if mood == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *mood
	s.moods[domain.MoodDocumentID(c.UserID, c.Date)] = &c
	return nil
}

func (s *MoodStore) LatestMood(ctx context.Context, userID domain.UserID) (*domain.MoodSnapshot, error) {
	list, err := s.ListMoods(ctx, userID, 1)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

// ListMoods returns the user's snapshots, newest first.
func (s *MoodStore) ListMoods(_ context.Context, userID domain.UserID, limit int) ([]*domain.MoodSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.MoodSnapshot
	for _, m := range s.moods {
		if m.UserID == userID {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
