// Package scheduler runs the periodic housekeeping of the API process.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fakhriadk/calmbot/internal/observability"
)

// Reaper stops idle sessions and reports how many it stopped.
type Reaper interface {
	ReapIdle(ttl time.Duration) int
}

// Scheduler tears down chat sessions nobody used for a while.
type Scheduler struct {
	cron     *cron.Cron
	reaper   Reaper
	ttl      time.Duration
	schedule string
}

// New creates a scheduler. schedule is any robfig/cron spec, e.g. "@every 5m".
func New(reaper Reaper, schedule string, ttl time.Duration) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		reaper:   reaper,
		ttl:      ttl,
		schedule: schedule,
	}
}

// Start registers the reap job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.RunOnce); err != nil {
		return fmt.Errorf("schedule session reaper %q: %w", s.schedule, err)
	}

	s.cron.Start()
	observability.Logger().Info("scheduler started", "schedule", s.schedule, "session_ttl", s.ttl.String())
	return nil
}

// RunOnce reaps idle sessions now.
func (s *Scheduler) RunOnce() {
	n := s.reaper.ReapIdle(s.ttl)
	observability.Logger().Debug("session reaper ran", "reaped", n)
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	observability.Logger().Info("scheduler stopped")
}

// IsRunning reports whether a job is registered.
func (s *Scheduler) IsRunning() bool {
	return len(s.cron.Entries()) > 0
}
