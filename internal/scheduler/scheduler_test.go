package scheduler_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakhriadk/calmbot/internal/scheduler"
)

type countingReaper struct {
	calls atomic.Int32
	ttl   atomic.Int64
}

func (r *countingReaper) ReapIdle(ttl time.Duration) int {
	r.calls.Add(1)
	r.ttl.Store(int64(ttl))
	return 0
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := scheduler.New(&countingReaper{}, "not a schedule", time.Minute)
	assert.Error(t, s.Start())
	assert.False(t, s.IsRunning())
}

func TestScheduler_RunsReaper(t *testing.T) {
	r := &countingReaper{}
	s := scheduler.New(r, "@every 1s", 30*time.Minute)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.True(t, s.IsRunning())
	assert.Eventually(t, func() bool { return r.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, int64(30*time.Minute), r.ttl.Load())
}

func TestScheduler_RunOnce(t *testing.T) {
	r := &countingReaper{}
	scheduler.New(r, "@every 1h", time.Minute).RunOnce()
	assert.Equal(t, int32(1), r.calls.Load())
}
