package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduler_RunsImmediatelyThenOnInterval(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(zap.NewNop())
	s.Add(Job{Name: "count", Interval: time.Second, Run: func(ctx context.Context) {
		runs.Add(1)
	}})

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 500*time.Millisecond, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2500*time.Millisecond, 50*time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_StopWaitsForRunningJobs(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	var jobErr atomic.Value

	s := NewScheduler(zap.NewNop())
	s.Add(Job{Name: "slow", Interval: time.Hour, Run: func(ctx context.Context) {
		close(started)
		time.Sleep(300 * time.Millisecond)
		if err := ctx.Err(); err != nil {
			jobErr.Store(err)
		}
		finished.Store(true)
	}})
	s.Start()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.True(t, finished.Load(), "Stop returned before the job finished")
	assert.Nil(t, jobErr.Load(), "job context was cancelled while it was still running")
}

func TestScheduler_StopTimesOut(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})

	s := NewScheduler(zap.NewNop())
	s.Add(Job{Name: "stubborn", Interval: time.Hour, Run: func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}})
	s.Start()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("job context was not cancelled after the shutdown deadline")
	}
}
