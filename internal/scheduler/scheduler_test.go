package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd_Validation(t *testing.T) {
	s := New(nil)

	assert.Error(t, s.Add(Job{Name: "no-run", Interval: time.Second}))
	assert.Error(t, s.Add(Job{Name: "no-interval", Run: func(context.Context) {}}))
	assert.NoError(t, s.Add(Job{Name: "ok", Interval: time.Second, Run: func(context.Context) {}}))
}

func TestStart_RunsImmediatelyAndRepeatedly(t *testing.T) {
	s := New(nil)
	var runs atomic.Int32
	require.NoError(t, s.Add(Job{
		Name:     "tick",
		Interval: 10 * time.Millisecond,
		Run:      func(context.Context) { runs.Add(1) },
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestStart_InitialDelayCancelled(t *testing.T) {
	s := New(nil)
	var runs atomic.Int32
	require.NoError(t, s.Add(Job{
		Name:         "late",
		Interval:     time.Millisecond,
		InitialDelay: time.Hour,
		Run:          func(context.Context) { runs.Add(1) },
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	assert.Equal(t, int32(0), runs.Load())
}

func TestRun_RecoversPanicAndAppliesTimeout(t *testing.T) {
	s := New(nil)

	assert.NotPanics(t, func() {
		s.run(context.Background(), Job{Name: "boom", Run: func(context.Context) { panic("boom") }})
	})

	var deadline time.Time
	s.run(context.Background(), Job{
		Name:    "bounded",
		Timeout: time.Minute,
		Run: func(ctx context.Context) {
			deadline, _ = ctx.Deadline()
		},
	})
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}
