package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunnerValidation(t *testing.T) {
	noop := func(context.Context) error { return nil }

	tests := []struct {
		name string
		cfg  Config
		fn   Func
	}{
		{name: "missing name", cfg: Config{Interval: time.Second}, fn: noop},
		{name: "zero interval", cfg: Config{Name: "x"}, fn: noop},
		{name: "negative interval", cfg: Config{Name: "x", Interval: -time.Second}, fn: noop},
		{name: "nil func", cfg: Config{Name: "x", Interval: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunner(tt.cfg, tt.fn)
			assert.Error(t, err)
		})
	}
}

func TestRunAtStart(t *testing.T) {
	var runs atomic.Int32
	r, err := NewRunner(Config{Name: "at-start", Interval: time.Hour, RunAtStart: true}, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)

	r.Start()
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	r.Stop()
	assert.Equal(t, int32(1), runs.Load())
}

func TestRunsOnInterval(t *testing.T) {
	var runs atomic.Int32
	r, err := NewRunner(Config{Name: "ticker", Interval: 10 * time.Millisecond}, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)

	r.Start()
	defer r.Stop()
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestErrorsAndPanicsDoNotStopLoop(t *testing.T) {
	var runs atomic.Int32
	r, err := NewRunner(Config{Name: "flaky", Interval: 10 * time.Millisecond, RunAtStart: true}, func(context.Context) error {
		switch runs.Add(1) {
		case 1:
			return errors.New("boom")
		case 2:
			panic("worse")
		}
		return nil
	})
	require.NoError(t, err)

	r.Start()
	defer r.Stop()
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestRunOncePanicBecomesError(t *testing.T) {
	r, err := NewRunner(Config{Name: "panicky", Interval: time.Hour}, func(context.Context) error {
		panic("nil map")
	})
	require.NoError(t, err)

	err = r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestRunOnceNoOverlap(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	r, err := NewRunner(Config{Name: "slow", Interval: time.Hour}, func(context.Context) error {
		close(entered)
		<-release
		return nil
	})
	require.NoError(t, err)

	done := make(chan error)
	go func() { done <- r.RunOnce(context.Background()) }()
	<-entered

	assert.ErrorIs(t, r.RunOnce(context.Background()), ErrAlreadyRunning)

	close(release)
	assert.NoError(t, <-done)
}

func TestRunOnceTimeout(t *testing.T) {
	r, err := NewRunner(Config{Name: "bounded", Interval: time.Hour, Timeout: 10 * time.Millisecond}, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	assert.ErrorIs(t, r.RunOnce(context.Background()), context.DeadlineExceeded)
}

func TestStopCancelsInFlightRun(t *testing.T) {
	entered := make(chan struct{})
	var cancelled atomic.Bool
	r, err := NewRunner(Config{Name: "long", Interval: time.Hour, RunAtStart: true}, func(ctx context.Context) error {
		close(entered)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})
	require.NoError(t, err)

	r.Start()
	<-entered
	r.Stop()
	assert.True(t, cancelled.Load())
}

func TestStopWithoutStart(t *testing.T) {
	r, err := NewRunner(Config{Name: "idle", Interval: time.Hour}, func(context.Context) error { return nil })
	require.NoError(t, err)

	r.Stop()
	r.Stop()
	assert.Equal(t, "idle", r.Name())
}
