package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{}, zerolog.Nop())
	assert.Error(t, err)

	_, err = New(Options{Cron: "not a cron"}, zerolog.Nop())
	assert.Error(t, err)

	s, err := New(Options{Cron: "@daily"}, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestNextAlignedInterval(t *testing.T) {
	s, err := New(Options{Interval: time.Hour, AlignToStart: true}, zerolog.Nop())
	require.NoError(t, err)

	now := time.Date(2025, 5, 1, 10, 20, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 5, 1, 11, 0, 0, 0, time.UTC), s.Next(now))

	onBoundary := time.Date(2025, 5, 1, 11, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC), s.Next(onBoundary))
	assert.Equal(t, onBoundary, s.SlotStart(onBoundary.Add(3*time.Millisecond)))
}

func TestNextUnaligned(t *testing.T) {
	s, err := New(Options{Interval: 90 * time.Minute}, zerolog.Nop())
	require.NoError(t, err)

	now := time.Date(2025, 5, 1, 10, 20, 0, 0, time.UTC)
	assert.Equal(t, now.Add(90*time.Minute), s.Next(now))
	assert.Equal(t, now, s.SlotStart(now))
}

func TestNextCron(t *testing.T) {
	s, err := New(Options{Cron: "0 6 * * 1", Interval: time.Minute}, zerolog.Nop())
	require.NoError(t, err)

	// 2025-05-01 is a Thursday; the next Monday is 2025-05-05.
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 5, 5, 6, 0, 0, 0, time.UTC), s.Next(now))
}

func TestRunInvokesTickUntilCancelled(t *testing.T) {
	s, err := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context, time.Time) error {
			if calls.Add(1) >= 3 {
				cancel()
			}
			return errors.New("tick errors are only logged")
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestRunHonoursStartupDelayCancellation(t *testing.T) {
	s, err := New(Options{Interval: time.Hour, StartupDelay: time.Hour}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = s.Run(ctx, func(context.Context, time.Time) error {
		t.Fatal("tick must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
