package jobs_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/invoicer/internal/jobs"
)

type sweeper struct {
	at  time.Time
	n   int64
	err error
}

func (s *sweeper) SweepAllOverdue(_ context.Context, now time.Time) (int64, error) {
	s.at = now
	return s.n, s.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOverdueSweep(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)

	t.Run("uses the clock", func(t *testing.T) {
		t.Parallel()
		sw := &sweeper{n: 3}
		err := jobs.OverdueSweep(sw, func() time.Time { return now }, discard())(context.Background())
		require.NoError(t, err)
		assert.Equal(t, now, sw.at)
	})

	t.Run("propagates failures", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		err := jobs.OverdueSweep(&sweeper{err: boom}, nil, discard())(context.Background())
		assert.ErrorIs(t, err, boom)
	})
}

func TestSchedulerAdd(t *testing.T) {
	t.Parallel()

	s := jobs.New(time.UTC, jobs.WithLogger(discard()))
	require.NoError(t, s.Add("sweep", "0 2 * * *", func(context.Context) error { return nil }))

	err := s.Add("broken", "not a schedule", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, jobs.ErrInvalidSchedule)
}

func TestSchedulerRunStopsWithContext(t *testing.T) {
	t.Parallel()

	s := jobs.New(nil, jobs.WithLogger(discard()))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
