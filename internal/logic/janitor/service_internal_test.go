package janitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skillcoder/podreplay/internal/infra/schedule"
	"github.com/skillcoder/podreplay/internal/logic/replay"
)

type fakeSweeper struct {
	mu      sync.Mutex
	filters []replay.SweepFilter
	err     error
	swept   chan struct{}
}

func (f *fakeSweeper) SweepCommand(_ context.Context, filter replay.SweepFilter) (*replay.SweepReport, error) {
	f.mu.Lock()
	f.filters = append(f.filters, filter)
	f.mu.Unlock()

	if f.swept != nil {
		f.swept <- struct{}{}
	}

	if f.err != nil {
		return nil, f.err
	}

	return &replay.SweepReport{ContainersRemoved: 1}, nil
}

func mustCron(t *testing.T, spec string) *schedule.Cron {
	t.Helper()

	c, err := schedule.Parse(spec, "")
	require.NoError(t, err)

	return c
}

func TestService_RunCommand(t *testing.T) {
	t.Parallel()

	sweeper := &fakeSweeper{swept: make(chan struct{})}
	s := New(slog.Default(), sweeper, mustCron(t, "*/5 * * * *"), 2*time.Hour)

	ticks := make(chan time.Time)

	var waits []time.Duration

	var mu sync.Mutex

	s.after = func(d time.Duration) <-chan time.Time {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()

		return ticks
	}

	ctx, cancel := context.WithCancel(t.Context())

	require.NoError(t, s.Start(ctx))
	<-s.Ready()

	for range 2 {
		ticks <- time.Now()
		<-sweeper.swept
	}

	cancel()
	require.NoError(t, s.Shutdown(t.Context()))

	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()

	require.Len(t, sweeper.filters, 2)
	require.Equal(t, replay.SweepFilter{OlderThan: 2 * time.Hour}, sweeper.filters[0])

	mu.Lock()
	defer mu.Unlock()

	for _, w := range waits {
		require.LessOrEqual(t, w, 5*time.Minute)
	}
}

func TestService_Ping(t *testing.T) {
	t.Parallel()

	s := New(slog.Default(), &fakeSweeper{}, mustCron(t, "0 * * * *"), time.Hour)

	require.ErrorIs(t, s.Ping(t.Context()), ErrNotReady)

	base := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.setLastSweepTime(base)
	close(s.ready)

	require.NoError(t, s.Ping(t.Context()))

	// Next occurrence after 10:30 is 11:00; with grace the sweep is overdue after 11:05.
	s.now = func() time.Time { return base.Add(40 * time.Minute) }
	require.ErrorIs(t, s.Ping(t.Context()), ErrSweepOverdue)
}

func TestService_SweepCommand_Error(t *testing.T) {
	t.Parallel()

	s := New(slog.Default(), &fakeSweeper{err: errors.New("daemon down")}, mustCron(t, "0 * * * *"), time.Hour)

	_, err := s.SweepCommand(t.Context())
	require.ErrorContains(t, err, "daemon down")
	require.False(t, s.getLastSweepTime().IsZero())
}

func TestService_ShutdownWithoutStart(t *testing.T) {
	t.Parallel()

	s := New(slog.Default(), &fakeSweeper{}, mustCron(t, "0 * * * *"), time.Hour)

	require.NoError(t, s.Shutdown(t.Context()))
	require.NoError(t, s.Start(t.Context()))
}
