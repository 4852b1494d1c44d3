// Package janitor removes replays older than a TTL on a cron schedule, so
// sandboxes started through the API do not outlive their usefulness.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skillcoder/podreplay/internal/infra/schedule"
	"github.com/skillcoder/podreplay/internal/logic/replay"
)

// overdueGrace is how late a scheduled sweep may finish before Ping fails.
const overdueGrace = 5 * time.Minute

type Service struct {
	logger  *slog.Logger
	sweeper Sweeper
	cron    *schedule.Cron
	ttl     time.Duration

	ready      chan struct{}
	doneCh     chan struct{}
	started    atomic.Bool
	inShutdown atomic.Bool

	mu            sync.RWMutex
	lastSweepTime time.Time

	now   func() time.Time
	after func(d time.Duration) <-chan time.Time
}

// New creates a janitor sweeping replays older than ttl on every occurrence
// of cron.
func New(
	logger *slog.Logger,
	sweeper Sweeper,
	cron *schedule.Cron,
	ttl time.Duration,
) *Service {
	return &Service{
		logger:  logger.With("component", "janitor"),
		sweeper: sweeper,
		cron:    cron,
		ttl:     ttl,
		ready:   make(chan struct{}),
		doneCh:  make(chan struct{}),
		now:     time.Now,
		after:   time.After,
	}
}

func (s *Service) Start(ctx context.Context) error {
	if s.inShutdown.Load() {
		s.logger.InfoContext(ctx, "janitor is shutting down, skipping start")

		return nil
	}

	if !s.started.CompareAndSwap(false, true) {
		return nil
	}

	go s.RunCommand(ctx)

	return nil
}

// Name returns the name of the component
func (s *Service) Name() string {
	return "janitor"
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Ping fails when the last sweep is older than its scheduled successor plus
// a grace period.
func (s *Service) Ping(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ready:
	default:
		return ErrNotReady
	}

	last := s.getLastSweepTime()
	due := s.cron.NextAfter(last).Add(overdueGrace)

	if now := s.now(); now.After(due) {
		return fmt.Errorf("%w: last sweep at %s", ErrSweepOverdue, last.Format(time.RFC3339))
	}

	return nil
}

func (s *Service) Shutdown(ctx context.Context) error {
	if !s.inShutdown.CompareAndSwap(false, true) {
		return nil
	}

	if !s.started.Load() {
		return nil
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("shutdown context done before janitor loop exited: %w", ctx.Err())
	case <-s.doneCh:
		s.logger.InfoContext(ctx, "janitor loop exited")
	}

	return nil
}

// SweepCommand runs one TTL sweep.
func (s *Service) SweepCommand(ctx context.Context) (*replay.SweepReport, error) {
	report, err := s.sweeper.SweepCommand(ctx, replay.SweepFilter{OlderThan: s.ttl})

	s.setLastSweepTime(s.now())

	if err != nil {
		return nil, fmt.Errorf("scheduled sweep: %w", err)
	}

	if report.ContainersRemoved+report.NetworksRemoved > 0 || report.Failed > 0 {
		s.logger.InfoContext(ctx, "expired replays swept",
			"ttl", s.ttl,
			"containers", report.ContainersRemoved,
			"networks", report.NetworksRemoved,
			"failed", report.Failed,
		)
	}

	return report, nil
}

// RunCommand sweeps on every cron occurrence until ctx is done.
func (s *Service) RunCommand(ctx context.Context) {
	defer close(s.doneCh)

	s.setLastSweepTime(s.now())
	close(s.ready)

	s.logger.InfoContext(ctx, "janitor started", "schedule", s.cron.String(), "ttl", s.ttl)

	for {
		now := s.now()
		wait := s.cron.NextAfter(now).Sub(now)

		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "terminating janitor loop")

			return
		case <-s.after(wait):
		}

		if _, err := s.SweepCommand(ctx); err != nil {
			s.logger.ErrorContext(ctx, "sweep error", "reason", err)
		}
	}
}

func (s *Service) getLastSweepTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastSweepTime
}

func (s *Service) setLastSweepTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSweepTime = t
}
