package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/skillcoder/podreplay/internal/adapters/outbound/k8s"
	"github.com/skillcoder/podreplay/internal/httpserver"
	"github.com/skillcoder/podreplay/internal/infra/metrics"
	"github.com/skillcoder/podreplay/internal/infra/schedule"
	"github.com/skillcoder/podreplay/internal/infra/shutdown"
	"github.com/skillcoder/podreplay/internal/logic/janitor"
	"github.com/skillcoder/podreplay/internal/logic/replay"
)

const finalSweepTimeout = time.Minute

// runtimeCheck reports container runtime reachability on /-/readyz.
type runtimeCheck struct {
	replays *replay.Service
}

func (runtimeCheck) Name() string {
	return "container-runtime"
}

func (c runtimeCheck) Ping(ctx context.Context) error {
	return c.replays.PingQuery(ctx)
}

// Serve runs the replay API until a termination signal arrives, then shuts
// the components down in reverse order and sweeps every managed resource.
func (a *App) Serve(originCtx context.Context, signals <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(originCtx)
	defer cancel()

	go shutdown.New(a.logger, signals).HandleSignals(ctx, cancel)

	if err := a.replays.PingQuery(ctx); err != nil {
		return err
	}

	if a.cfg.SweepOnStart {
		a.sweep(ctx, "startup")
	}

	components, err := a.components()
	if err != nil {
		return err
	}

	shutdowners := make([]shutdown.Shutdowner, 0, len(components))
	readies := make([]<-chan struct{}, 0, len(components))

	var startErr error

	for _, c := range components {
		if err := c.Start(ctx); err != nil {
			startErr = fmt.Errorf("start %s: %w", c.Name(), err)

			break
		}

		shutdowners = append(shutdowners, c)
		readies = append(readies, c.Ready())
	}

	if startErr == nil {
		select {
		case <-allChannelsClose(ctx, a.logger, readies...):
			a.logger.InfoContext(ctx, "podreplay serving",
				"httpPort", a.cfg.HTTPPort,
				"metricsPort", a.cfg.MetricsPort,
			)
		case <-ctx.Done():
		}

		<-ctx.Done()
	} else {
		a.logger.ErrorContext(ctx, "failed to start", "reason", startErr)
	}

	shutdownErr := shutdown.GracefulShutdown(ctx, a.logger, shutdowners)

	sweepCtx, sweepCancel := context.WithTimeout(context.WithoutCancel(ctx), finalSweepTimeout)
	defer sweepCancel()

	a.sweep(sweepCtx, "shutdown")

	return errors.Join(startErr, shutdownErr)
}

// components returns the serve-mode components in start order.
func (a *App) components() ([]component, error) {
	checks := []httpserver.Pinger{runtimeCheck{replays: a.replays}}
	components := []component{httpserver.NewMetricsServer(a.logger, a.cfg.MetricsPort, metrics.Registry())}

	if a.cfg.SweepSchedule != "" {
		cron, err := schedule.Parse(a.cfg.SweepSchedule, "")
		if err != nil {
			return nil, fmt.Errorf("parse sweep schedule: %w", err)
		}

		j := janitor.New(a.logger, a.replays, cron, a.cfg.ReplayTTL)
		components = append(components, j)
		checks = append(checks, j)
	}

	api := httpserver.New(a.logger, httpserver.Deps{
		Replays: a.replays,
		Pods:    a.cluster,
		Decode:  k8s.DecodeManifest,
		Checks:  checks,
	}, a.cfg.HTTPPort)

	return append(components, api), nil
}

func (a *App) sweep(ctx context.Context, trigger string) {
	report, err := a.replays.SweepCommand(ctx, replay.SweepFilter{})
	if err != nil {
		a.logger.WarnContext(ctx, "sweep failed", "trigger", trigger, "reason", err)

		return
	}

	a.logger.InfoContext(ctx, "sweep finished",
		"trigger", trigger,
		"containersRemoved", report.ContainersRemoved,
		"networksRemoved", report.NetworksRemoved,
		"failed", report.Failed,
	)
}

// allChannelsClose returns a channel closed once every input channel has
// closed, or as soon as ctx is done.
func allChannelsClose(ctx context.Context, logger *slog.Logger, chans ...<-chan struct{}) <-chan struct{} {
	out := make(chan struct{})

	go func() {
		defer close(out)

		for _, ch := range chans {
			select {
			case <-ch:
			case <-ctx.Done():
				logger.DebugContext(ctx, "stopped waiting for components", "reason", ctx.Err())

				return
			}
		}
	}()

	return out
}
