// Package app wires the adapters and services into the CLI and serve modes.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/skillcoder/podreplay/internal/adapters/outbound/docker"
	"github.com/skillcoder/podreplay/internal/adapters/outbound/k8s"
	"github.com/skillcoder/podreplay/internal/adapters/outbound/prompt"
	"github.com/skillcoder/podreplay/internal/adapters/outbound/trivy"
	"github.com/skillcoder/podreplay/internal/config"
	"github.com/skillcoder/podreplay/internal/logic/failure"
	"github.com/skillcoder/podreplay/internal/logic/gate"
	"github.com/skillcoder/podreplay/internal/logic/netisolation"
	"github.com/skillcoder/podreplay/internal/logic/replay"
	"github.com/skillcoder/podreplay/internal/logic/sanitizer"
)

// Options select how the application talks to its operator.
type Options struct {
	// Interactive enables terminal prompts for secrets and confirmation.
	// Serve mode runs without it.
	Interactive bool
	// Progress receives one line per replay state transition; nil disables it.
	Progress io.Writer
}

type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	replays *replay.Service
	cluster *cluster
	closer  io.Closer
}

// New creates a new application instance with all dependencies wired.
func New(logger *slog.Logger, cfg *config.Config, opts Options) (*App, error) {
	runtime, dockerClient, err := docker.NewFromEnv(logger)
	if err != nil {
		return nil, failure.New("failed to connect to container runtime", err)
	}

	cl := newCluster(logger, cfg)

	var (
		prompter  sanitizer.SecretPrompter
		confirmer replay.Confirmer
	)

	if opts.Interactive {
		terminal := prompt.NewTerminal()
		prompter, confirmer = terminal, terminal
	} else {
		nonInteractive := prompt.NewNonInteractive(logger)
		prompter, confirmer = nonInteractive, nonInteractive
	}

	strategy, err := newSecretStrategy(logger, cfg.SecretStrategy, prompter, cl)
	if err != nil {
		_ = dockerClient.Close()

		return nil, err
	}

	runner := trivy.ExecRunner{}
	binary := trivy.NewBinary(cfg.ScannerPath, cfg.ScannerInstallDir)
	securityGate := gate.New(
		logger,
		trivy.NewScanner(logger, runner, binary),
		trivy.NewInstaller(logger, runner, binary),
		cfg.GatePolicy(),
	)

	deps := replay.Deps{
		Sanitizer: sanitizer.New(logger, strategy),
		Gate:      securityGate,
		Confirmer: confirmer,
		Runtime:   runtime,
		Networks:  netisolation.New(logger, runtime),
	}

	if opts.Progress != nil {
		deps.Observer = newProgress(opts.Progress)
	}

	replays := replay.New(logger, deps, replay.Options{
		Isolation:      cfg.Isolation,
		PullTimeout:    cfg.PullTimeout,
		RuntimeTimeout: cfg.RuntimeTimeout,
		StopTimeout:    cfg.StopTimeout,
	})

	return &App{
		cfg:     cfg,
		logger:  logger,
		replays: replays,
		cluster: cl,
		closer:  dockerClient,
	}, nil
}

// Close releases the container runtime client.
func (a *App) Close() error {
	if err := a.closer.Close(); err != nil {
		return fmt.Errorf("close docker client: %w", err)
	}

	return nil
}

// ReplayPodCommand fetches namespace/name from the cluster and replays it.
func (a *App) ReplayPodCommand(ctx context.Context, namespace, name string) (*replay.Handle, error) {
	manifest, err := a.cluster.GetPodQuery(ctx, namespace, name)
	if err != nil {
		return nil, failure.Wrap(err, "failed to fetch pod %s/%s", namespace, name)
	}

	return a.replays.ReplayCommand(ctx, manifest)
}

// ReplayFileCommand replays the Pod manifest stored at path.
func (a *App) ReplayFileCommand(ctx context.Context, path string) (*replay.Handle, error) {
	manifest, err := k8s.LoadManifestFile(path)
	if err != nil {
		return nil, failure.Wrap(err, "failed to load manifest %s", path)
	}

	return a.replays.ReplayCommand(ctx, manifest)
}

func (a *App) SweepCommand(ctx context.Context, filter replay.SweepFilter) (*replay.SweepReport, error) {
	return a.replays.SweepCommand(ctx, filter)
}

func (a *App) StopCommand(ctx context.Context, containerID string) error {
	return a.replays.StopCommand(ctx, containerID)
}
