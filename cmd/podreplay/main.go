package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillcoder/podreplay/internal/app"
	"github.com/skillcoder/podreplay/internal/config"
	"github.com/skillcoder/podreplay/internal/infra/logging"
	"github.com/skillcoder/podreplay/internal/infra/shutdown"
	"github.com/skillcoder/podreplay/internal/logic/replay"
)

func main() {
	// Start listening for signals immediately as first thing, before any other initialization
	signals := shutdown.Notify()
	ctx := context.Background()

	root := newRootCommand(signals, os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cli holds what every subcommand needs once the root pre-run has loaded
// the configuration.
type cli struct {
	signals    <-chan os.Signal
	out        io.Writer
	configPath string
	logLevel   string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCommand(signals <-chan os.Signal, out io.Writer) *cobra.Command {
	c := &cli{signals: signals, out: out}

	root := &cobra.Command{
		Use:           "podreplay",
		Short:         "Replay a Kubernetes pod locally in a sandboxed container",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Path to a YAML config file (overrides PODREPLAY_CONFIG_FILE)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides PODREPLAY_LOG_LEVEL)")

	root.AddCommand(
		c.newReplayCommand(),
		c.newSweepCommand(),
		c.newStopCommand(),
		c.newServeCommand(),
	)

	return root
}

func (c *cli) load() error {
	var (
		cfg *config.Config
		err error
	)

	if c.configPath != "" {
		cfg, err = config.LoadFile(c.configPath)
	} else {
		cfg, err = config.Load()
	}

	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}

	c.cfg = cfg
	c.logger = logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)

	return nil
}

// withSignals cancels the returned context on SIGINT or SIGTERM so a
// running replay fails and cleans up after itself.
func (c *cli) withSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	go shutdown.New(c.logger, c.signals).HandleSignals(ctx, cancel)

	return ctx, cancel
}

func (c *cli) newApp(opts app.Options) (*app.App, error) {
	application, err := app.New(c.logger, c.cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("new application: %w", err)
	}

	return application, nil
}

func (c *cli) newReplayCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "replay [<namespace> <pod>]",
		Short: "Replay the first container of a pod with secrets sanitized and the image scanned",
		Args: func(_ *cobra.Command, args []string) error {
			switch {
			case file != "" && len(args) > 0:
				return errors.New("use either --file or <namespace> <pod>")
			case file == "" && len(args) != 2:
				return errors.New("requires <namespace> <pod> or --file")
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.withSignals(cmd.Context())
			defer cancel()

			application, err := c.newApp(app.Options{Interactive: true, Progress: c.out})
			if err != nil {
				return err
			}
			defer application.Close()

			var handle *replay.Handle
			if file != "" {
				handle, err = application.ReplayFileCommand(ctx, file)
			} else {
				handle, err = application.ReplayPodCommand(ctx, args[0], args[1])
			}

			if err != nil {
				return err
			}

			printHandle(c.out, handle)

			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Replay a Pod manifest file instead of a live pod")

	return cmd
}

func (c *cli) newSweepCommand() *cobra.Command {
	var (
		pod       string
		olderThan time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove every container and network created by podreplay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan < 0 {
				return errors.New("--older-than must not be negative")
			}

			ctx, cancel := c.withSignals(cmd.Context())
			defer cancel()

			application, err := c.newApp(app.Options{})
			if err != nil {
				return err
			}
			defer application.Close()

			report, err := application.SweepCommand(ctx, replay.SweepFilter{PodName: pod, OlderThan: olderThan})
			if err != nil {
				return err
			}

			fmt.Fprintf(c.out, "removed %d containers and %d networks (%d already gone, %d failed)\n",
				report.ContainersRemoved, report.NetworksRemoved, report.Missing, report.Failed)

			return nil
		},
	}

	cmd.Flags().StringVar(&pod, "pod", "", "Only sweep replays of this pod")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only sweep replays created longer ago than this")

	return cmd
}

func (c *cli) newStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <container-id>",
		Short: "Stop a replay and remove its container and isolated network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.withSignals(cmd.Context())
			defer cancel()

			application, err := c.newApp(app.Options{})
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.StopCommand(ctx, args[0]); err != nil {
				return err
			}

			fmt.Fprintf(c.out, "stopped %s\n", args[0])

			return nil
		},
	}
}

func (c *cli) newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the replay API with health and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := c.newApp(app.Options{})
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Serve(cmd.Context(), c.signals); err != nil {
				return err
			}

			c.logger.InfoContext(cmd.Context(), "bye")

			return nil
		},
	}
}

func printHandle(w io.Writer, h *replay.Handle) {
	fmt.Fprintf(w, "replay %s running: container %s (%s) from %s\n",
		h.ReplayID, h.ContainerName, shortID(h.ContainerID), h.Image)

	if h.NetworkName != "" {
		fmt.Fprintf(w, "isolated network: %s\n", h.NetworkName)
	}

	if h.Scan != nil && !h.Scan.Skipped {
		fmt.Fprintf(w, "vulnerabilities: %d critical, %d high, %d medium, %d low\n",
			h.Scan.Critical, h.Scan.High, h.Scan.Medium, h.Scan.Low)
	}

	fmt.Fprintf(w, "stop with: podreplay stop %s\n", shortID(h.ContainerID))
}

func shortID(id string) string {
	const n = 12
	if len(id) > n {
		return id[:n]
	}

	return id
}
