package trivy

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/skillcoder/podreplay/internal/logic/gate"
)

const installScriptURL = "https://raw.githubusercontent.com/aquasecurity/trivy/main/contrib/install.sh"

type Installer struct {
	logger *slog.Logger
	runner CommandRunner
	binary *Binary
	goos   string
}

var _ gate.Installer = (*Installer)(nil)

// NewInstaller creates an installer for the current platform.
func NewInstaller(logger *slog.Logger, runner CommandRunner, binary *Binary) *Installer {
	return &Installer{
		logger: logger,
		runner: runner,
		binary: binary,
		goos:   runtime.GOOS,
	}
}

// Available reports whether trivy can be run.
func (i *Installer) Available(context.Context) bool {
	_, err := i.binary.Resolve()

	return err == nil
}

// Install uses Homebrew on macOS and the upstream install script on Linux.
func (i *Installer) Install(ctx context.Context) error {
	var (
		name string
		args []string
	)

	switch i.goos {
	case "darwin":
		name, args = "brew", []string{"install", "trivy"}
	case "linux":
		if i.binary.installDir == "" {
			return fmt.Errorf("install trivy: %w: no install directory configured", ErrUnsupportedPlatform)
		}

		script := fmt.Sprintf("curl -sfL %s | sh -s -- -b %q", installScriptURL, i.binary.installDir)
		name, args = "sh", []string{"-c", script}
	default:
		return fmt.Errorf("install trivy on %s: %w", i.goos, ErrUnsupportedPlatform)
	}

	i.logger.InfoContext(ctx, "installing trivy", "command", name, "os", i.goos)

	if _, err := i.runner.Run(ctx, name, args...); err != nil {
		return fmt.Errorf("install trivy: %w", err)
	}

	return nil
}
