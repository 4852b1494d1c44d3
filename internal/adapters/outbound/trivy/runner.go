package trivy

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// CommandRunner runs an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("run %s: %w: %s", filepath.Base(name), err, msg)
		}

		return nil, fmt.Errorf("run %s: %w", filepath.Base(name), err)
	}

	return stdout.Bytes(), nil
}

// Binary locates the trivy executable, first on PATH (or at an explicit
// path) and then in the directory the installer writes to.
type Binary struct {
	path       string
	installDir string
	lookPath   func(file string) (string, error)
}

// NewBinary returns a locator for path, which may be a bare name.
func NewBinary(path, installDir string) *Binary {
	if path == "" {
		path = binaryName
	}

	return &Binary{
		path:       path,
		installDir: installDir,
		lookPath:   exec.LookPath,
	}
}

// Resolve returns the executable to run.
func (b *Binary) Resolve() (string, error) {
	if found, err := b.lookPath(b.path); err == nil {
		return found, nil
	}

	if b.installDir != "" {
		if found, err := b.lookPath(filepath.Join(b.installDir, binaryName)); err == nil {
			return found, nil
		}
	}

	return "", ErrNotInstalled
}
