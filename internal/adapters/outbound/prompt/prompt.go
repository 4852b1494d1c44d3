// Package prompt talks to the operator: masked secret entry and yes/no
// confirmation on the controlling terminal.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

var (
	ErrNoTerminal     = errors.New("no terminal available for interactive prompt")
	ErrNonInteractive = errors.New("interactive prompts are disabled")
)

// Terminal prompts on a terminal. Concurrent prompts are serialized so their
// output does not interleave.
type Terminal struct {
	mu           sync.Mutex
	fd           int
	in           *bufio.Reader
	out          io.Writer
	isTerminal   func(fd int) bool
	readPassword func(fd int) ([]byte, error)
}

// NewTerminal prompts on stdin, writing questions to stderr.
func NewTerminal() *Terminal {
	return newTerminal(os.Stdin, os.Stderr, int(os.Stdin.Fd()))
}

func newTerminal(in io.Reader, out io.Writer, fd int) *Terminal {
	return &Terminal{
		fd:           fd,
		in:           bufio.NewReader(in),
		out:          out,
		isTerminal:   term.IsTerminal,
		readPassword: term.ReadPassword,
	}
}

// PromptSecret reads a value with echo disabled.
func (t *Terminal) PromptSecret(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.isTerminal(t.fd) {
		return "", ErrNoTerminal
	}

	fmt.Fprintf(t.out, "%s: ", label)
	value, err := t.readPassword(t.fd)
	fmt.Fprintln(t.out)

	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}

	return string(value), nil
}

// Confirm asks a yes/no question. Anything but y or yes is a no.
func (t *Terminal) Confirm(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "%s [y/N]: ", question)

	line, err := t.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}

	if errors.Is(err, io.EOF) && line == "" {
		fmt.Fprintln(t.out)

		return false, nil
	}

	return IsYes(line), nil
}

// IsYes reports whether answer is an affirmative reply.
func IsYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// NonInteractive is used where no operator is attached, e.g. the HTTP API.
// It declines every confirmation and refuses secret entry.
type NonInteractive struct {
	logger *slog.Logger
}

func NewNonInteractive(logger *slog.Logger) *NonInteractive {
	return &NonInteractive{logger: logger}
}

func (n *NonInteractive) PromptSecret(ctx context.Context, label string) (string, error) {
	n.logger.WarnContext(ctx, "secret prompt refused in non-interactive mode", "label", label)

	return "", ErrNonInteractive
}

func (n *NonInteractive) Confirm(ctx context.Context, question string) (bool, error) {
	n.logger.InfoContext(ctx, "confirmation declined in non-interactive mode", "question", question)

	return false, nil
}
