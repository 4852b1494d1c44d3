package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/skillcoder/podreplay/internal/logic/replay"
)

// progress prints one line per replay state transition.
type progress struct {
	mu  sync.Mutex
	out io.Writer
}

var _ replay.Observer = (*progress)(nil)

func newProgress(out io.Writer) *progress {
	return &progress{out: out}
}

func (p *progress) Transition(_ context.Context, event replay.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.Err != nil {
		fmt.Fprintf(p.out, "[%s] %s: %v\n", event.PodName, event.To, event.Err)

		return
	}

	fmt.Fprintf(p.out, "[%s] %s\n", event.PodName, event.To)
}
