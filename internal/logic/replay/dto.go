package replay

import (
	"time"

	"github.com/skillcoder/podreplay/internal/logic/gate"
	"github.com/skillcoder/podreplay/internal/logic/isolation"
)

// Options configure the orchestrator. They are fixed at construction.
type Options struct {
	Isolation      isolation.Config
	PullTimeout    time.Duration
	RuntimeTimeout time.Duration
	StopTimeout    time.Duration
	CleanupTimeout time.Duration
}

// Container is a runtime container as listed or inspected by the runtime.
type Container struct {
	ID     string
	Name   string
	Image  string
	State  string
	Labels map[string]string
}

// Resources are the runtime objects created by one replay attempt, recorded
// as soon as each one exists.
type Resources struct {
	NetworkID     string
	NetworkName   string
	ContainerID   string
	ContainerName string
}

// Empty reports whether nothing was created.
func (r Resources) Empty() bool {
	return r.NetworkID == "" && r.ContainerID == ""
}

// Handle describes a running replay.
type Handle struct {
	ReplayID      string
	PodName       string
	Namespace     string
	ContainerID   string
	ContainerName string
	Image         string
	NetworkID     string
	NetworkName   string
	Scan          *gate.Result
	State         State
}

// Event is emitted on every state transition.
type Event struct {
	ReplayID string
	PodName  string
	From     State
	To       State
	// Err is set on the transition into StateFailed.
	Err error
}

// SweepFilter narrows a sweep. The zero value sweeps every engine resource.
type SweepFilter struct {
	PodName   string
	OlderThan time.Duration
}

// SweepReport summarizes a sweep.
type SweepReport struct {
	ContainersRemoved int
	NetworksRemoved   int
	Missing           int
	Failed            int
}
