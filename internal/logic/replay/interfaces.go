package replay

import (
	"context"
	"time"

	"github.com/skillcoder/podreplay/internal/logic/gate"
	"github.com/skillcoder/podreplay/internal/logic/isolation"
	"github.com/skillcoder/podreplay/internal/logic/labels"
	"github.com/skillcoder/podreplay/internal/logic/netisolation"
	"github.com/skillcoder/podreplay/internal/logic/podspec"
)

// Runtime is the port for the container runtime. Implementations must be
// safe for concurrent use.
type Runtime interface {
	netisolation.Runtime

	PingQuery(ctx context.Context) error
	PullImageCommand(ctx context.Context, ref string) error
	CreateContainerCommand(ctx context.Context, req isolation.ContainerRequest) (string, error)
	ConnectNetworkCommand(ctx context.Context, nw netisolation.Network, containerID string) error
	StartContainerCommand(ctx context.Context, id string) error
	StopContainerCommand(ctx context.Context, id string, timeout time.Duration) error
	RemoveContainerCommand(ctx context.Context, id string) error
	InspectContainerQuery(ctx context.Context, id string) (*Container, error)
	ListContainersQuery(ctx context.Context, selector map[string]string) ([]Container, error)
}

type Sanitizer interface {
	Sanitize(ctx context.Context, manifest *podspec.PodManifest) (*podspec.SanitizedPodSpec, error)
}

type Gate interface {
	Evaluate(ctx context.Context, imageRef string) (*gate.Result, gate.Decision)
}

// Confirmer asks the operator a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

type NetworkManager interface {
	CreateIsolatedNetworkCommand(ctx context.Context, owner labels.Owner) (*netisolation.Network, error)
	RemoveNetworkCommand(ctx context.Context, id string) (bool, error)
	RemoveNetworksCommand(ctx context.Context, filter labels.Filter) (*netisolation.RemoveReport, error)
}

// Observer receives state transitions, e.g. to print progress.
type Observer interface {
	Transition(ctx context.Context, event Event)
}

// notFound is a private interface for checking "not found" errors
// without importing the adapter package.
type notFound interface {
	IsNotFound()
}
