package httpserver

import (
	"context"

	"github.com/skillcoder/podreplay/internal/logic/podspec"
	"github.com/skillcoder/podreplay/internal/logic/replay"
)

// Replayer runs, stops and sweeps replays.
type Replayer interface {
	ReplayCommand(ctx context.Context, manifest *podspec.PodManifest) (*replay.Handle, error)
	StopCommand(ctx context.Context, containerID string) error
	SweepCommand(ctx context.Context, filter replay.SweepFilter) (*replay.SweepReport, error)
}

// PodSource fetches live pods from the cluster.
type PodSource interface {
	GetPodQuery(ctx context.Context, namespace, name string) (*podspec.PodManifest, error)
}

// ManifestDecoder parses an inline Pod manifest.
type ManifestDecoder func(data []byte) (*podspec.PodManifest, error)

// Pinger is a dependency checked by /-/readyz.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// notFound is a private interface for checking "not found" errors
// without importing the adapter package.
type notFound interface {
	IsNotFound()
}

type tooManyRequests interface {
	IsTooManyRequests()
}
