package app

import (
	"context"

	"github.com/skillcoder/podreplay/internal/infra/shutdown"
	"github.com/skillcoder/podreplay/internal/logic/podspec"
)

// component is a long-running part of serve mode.
type component interface {
	Start(ctx context.Context) error
	Ready() <-chan struct{}
	shutdown.Shutdowner
}

type podFetcher interface {
	GetPodQuery(ctx context.Context, namespace, name string) (*podspec.PodManifest, error)
	GetSecretValueQuery(ctx context.Context, namespace, name, key string) (string, error)
}
