package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/skillcoder/podreplay/internal/adapters/outbound/k8s"
	"github.com/skillcoder/podreplay/internal/config"
	"github.com/skillcoder/podreplay/internal/logic/podspec"
)

// cluster builds the Kubernetes adapter on first use, so commands that only
// touch the container runtime work without a kubeconfig.
type cluster struct {
	once    sync.Once
	build   func() (podFetcher, error)
	fetcher podFetcher
	err     error
}

var _ podFetcher = (*cluster)(nil)

func newCluster(logger *slog.Logger, cfg *config.Config) *cluster {
	return &cluster{
		build: func() (podFetcher, error) {
			return newKubeAdapter(logger, cfg)
		},
	}
}

func (c *cluster) get() (podFetcher, error) {
	c.once.Do(func() {
		c.fetcher, c.err = c.build()
	})

	return c.fetcher, c.err
}

func (c *cluster) GetPodQuery(ctx context.Context, namespace, name string) (*podspec.PodManifest, error) {
	fetcher, err := c.get()
	if err != nil {
		return nil, err
	}

	return fetcher.GetPodQuery(ctx, namespace, name)
}

func (c *cluster) GetSecretValueQuery(ctx context.Context, namespace, name, key string) (string, error) {
	fetcher, err := c.get()
	if err != nil {
		return "", err
	}

	return fetcher.GetSecretValueQuery(ctx, namespace, name, key)
}

func newKubeAdapter(logger *slog.Logger, cfg *config.Config) (*k8s.Adapter, error) {
	kubeConfig, err := restConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errNoKubeConfig, err)
	}

	clientset, err := kubernetes.NewForConfig(kubeConfig)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}

	// metrics-server is optional; without it the memory hint is skipped.
	metricsClientset, err := metricsv.NewForConfig(kubeConfig)
	if err != nil {
		logger.Warn("metrics clientset unavailable", "reason", err)

		return k8s.New(logger, clientset, nil), nil
	}

	return k8s.New(logger, clientset, metricsClientset), nil
}

// restConfig uses the explicit kubeconfig or master when set, and the
// default loading rules (KUBECONFIG, ~/.kube/config, in-cluster) otherwise.
func restConfig(cfg *config.Config) (*rest.Config, error) {
	if cfg.KubeConfig != "" || cfg.KubeMaster != "" {
		kubeConfig, err := clientcmd.BuildConfigFromFlags(cfg.KubeMaster, cfg.KubeConfig)
		if err != nil {
			return nil, fmt.Errorf("build k8s config: %w", err)
		}

		return kubeConfig, nil
	}

	loader := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		clientcmd.NewDefaultClientConfigLoadingRules(),
		&clientcmd.ConfigOverrides{},
	)

	kubeConfig, err := loader.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("load k8s config: %w", err)
	}

	return kubeConfig, nil
}
