package k8s

import (
	"context"
	"fmt"
	"log/slog"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/skillcoder/podreplay/internal/logic/podspec"
)

type Adapter struct {
	logger           *slog.Logger
	clientset        kubernetes.Interface
	metricsClientset metricsv.Interface
}

// New creates a new K8s adapter. metricsClientset may be nil, in which case
// the observed memory usage of fetched pods is left unknown.
func New(
	logger *slog.Logger,
	clientset kubernetes.Interface,
	metricsClientset metricsv.Interface,
) *Adapter {
	return &Adapter{
		logger:           logger,
		clientset:        clientset,
		metricsClientset: metricsClientset,
	}
}

// GetPodQuery fetches a pod and converts it to the domain manifest. The live
// memory usage is attached when metrics-server answers.
func (a *Adapter) GetPodQuery(
	ctx context.Context,
	namespace,
	name string,
) (*podspec.PodManifest, error) {
	pod, err := a.clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("get pod %s/%s: %w", namespace, name, errPodNotFound)
		}

		return nil, fmt.Errorf("get pod %s/%s: %w", namespace, name, err)
	}

	manifest := ToPodManifest(pod)

	usage, err := a.GetPodMemoryUsageQuery(ctx, namespace, name)
	if err != nil {
		a.logger.DebugContext(ctx, "pod memory usage unavailable",
			"pod", name,
			"namespace", namespace,
			"reason", err,
		)
	} else {
		manifest.ObservedMemoryBytes = usage
	}

	return manifest, nil
}

// GetSecretValueQuery reads one key of a secret. The value is returned
// decoded.
func (a *Adapter) GetSecretValueQuery(
	ctx context.Context,
	namespace,
	name,
	key string,
) (string, error) {
	secret, err := a.clientset.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return "", fmt.Errorf("get secret %s/%s: %w", namespace, name, errSecretNotFound)
		}

		return "", fmt.Errorf("get secret %s/%s: %w", namespace, name, err)
	}

	if value, ok := secret.Data[key]; ok {
		return string(value), nil
	}

	if value, ok := secret.StringData[key]; ok {
		return value, nil
	}

	return "", fmt.Errorf("get secret %s/%s key %s: %w", namespace, name, key, errSecretKeyNotFound)
}

// GetPodMemoryUsageQuery returns the summed memory usage of the pod's
// containers in bytes.
func (a *Adapter) GetPodMemoryUsageQuery(
	ctx context.Context,
	namespace,
	name string,
) (int64, error) {
	if a.metricsClientset == nil {
		return 0, errMetricsUnavailable
	}

	podMetrics, err := a.metricsClientset.MetricsV1beta1().PodMetricses(namespace).Get(
		ctx,
		name,
		metav1.GetOptions{},
	)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return 0, fmt.Errorf("get pod metrics: %w", errPodNotFound)
		} else if apierrors.IsTooManyRequests(err) {
			return 0, fmt.Errorf("get pod metrics: %w", errTooManyRequests)
		}

		return 0, fmt.Errorf("get pod metrics: %w", err)
	}

	return memoryUsageBytes(ctx, a.logger, podMetrics), nil
}
