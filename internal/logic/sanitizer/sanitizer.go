// Package sanitizer turns an untrusted Pod manifest into a SanitizedPodSpec:
// cluster identity is stripped and every environment reference is resolved
// to a literal. Only the first declared container is replayed; the remaining
// containers are dropped on purpose.
package sanitizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/skillcoder/podreplay/internal/logic/podspec"
)

type Sanitizer struct {
	logger   *slog.Logger
	strategy SecretStrategy
}

// New creates a sanitizer resolving secrets with strategy.
func New(logger *slog.Logger, strategy SecretStrategy) *Sanitizer {
	return &Sanitizer{
		logger:   logger,
		strategy: strategy,
	}
}

// Sanitize never mutates manifest.
func (s *Sanitizer) Sanitize(
	ctx context.Context,
	manifest *podspec.PodManifest,
) (*podspec.SanitizedPodSpec, error) {
	if manifest == nil || len(manifest.Containers) == 0 || strings.TrimSpace(manifest.Containers[0].Image) == "" {
		return nil, podspec.ErrInvalidSpec
	}

	logger := s.logger.With("pod", manifest.Name, "namespace", manifest.Namespace, "strategy", s.strategy.Name())

	pod := manifest.DeepCopy()

	if len(pod.Containers) > 1 {
		logger.InfoContext(ctx, "replaying first container only",
			"container", pod.Containers[0].Name,
			"dropped", len(pod.Containers)-1,
		)
	}

	pod.Containers = pod.Containers[:1]

	stripIdentity(pod)

	container := &pod.Containers[0]

	for _, src := range container.EnvFrom {
		logger.WarnContext(ctx, "dropping envFrom source",
			"configMap", src.ConfigMapName,
			"secret", src.SecretName,
		)
	}

	container.EnvFrom = nil

	for i := range container.Env {
		value, err := s.resolve(ctx, pod, container.Env[i])
		if err != nil {
			return nil, err
		}

		container.Env[i] = podspec.EnvVar{
			Name:  container.Env[i].Name,
			Value: value,
		}
	}

	out := &podspec.SanitizedPodSpec{Pod: *pod}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("validate sanitized spec: %w", err)
	}

	logger.DebugContext(ctx, "pod spec sanitized", "env", len(container.Env))

	return out, nil
}

func stripIdentity(pod *podspec.PodManifest) {
	automount := false

	pod.ServiceAccountName = ""
	pod.DeprecatedServiceAccount = ""
	pod.AutomountServiceAccountToken = &automount
	pod.NodeName = ""
	pod.ImagePullSecrets = nil
}

func (s *Sanitizer) resolve(
	ctx context.Context,
	pod *podspec.PodManifest,
	env podspec.EnvVar,
) (string, error) {
	switch {
	case env.SecretKeyRef != nil:
		value, err := s.strategy.Resolve(ctx, SecretRequest{
			Namespace: pod.Namespace,
			PodName:   pod.Name,
			EnvName:   env.Name,
			Ref:       *env.SecretKeyRef,
		})
		if err != nil {
			return "", fmt.Errorf("%w: env %s: %w", ErrResolveSecret, env.Name, err)
		}

		if value == "" {
			return "", fmt.Errorf("%w: env %s", ErrEmptySecretValue, env.Name)
		}

		return value, nil
	case env.ConfigMapKeyRef != nil:
		return PlaceholderValue(env.ConfigMapKeyRef.Name, env.ConfigMapKeyRef.Key), nil
	case env.FieldRef != nil:
		return resolveFieldRef(pod, env.FieldRef.FieldPath), nil
	case env.ResourceFieldRef != nil:
		return "PLACEHOLDER_" + placeholderToken(env.ResourceFieldRef.Resource), nil
	default:
		return env.Value, nil
	}
}

func resolveFieldRef(pod *podspec.PodManifest, path string) string {
	switch path {
	case "metadata.name":
		if pod.Name != "" {
			return pod.Name
		}
	case "metadata.namespace":
		if pod.Namespace != "" {
			return pod.Namespace
		}
	}

	return "PLACEHOLDER_" + placeholderToken(path)
}

func placeholderToken(s string) string {
	if s == "" {
		return "unknown"
	}

	return strings.NewReplacer(".", "_", "/", "_", "'", "", "[", "_", "]", "").Replace(s)
}
