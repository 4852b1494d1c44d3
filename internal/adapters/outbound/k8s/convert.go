package k8s

import (
	"context"
	"log/slog"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"

	"github.com/skillcoder/podreplay/internal/logic/podspec"
)

// ToPodManifest converts a client-go pod into the domain manifest.
func ToPodManifest(pod *corev1.Pod) *podspec.PodManifest {
	out := &podspec.PodManifest{
		Kind:                         pod.Kind,
		APIVersion:                   pod.APIVersion,
		Name:                         pod.Name,
		Namespace:                    pod.Namespace,
		ServiceAccountName:           pod.Spec.ServiceAccountName,
		DeprecatedServiceAccount:     pod.Spec.DeprecatedServiceAccount,
		AutomountServiceAccountToken: pod.Spec.AutomountServiceAccountToken,
		NodeName:                     pod.Spec.NodeName,
	}

	for _, ref := range pod.Spec.ImagePullSecrets {
		out.ImagePullSecrets = append(out.ImagePullSecrets, ref.Name)
	}

	for i := range pod.Spec.Containers {
		out.Containers = append(out.Containers, toContainer(&pod.Spec.Containers[i]))
	}

	return out
}

func toContainer(c *corev1.Container) podspec.Container {
	out := podspec.Container{
		Name:       c.Name,
		Image:      c.Image,
		Command:    c.Command,
		Args:       c.Args,
		WorkingDir: c.WorkingDir,
	}

	for _, env := range c.Env {
		out.Env = append(out.Env, toEnvVar(env))
	}

	for _, src := range c.EnvFrom {
		from := podspec.EnvFromSource{Prefix: src.Prefix}
		if src.ConfigMapRef != nil {
			from.ConfigMapName = src.ConfigMapRef.Name
		}

		if src.SecretRef != nil {
			from.SecretName = src.SecretRef.Name
		}

		out.EnvFrom = append(out.EnvFrom, from)
	}

	if len(c.Resources.Limits) > 0 {
		out.Limits = make(map[string]string, len(c.Resources.Limits))
		for name, quantity := range c.Resources.Limits {
			out.Limits[string(name)] = quantity.String()
		}
	}

	return out
}

func toEnvVar(env corev1.EnvVar) podspec.EnvVar {
	out := podspec.EnvVar{Name: env.Name, Value: env.Value}

	src := env.ValueFrom
	if src == nil {
		return out
	}

	switch {
	case src.SecretKeyRef != nil:
		out.SecretKeyRef = &podspec.KeyRef{Name: src.SecretKeyRef.Name, Key: src.SecretKeyRef.Key}
	case src.ConfigMapKeyRef != nil:
		out.ConfigMapKeyRef = &podspec.KeyRef{Name: src.ConfigMapKeyRef.Name, Key: src.ConfigMapKeyRef.Key}
	case src.FieldRef != nil:
		out.FieldRef = &podspec.FieldRef{FieldPath: src.FieldRef.FieldPath}
	case src.ResourceFieldRef != nil:
		out.ResourceFieldRef = &podspec.ResourceFieldRef{Resource: src.ResourceFieldRef.Resource}
	}

	return out
}

func memoryUsageBytes(
	ctx context.Context,
	logger *slog.Logger,
	podMetrics *metricsv1beta1.PodMetrics,
) int64 {
	memoryUsage := resource.NewQuantity(0, resource.BinarySI)

	for i := range podMetrics.Containers {
		containerMemoryUsage := podMetrics.Containers[i].Usage.Memory()
		if containerMemoryUsage == nil {
			logger.WarnContext(ctx, "container memory usage is nil, skipping",
				"pod", podMetrics.Name,
				"namespace", podMetrics.Namespace,
				"container", podMetrics.Containers[i].Name,
			)

			continue
		}

		memoryUsage.Add(*containerMemoryUsage)
	}

	return memoryUsage.Value()
}
