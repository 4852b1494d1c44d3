package k8s_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"
	metricsfake "k8s.io/metrics/pkg/client/clientset/versioned/fake"

	"github.com/skillcoder/podreplay/internal/adapters/outbound/k8s"
)

type notFoundMarker interface {
	IsNotFound()
}

func webPod() *corev1.Pod {
	automount := true

	return &corev1.Pod{
		TypeMeta:   metav1.TypeMeta{Kind: "Pod", APIVersion: "v1"},
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "shop"},
		Spec: corev1.PodSpec{
			ServiceAccountName:           "web-sa",
			AutomountServiceAccountToken: &automount,
			NodeName:                     "node-a",
			ImagePullSecrets:             []corev1.LocalObjectReference{{Name: "regcred"}},
			Containers: []corev1.Container{{
				Name:    "nginx",
				Image:   "nginx:latest",
				Command: []string{"nginx"},
				Args:    []string{"-g", "daemon off;"},
				Env: []corev1.EnvVar{
					{Name: "MODE", Value: "debug"},
					{Name: "DB_PASS", ValueFrom: &corev1.EnvVarSource{
						SecretKeyRef: &corev1.SecretKeySelector{
							LocalObjectReference: corev1.LocalObjectReference{Name: "db"},
							Key:                  "pass",
						},
					}},
					{Name: "POD_NAME", ValueFrom: &corev1.EnvVarSource{
						FieldRef: &corev1.ObjectFieldSelector{FieldPath: "metadata.name"},
					}},
				},
				EnvFrom: []corev1.EnvFromSource{{
					ConfigMapRef: &corev1.ConfigMapEnvSource{
						LocalObjectReference: corev1.LocalObjectReference{Name: "settings"},
					},
				}},
				Resources: corev1.ResourceRequirements{
					Limits: corev1.ResourceList{
						corev1.ResourceMemory: resource.MustParse("256Mi"),
					},
				},
			}},
		},
	}
}

func TestAdapter_GetPodQuery(t *testing.T) {
	t.Parallel()

	clientset := fake.NewClientset(webPod())

	metrics := metricsfake.NewSimpleClientset()
	metrics.PrependReactor("get", "pods", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, &metricsv1beta1.PodMetrics{
			ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "shop"},
			Containers: []metricsv1beta1.ContainerMetrics{
				{Name: "nginx", Usage: corev1.ResourceList{corev1.ResourceMemory: resource.MustParse("300Mi")}},
				{Name: "sidecar", Usage: corev1.ResourceList{corev1.ResourceMemory: resource.MustParse("20Mi")}},
			},
		}, nil
	})

	adapter := k8s.New(slog.Default(), clientset, metrics)

	manifest, err := adapter.GetPodQuery(t.Context(), "shop", "web")
	require.NoError(t, err)
	require.Equal(t, "web", manifest.Name)
	require.Equal(t, "shop", manifest.Namespace)
	require.Equal(t, "web-sa", manifest.ServiceAccountName)
	require.Equal(t, []string{"regcred"}, manifest.ImagePullSecrets)
	require.Equal(t, int64(320*1024*1024), manifest.ObservedMemoryBytes)

	require.Len(t, manifest.Containers, 1)

	c := manifest.Containers[0]
	require.Equal(t, "nginx:latest", c.Image)
	require.Equal(t, []string{"-g", "daemon off;"}, c.Args)
	require.Equal(t, "256Mi", c.Limits["memory"])
	require.Len(t, c.Env, 3)
	require.Equal(t, "db", c.Env[1].SecretKeyRef.Name)
	require.Equal(t, "pass", c.Env[1].SecretKeyRef.Key)
	require.Equal(t, "metadata.name", c.Env[2].FieldRef.FieldPath)
	require.Equal(t, "settings", c.EnvFrom[0].ConfigMapName)
}

func TestAdapter_GetPodQuery_MetricsUnavailable(t *testing.T) {
	t.Parallel()

	adapter := k8s.New(slog.Default(), fake.NewClientset(webPod()), nil)

	manifest, err := adapter.GetPodQuery(t.Context(), "shop", "web")
	require.NoError(t, err)
	require.Zero(t, manifest.ObservedMemoryBytes)
}

func TestAdapter_GetPodQuery_NotFound(t *testing.T) {
	t.Parallel()

	adapter := k8s.New(slog.Default(), fake.NewClientset(), nil)

	_, err := adapter.GetPodQuery(t.Context(), "shop", "web")
	require.Error(t, err)

	var target notFoundMarker
	require.True(t, errors.As(err, &target))
}

func TestAdapter_GetSecretValueQuery(t *testing.T) {
	t.Parallel()

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "db", Namespace: "shop"},
		Data:       map[string][]byte{"pass": []byte("s3cr3t")},
	}

	adapter := k8s.New(slog.Default(), fake.NewClientset(secret), nil)

	value, err := adapter.GetSecretValueQuery(t.Context(), "shop", "db", "pass")
	require.NoError(t, err)
	require.Equal(t, "s3cr3t", value)

	var target notFoundMarker

	_, err = adapter.GetSecretValueQuery(t.Context(), "shop", "db", "user")
	require.True(t, errors.As(err, &target))

	_, err = adapter.GetSecretValueQuery(t.Context(), "shop", "cache", "pass")
	require.True(t, errors.As(err, &target))
}
