package sanitizer_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skillcoder/podreplay/internal/logic/podspec"
	"github.com/skillcoder/podreplay/internal/logic/sanitizer"
)

type fakePrompter struct {
	values map[string]string
	err    error
	labels []string
}

func (f *fakePrompter) PromptSecret(_ context.Context, label string) (string, error) {
	f.labels = append(f.labels, label)
	if f.err != nil {
		return "", f.err
	}

	if v, ok := f.values[label]; ok {
		return v, nil
	}

	return "typed-by-operator", nil
}

type fakeFetcher struct {
	data map[string]string
	err  error
}

func (f *fakeFetcher) GetSecretValueQuery(_ context.Context, namespace, name, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}

	return f.data[namespace+"/"+name+"/"+key], nil
}

func boolPtr(v bool) *bool {
	return &v
}

func webManifest() *podspec.PodManifest {
	return &podspec.PodManifest{
		Kind:                         "Pod",
		APIVersion:                   "v1",
		Name:                         "web",
		Namespace:                    "shop",
		ServiceAccountName:           "web-sa",
		AutomountServiceAccountToken: boolPtr(true),
		NodeName:                     "node-a",
		ImagePullSecrets:             []string{"regcred"},
		Containers: []podspec.Container{
			{
				Name:  "web",
				Image: "nginx:latest",
				Env: []podspec.EnvVar{
					{Name: "DB_PASS", SecretKeyRef: &podspec.KeyRef{Name: "db", Key: "pass"}},
					{Name: "MODE", Value: "debug"},
					{Name: "FEATURES", ConfigMapKeyRef: &podspec.KeyRef{Name: "flags", Key: "features"}},
					{Name: "POD_NAME", FieldRef: &podspec.FieldRef{FieldPath: "metadata.name"}},
					{Name: "NODE_IP", FieldRef: &podspec.FieldRef{FieldPath: "status.hostIP"}},
					{Name: "MEM", ResourceFieldRef: &podspec.ResourceFieldRef{Resource: "limits.memory"}},
				},
				EnvFrom: []podspec.EnvFromSource{{SecretName: "bulk"}},
			},
			{Name: "sidecar", Image: "envoy:v1"},
		},
	}
}

func envValue(t *testing.T, spec *podspec.SanitizedPodSpec, name string) string {
	t.Helper()

	for _, env := range spec.Primary().Env {
		if env.Name == name {
			return env.Value
		}
	}

	t.Fatalf("env %s not found", name)

	return ""
}

func TestSanitizer_Placeholder(t *testing.T) {
	t.Parallel()

	manifest := webManifest()
	s := sanitizer.New(slog.Default(), sanitizer.Placeholder{})

	got, err := s.Sanitize(t.Context(), manifest)
	require.NoError(t, err)

	require.Equal(t, "PLACEHOLDER_db_pass", envValue(t, got, "DB_PASS"))
	require.Equal(t, "debug", envValue(t, got, "MODE"))
	require.Equal(t, "PLACEHOLDER_flags_features", envValue(t, got, "FEATURES"))
	require.Equal(t, "web", envValue(t, got, "POD_NAME"))
	require.Equal(t, "PLACEHOLDER_status_hostIP", envValue(t, got, "NODE_IP"))
	require.Equal(t, "PLACEHOLDER_limits_memory", envValue(t, got, "MEM"))

	for _, env := range got.Primary().Env {
		require.False(t, env.HasValueFrom(), env.Name)
	}

	require.Empty(t, got.Primary().EnvFrom)
	require.Len(t, got.Pod.Containers, 1)
	require.Empty(t, got.Pod.ServiceAccountName)
	require.Empty(t, got.Pod.NodeName)
	require.Empty(t, got.Pod.ImagePullSecrets)
	require.NotNil(t, got.Pod.AutomountServiceAccountToken)
	require.False(t, *got.Pod.AutomountServiceAccountToken)
	require.NoError(t, got.Validate())
}

func TestSanitizer_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	manifest := webManifest()
	before := manifest.DeepCopy()

	s := sanitizer.New(slog.Default(), sanitizer.Placeholder{})
	_, err := s.Sanitize(t.Context(), manifest)
	require.NoError(t, err)

	require.Equal(t, before, manifest)
}

func TestSanitizer_InvalidSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		giveManifest *podspec.PodManifest
	}{
		{name: "nil manifest", giveManifest: nil},
		{name: "no containers", giveManifest: &podspec.PodManifest{Name: "web"}},
		{
			name: "first container without image",
			giveManifest: &podspec.PodManifest{
				Name:       "web",
				Containers: []podspec.Container{{Name: "web"}, {Name: "sidecar", Image: "envoy:v1"}},
			},
		},
		{
			name: "first container with blank image",
			giveManifest: &podspec.PodManifest{
				Name:       "web",
				Containers: []podspec.Container{{Name: "web", Image: " \t "}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := sanitizer.New(slog.Default(), sanitizer.Placeholder{})

			_, err := s.Sanitize(t.Context(), tt.giveManifest)
			require.ErrorIs(t, err, podspec.ErrInvalidSpec)
			require.Contains(t, err.Error(), "missing a container or container image")
		})
	}
}

func TestSanitizer_Prompt(t *testing.T) {
	t.Parallel()

	t.Run("operator value is used", func(t *testing.T) {
		t.Parallel()

		prompter := &fakePrompter{}
		strategy := sanitizer.NewPrompt(prompter)
		s := sanitizer.New(slog.Default(), strategy)

		got, err := s.Sanitize(t.Context(), webManifest())
		require.NoError(t, err)
		require.Equal(t, "typed-by-operator", envValue(t, got, "DB_PASS"))
		require.Len(t, prompter.labels, 1)
		require.Contains(t, prompter.labels[0], "DB_PASS")
		require.Equal(t, sanitizer.StrategyPrompt, strategy.Name())
	})

	t.Run("empty answer is rejected", func(t *testing.T) {
		t.Parallel()

		prompter := &fakePrompter{values: map[string]string{
			"Value for DB_PASS (secret shop/db, key pass)": "",
		}}
		s := sanitizer.New(slog.Default(), sanitizer.NewPrompt(prompter))

		_, err := s.Sanitize(t.Context(), webManifest())
		require.ErrorIs(t, err, sanitizer.ErrEmptySecretValue)
	})

	t.Run("prompt failure is returned", func(t *testing.T) {
		t.Parallel()

		errNoTTY := errors.New("no terminal")
		s := sanitizer.New(slog.Default(), sanitizer.NewPrompt(&fakePrompter{err: errNoTTY}))

		_, err := s.Sanitize(t.Context(), webManifest())
		require.ErrorIs(t, err, sanitizer.ErrResolveSecret)
		require.ErrorIs(t, err, errNoTTY)
	})
}

func TestSanitizer_InsecureMount(t *testing.T) {
	t.Parallel()

	t.Run("real value is copied", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{data: map[string]string{"shop/db/pass": "s3cr3t"}}
		s := sanitizer.New(slog.Default(), sanitizer.NewInsecureMount(slog.Default(), fetcher))

		got, err := s.Sanitize(t.Context(), webManifest())
		require.NoError(t, err)
		require.Equal(t, "s3cr3t", envValue(t, got, "DB_PASS"))
	})

	t.Run("missing key is not left empty", func(t *testing.T) {
		t.Parallel()

		s := sanitizer.New(slog.Default(), sanitizer.NewInsecureMount(slog.Default(), &fakeFetcher{}))

		_, err := s.Sanitize(t.Context(), webManifest())
		require.ErrorIs(t, err, sanitizer.ErrEmptySecretValue)
	})
}
