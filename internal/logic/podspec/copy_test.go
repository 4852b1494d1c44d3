package podspec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skillcoder/podreplay/internal/logic/podspec"
)

func boolPtr(v bool) *bool {
	return &v
}

func TestPodManifest_DeepCopy(t *testing.T) {
	t.Parallel()

	orig := &podspec.PodManifest{
		Name:                         "web",
		AutomountServiceAccountToken: boolPtr(true),
		ImagePullSecrets:             []string{"regcred"},
		Containers: []podspec.Container{
			{
				Image:   "nginx:latest",
				Command: []string{"nginx"},
				Limits:  map[string]string{"memory": "128Mi"},
				Env: []podspec.EnvVar{
					{Name: "DB_PASS", SecretKeyRef: &podspec.KeyRef{Name: "db", Key: "pass"}},
				},
			},
		},
	}

	cp := orig.DeepCopy()
	*cp.AutomountServiceAccountToken = false
	cp.ImagePullSecrets[0] = "other"
	cp.Containers[0].Command[0] = "sh"
	cp.Containers[0].Limits["memory"] = "1Gi"
	cp.Containers[0].Env[0].SecretKeyRef.Key = "changed"
	cp.Containers[0].Env[0].Value = "x"

	require.True(t, *orig.AutomountServiceAccountToken)
	require.Equal(t, "regcred", orig.ImagePullSecrets[0])
	require.Equal(t, "nginx", orig.Containers[0].Command[0])
	require.Equal(t, "128Mi", orig.Containers[0].Limits["memory"])
	require.Equal(t, "pass", orig.Containers[0].Env[0].SecretKeyRef.Key)
	require.Empty(t, orig.Containers[0].Env[0].Value)
}

func TestSanitizedPodSpec_Validate(t *testing.T) {
	t.Parallel()

	valid := func() podspec.PodManifest {
		return podspec.PodManifest{
			Name:                         "web",
			AutomountServiceAccountToken: boolPtr(false),
			Containers: []podspec.Container{
				{Image: "nginx:latest", Env: []podspec.EnvVar{{Name: "A", Value: "1"}}},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(p *podspec.PodManifest)
		wantErr error
	}{
		{
			name:   "clean spec is valid",
			mutate: func(*podspec.PodManifest) {},
		},
		{
			name: "secret reference left behind",
			mutate: func(p *podspec.PodManifest) {
				p.Containers[0].Env[0].SecretKeyRef = &podspec.KeyRef{Name: "db", Key: "pass"}
			},
			wantErr: podspec.ErrUnresolvedReference,
		},
		{
			name: "env from left behind",
			mutate: func(p *podspec.PodManifest) {
				p.Containers[0].EnvFrom = []podspec.EnvFromSource{{SecretName: "db"}}
			},
			wantErr: podspec.ErrUnresolvedReference,
		},
		{
			name: "service account kept",
			mutate: func(p *podspec.PodManifest) {
				p.ServiceAccountName = "builder"
			},
			wantErr: podspec.ErrIdentityNotStripped,
		},
		{
			name: "automount unset",
			mutate: func(p *podspec.PodManifest) {
				p.AutomountServiceAccountToken = nil
			},
			wantErr: podspec.ErrIdentityNotStripped,
		},
		{
			name: "missing image",
			mutate: func(p *podspec.PodManifest) {
				p.Containers[0].Image = ""
			},
			wantErr: podspec.ErrInvalidSpec,
		},
		{
			name: "blank image",
			mutate: func(p *podspec.PodManifest) {
				p.Containers[0].Image = "  "
			},
			wantErr: podspec.ErrInvalidSpec,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pod := valid()
			tt.mutate(&pod)

			spec := &podspec.SanitizedPodSpec{Pod: pod}

			err := spec.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
