package netisolation_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skillcoder/podreplay/internal/logic/isolation"
	"github.com/skillcoder/podreplay/internal/logic/labels"
	"github.com/skillcoder/podreplay/internal/logic/netisolation"
	"github.com/skillcoder/podreplay/internal/testutil/fakeruntime"
)

func TestManager_CreateIsolatedNetworkCommand(t *testing.T) {
	t.Parallel()

	runtime := fakeruntime.New()
	m := netisolation.New(slog.Default(), runtime)

	owner := labels.Owner{PodName: "web", Namespace: "shop", ReplayID: "0123456789", CreatedAt: time.Now()}

	network, err := m.CreateIsolatedNetworkCommand(t.Context(), owner)
	require.NoError(t, err)
	require.Equal(t, "podreplay-web-01234567", network.Name)

	stored := runtime.Networks()
	require.Len(t, stored, 1)

	spec := stored[0].Spec
	require.Equal(t, "bridge", spec.Driver)
	require.True(t, spec.Internal)
	require.False(t, spec.EnableICC)
	require.Equal(t, "true", stored[0].Labels[labels.Isolated])
	require.Equal(t, "web", stored[0].Labels[labels.Pod])
	require.Equal(t, "0123456789", stored[0].Labels[labels.ReplayID])
}

func TestManager_CreateIsolatedNetworkCommand_Error(t *testing.T) {
	t.Parallel()

	runtime := fakeruntime.New()
	runtime.FailOn(fakeruntime.OpCreateNetwork, nil)

	m := netisolation.New(slog.Default(), runtime)

	_, err := m.CreateIsolatedNetworkCommand(t.Context(), labels.Owner{PodName: "web", ReplayID: "a"})
	require.ErrorIs(t, err, fakeruntime.ErrInjected)
	require.Empty(t, runtime.Networks())
}

func TestManager_RemoveNetworkCommand(t *testing.T) {
	t.Parallel()

	t.Run("removes existing", func(t *testing.T) {
		t.Parallel()

		runtime := fakeruntime.New()
		runtime.AddNetwork("n1", labels.ForNetwork(labels.Owner{PodName: "web"}))

		removed, err := netisolation.New(slog.Default(), runtime).RemoveNetworkCommand(t.Context(), "n1")
		require.NoError(t, err)
		require.True(t, removed)
		require.Empty(t, runtime.Networks())
	})

	t.Run("missing is not an error", func(t *testing.T) {
		t.Parallel()

		removed, err := netisolation.New(slog.Default(), fakeruntime.New()).RemoveNetworkCommand(t.Context(), "n1")
		require.NoError(t, err)
		require.False(t, removed)
	})

	t.Run("in use is reported", func(t *testing.T) {
		t.Parallel()

		runtime := fakeruntime.New()
		m := netisolation.New(slog.Default(), runtime)

		network, err := m.CreateIsolatedNetworkCommand(t.Context(), labels.Owner{PodName: "web", ReplayID: "a"})
		require.NoError(t, err)

		_, err = runtime.CreateContainerCommand(t.Context(), isolation.ContainerRequest{
			Name: "c",
			Host: isolation.HostConfig{NetworkMode: network.Name},
		})
		require.NoError(t, err)

		removed, err := m.RemoveNetworkCommand(t.Context(), network.ID)
		require.ErrorIs(t, err, fakeruntime.ErrNetworkInUse)
		require.False(t, removed)
	})
}

func TestManager_RemoveNetworksCommand(t *testing.T) {
	t.Parallel()

	runtime := fakeruntime.New()
	m := netisolation.New(slog.Default(), runtime)

	old := time.Now().Add(-2 * time.Hour)

	runtime.AddNetwork("web-old", labels.ForNetwork(labels.Owner{PodName: "web", ReplayID: "1", CreatedAt: old}))
	runtime.AddNetwork("web-new", labels.ForNetwork(labels.Owner{PodName: "web", ReplayID: "2", CreatedAt: time.Now()}))
	runtime.AddNetwork("api-old", labels.ForNetwork(labels.Owner{PodName: "api", ReplayID: "3", CreatedAt: old}))
	// Managed but not an isolated network: never touched here.
	runtime.AddNetwork("web-plain", labels.For(labels.Owner{PodName: "web", ReplayID: "4", CreatedAt: old}))
	runtime.AddNetwork("bridge", nil)

	report, err := m.RemoveNetworksCommand(t.Context(), labels.Filter{
		Selector:      labels.PodSelector("web"),
		CreatedBefore: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, 1, report.Removed)

	report, err = m.RemoveNetworksByTagCommand(t.Context(), "web")
	require.NoError(t, err)
	require.Equal(t, 1, report.Removed)

	var left []string
	for _, n := range runtime.Networks() {
		left = append(left, n.ID)
	}

	require.ElementsMatch(t, []string{"api-old", "web-plain", "bridge"}, left)
}

func TestManager_RemoveNetworksCommand_ListError(t *testing.T) {
	t.Parallel()

	runtime := fakeruntime.New()
	runtime.FailOn(fakeruntime.OpListNetworks, nil)

	_, err := netisolation.New(slog.Default(), runtime).RemoveNetworksCommand(t.Context(), labels.Filter{
		Selector: labels.ManagedSelector(),
	})
	require.ErrorIs(t, err, fakeruntime.ErrInjected)
}
