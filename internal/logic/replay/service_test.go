package replay_test

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skillcoder/podreplay/internal/logic/gate"
	"github.com/skillcoder/podreplay/internal/logic/isolation"
	"github.com/skillcoder/podreplay/internal/logic/labels"
	"github.com/skillcoder/podreplay/internal/logic/netisolation"
	"github.com/skillcoder/podreplay/internal/logic/podspec"
	"github.com/skillcoder/podreplay/internal/logic/replay"
	"github.com/skillcoder/podreplay/internal/logic/sanitizer"
	"github.com/skillcoder/podreplay/internal/testutil/fakeruntime"
)

type stubGate struct {
	result   *gate.Result
	decision gate.Decision
}

func (g *stubGate) Evaluate(_ context.Context, imageRef string) (*gate.Result, gate.Decision) {
	result := *g.result
	result.Image = imageRef

	return &result, g.decision
}

type stubConfirmer struct {
	answer    bool
	err       error
	questions []string
}

func (c *stubConfirmer) Confirm(_ context.Context, question string) (bool, error) {
	c.questions = append(c.questions, question)

	return c.answer, c.err
}

type recordingObserver struct {
	mu     sync.Mutex
	events []replay.Event
}

func (o *recordingObserver) Transition(_ context.Context, event replay.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.events = append(o.events, event)
}

func (o *recordingObserver) states() []replay.State {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]replay.State, 0, len(o.events))
	for _, e := range o.events {
		out = append(out, e.To)
	}

	return out
}

func (o *recordingObserver) last() replay.Event {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.events[len(o.events)-1]
}

type fixture struct {
	runtime   *fakeruntime.Runtime
	confirmer *stubConfirmer
	observer  *recordingObserver
	service   *replay.Service
}

func newFixture(t *testing.T, g replay.Gate) *fixture {
	t.Helper()

	return newFixtureWithOptions(t, g, replay.Options{Isolation: isolation.DefaultConfig()})
}

func newFixtureWithOptions(t *testing.T, g replay.Gate, opts replay.Options) *fixture {
	t.Helper()

	logger := slog.Default()
	runtime := fakeruntime.New()
	confirmer := &stubConfirmer{}
	observer := &recordingObserver{}

	service := replay.New(logger, replay.Deps{
		Sanitizer: sanitizer.New(logger, sanitizer.Placeholder{}),
		Gate:      g,
		Confirmer: confirmer,
		Runtime:   runtime,
		Networks:  netisolation.New(logger, runtime),
		Observer:  observer,
	}, opts)

	return &fixture{
		runtime:   runtime,
		confirmer: confirmer,
		observer:  observer,
		service:   service,
	}
}

func cleanGate() *stubGate {
	return &stubGate{result: &gate.Result{}, decision: gate.Proceed}
}

func nginxManifest() *podspec.PodManifest {
	return &podspec.PodManifest{
		Kind:               "Pod",
		Name:               "web",
		Namespace:          "shop",
		ServiceAccountName: "web-sa",
		Containers: []podspec.Container{{
			Name:  "nginx",
			Image: "nginx:latest",
			Env: []podspec.EnvVar{
				{Name: "MODE", Value: "debug"},
				{Name: "DB_PASS", SecretKeyRef: &podspec.KeyRef{Name: "db", Key: "pass"}},
			},
		}},
	}
}

func TestService_ReplayCommand_Placeholder(t *testing.T) {
	t.Parallel()

	f := newFixture(t, cleanGate())

	handle, err := f.service.ReplayCommand(t.Context(), nginxManifest())
	require.NoError(t, err)
	require.Equal(t, replay.StateRunning, handle.State)
	require.Equal(t, "nginx:latest", handle.Image)
	require.Equal(t, "web", handle.PodName)
	require.NotEmpty(t, handle.NetworkID)

	containers := f.runtime.Containers()
	require.Len(t, containers, 1)

	ctr := containers[0]
	require.True(t, ctr.Running)
	require.Contains(t, ctr.Request.Env, "DB_PASS=PLACEHOLDER_db_pass")
	require.Contains(t, ctr.Request.Env, "MODE=debug")
	require.Equal(t, []string{handle.NetworkID}, ctr.Networks)

	// Labels were present on the create request itself.
	require.Equal(t, "true", ctr.Labels[labels.Managed])
	require.Equal(t, "web", ctr.Labels[labels.Pod])
	require.Equal(t, handle.ReplayID, ctr.Labels[labels.ReplayID])

	networks := f.runtime.Networks()
	require.Len(t, networks, 1)
	require.True(t, networks[0].Spec.Internal)
	require.False(t, networks[0].Spec.EnableICC)
	require.Equal(t, "true", networks[0].Labels[labels.Isolated])

	require.False(t, ctr.Request.Host.Privileged)
	require.Contains(t, ctr.Request.Host.CapDrop, isolation.CapAll)
	require.Equal(t, handle.NetworkName, ctr.Request.Host.NetworkMode)

	require.Equal(t, []replay.State{
		replay.StateSanitizing,
		replay.StateGating,
		replay.StatePulling,
		replay.StateIsolating,
		replay.StateCreating,
		replay.StateAttaching,
		replay.StateStarting,
		replay.StateRunning,
	}, f.observer.states())
}

func TestService_ReplayCommand_CriticalDeclined(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubGate{
		result:   &gate.Result{Critical: 2},
		decision: gate.NeedsConfirmation,
	})
	f.confirmer.answer = false

	handle, err := f.service.ReplayCommand(t.Context(), nginxManifest())
	require.Error(t, err)
	require.Nil(t, handle)
	require.ErrorIs(t, err, replay.ErrImageBlocked)
	require.Contains(t, err.Error(), "critical vulnerabilities")
	require.Len(t, f.confirmer.questions, 1)

	require.Zero(t, f.runtime.Tagged())
	require.Zero(t, f.runtime.Calls(fakeruntime.OpPull))
	require.Equal(t, replay.StateFailed, f.observer.last().To)
	require.Error(t, f.observer.last().Err)
}

func TestService_ReplayCommand_CriticalConfirmed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubGate{
		result:   &gate.Result{Critical: 1},
		decision: gate.NeedsConfirmation,
	})
	f.confirmer.answer = true

	handle, err := f.service.ReplayCommand(t.Context(), nginxManifest())
	require.NoError(t, err)
	require.Equal(t, 1, handle.Scan.Critical)
}

func TestService_ReplayCommand_ConfirmationError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubGate{
		result:   &gate.Result{Critical: 1},
		decision: gate.NeedsConfirmation,
	})
	f.confirmer.err = errors.New("stdin closed")

	_, err := f.service.ReplayCommand(t.Context(), nginxManifest())
	require.ErrorIs(t, err, replay.ErrImageBlocked)
	require.Zero(t, f.runtime.Tagged())
}

func TestService_ReplayCommand_AllowCritical(t *testing.T) {
	t.Parallel()

	// The gate already applied AllowCriticalVulnerabilities and proceeds.
	f := newFixture(t, &stubGate{
		result:   &gate.Result{Critical: 4, High: 1},
		decision: gate.Proceed,
	})

	handle, err := f.service.ReplayCommand(t.Context(), nginxManifest())
	require.NoError(t, err)
	require.Equal(t, replay.StateRunning, handle.State)
	require.Empty(t, f.confirmer.questions)

	require.Equal(t, 1, f.runtime.Calls(fakeruntime.OpPull))
	require.Equal(t, 1, f.runtime.Calls(fakeruntime.OpCreateContainer))
	require.Equal(t, 1, f.runtime.Calls(fakeruntime.OpStart))
	require.Equal(t, []string{"nginx:latest"}, f.runtime.Pulled())
}

func TestService_ReplayCommand_SkippedScanFailClosed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubGate{
		result:   &gate.Result{Skipped: true, SkipReason: "trivy not found"},
		decision: gate.Blocked,
	})

	_, err := f.service.ReplayCommand(t.Context(), nginxManifest())
	require.ErrorIs(t, err, replay.ErrScanRequired)
	require.Zero(t, f.runtime.Calls(fakeruntime.OpPull))
}

func TestService_ReplayCommand_InvalidSpec(t *testing.T) {
	t.Parallel()

	f := newFixture(t, cleanGate())

	manifest := nginxManifest()
	manifest.Containers = nil

	_, err := f.service.ReplayCommand(t.Context(), manifest)
	require.ErrorIs(t, err, podspec.ErrInvalidSpec)
	require.Empty(t, f.runtime.Order())
	require.NotContains(t, f.observer.states(), replay.StateCleaningUp)
}

type injectCase struct {
	name          string
	giveOp        string
	giveBlock     bool
	wantErr       error
	wantStateSeen replay.State
}

func TestService_ReplayCommand_FailureLeavesNothingTagged(t *testing.T) {
	t.Parallel()

	tests := []injectCase{
		{name: "pull", giveOp: fakeruntime.OpPull, wantStateSeen: replay.StatePulling},
		{name: "create network", giveOp: fakeruntime.OpCreateNetwork, wantStateSeen: replay.StateIsolating},
		{name: "create container", giveOp: fakeruntime.OpCreateContainer, wantStateSeen: replay.StateCreating},
		{name: "attach", giveOp: fakeruntime.OpConnect, wantStateSeen: replay.StateAttaching},
		{name: "start", giveOp: fakeruntime.OpStart, wantStateSeen: replay.StateStarting},
		{
			name:          "start hangs past step timeout",
			giveOp:        fakeruntime.OpStart,
			giveBlock:     true,
			wantErr:       context.DeadlineExceeded,
			wantStateSeen: replay.StateStarting,
		},
		{
			name:          "create container hangs past step timeout",
			giveOp:        fakeruntime.OpCreateContainer,
			giveBlock:     true,
			wantErr:       context.DeadlineExceeded,
			wantStateSeen: replay.StateCreating,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixtureWithOptions(t, cleanGate(), replay.Options{
				Isolation:      isolation.DefaultConfig(),
				RuntimeTimeout: 50 * time.Millisecond,
			})

			wantErr := tt.wantErr
			if tt.giveBlock {
				f.runtime.BlockOn(tt.giveOp)
			} else {
				f.runtime.FailOn(tt.giveOp, nil)
				wantErr = fakeruntime.ErrInjected
			}

			handle, err := f.service.ReplayCommand(t.Context(), nginxManifest())
			require.Error(t, err)
			require.Nil(t, handle)
			require.ErrorIs(t, err, wantErr)

			states := f.observer.states()
			require.Contains(t, states, tt.wantStateSeen)
			require.NotContains(t, states, replay.StateRunning)
			require.Equal(t, replay.StateCleaningUp, states[len(states)-2])
			require.Equal(t, replay.StateFailed, states[len(states)-1])

			require.Zero(t, f.runtime.Tagged())

			report, err := f.service.SweepCommand(t.Context(), replay.SweepFilter{PodName: "web"})
			require.NoError(t, err)
			require.Zero(t, report.ContainersRemoved)
			require.Zero(t, report.NetworksRemoved)
		})
	}
}

func TestService_ReplayCommand_Concurrent(t *testing.T) {
	t.Parallel()

	const replays = 20

	f := newFixture(t, cleanGate())

	var wg sync.WaitGroup

	errs := make(chan error, replays)

	for range replays {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := f.service.ReplayCommand(t.Context(), nginxManifest())
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	// One container and one network per replay.
	require.Equal(t, 2*replays, f.runtime.Tagged())
	require.Len(t, f.runtime.Containers(), replays)
	require.Len(t, f.runtime.Networks(), replays)

	for _, c := range f.runtime.Containers() {
		require.True(t, c.Running)
		require.Len(t, c.Networks, 1)
	}
}

func TestService_Cleanup_ContainerBeforeNetwork(t *testing.T) {
	t.Parallel()

	f := newFixture(t, cleanGate())
	f.runtime.FailOn(fakeruntime.OpStart, nil)

	_, err := f.service.ReplayCommand(t.Context(), nginxManifest())
	require.Error(t, err)

	order := f.runtime.Order()
	removeCtr := slices.Index(order, fakeruntime.OpRemoveContainer)
	removeNet := slices.Index(order, fakeruntime.OpRemoveNetwork)

	require.NotEqual(t, -1, removeCtr)
	require.NotEqual(t, -1, removeNet)
	require.Less(t, removeCtr, removeNet)
}

func TestService_Cleanup_FailureKeepsOriginalError(t *testing.T) {
	t.Parallel()

	startErr := errors.New("exec format error")

	f := newFixture(t, cleanGate())
	f.runtime.FailOn(fakeruntime.OpStart, startErr)
	f.runtime.FailOn(fakeruntime.OpRemoveContainer, errors.New("daemon busy"))

	_, err := f.service.ReplayCommand(t.Context(), nginxManifest())
	require.ErrorIs(t, err, startErr)
	require.NotContains(t, err.Error(), "daemon busy")

	// Container and its attached network are left behind for a sweep.
	require.Equal(t, 2, f.runtime.Tagged())

	f.runtime.Heal()

	report, err := f.service.SweepCommand(t.Context(), replay.SweepFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, report.ContainersRemoved)
	require.Equal(t, 1, report.NetworksRemoved)
	require.Zero(t, f.runtime.Tagged())
}

func TestService_SweepCommand(t *testing.T) {
	t.Parallel()

	t.Run("removes only matching pod", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, cleanGate())

		_, err := f.service.ReplayCommand(t.Context(), nginxManifest())
		require.NoError(t, err)

		other := nginxManifest()
		other.Name = "api"

		_, err = f.service.ReplayCommand(t.Context(), other)
		require.NoError(t, err)

		f.runtime.AddContainer("foreign", map[string]string{"app": "unrelated"})

		report, err := f.service.SweepCommand(t.Context(), replay.SweepFilter{PodName: "web"})
		require.NoError(t, err)
		require.Equal(t, 1, report.ContainersRemoved)
		require.Equal(t, 1, report.NetworksRemoved)
		require.Equal(t, 2, f.runtime.Tagged())

		report, err = f.service.SweepCommand(t.Context(), replay.SweepFilter{})
		require.NoError(t, err)
		require.Equal(t, 1, report.ContainersRemoved)
		require.Zero(t, f.runtime.Tagged())
		require.Len(t, f.runtime.Containers(), 1)
	})

	t.Run("older than keeps recent resources", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, cleanGate())

		old := labels.For(labels.Owner{PodName: "web", ReplayID: "old", CreatedAt: time.Now().Add(-3 * time.Hour)})
		f.runtime.AddContainer("old", old)

		recent := labels.For(labels.Owner{PodName: "web", ReplayID: "new"})
		recent[labels.CreatedAt] = strconv.FormatInt(time.Now().Unix(), 10)
		f.runtime.AddContainer("new", recent)

		report, err := f.service.SweepCommand(t.Context(), replay.SweepFilter{OlderThan: time.Hour})
		require.NoError(t, err)
		require.Equal(t, 1, report.ContainersRemoved)

		containers := f.runtime.Containers()
		require.Len(t, containers, 1)
		require.Equal(t, "new", containers[0].ID)
	})

	t.Run("already removed counts as missing", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, cleanGate())
		f.runtime.AddContainer("gone", labels.For(labels.Owner{PodName: "web", ReplayID: "x"}))
		f.runtime.FailOn(fakeruntime.OpRemoveContainer, &fakeruntime.NotFoundError{Kind: "container", ID: "gone"})

		report, err := f.service.SweepCommand(t.Context(), replay.SweepFilter{})
		require.NoError(t, err)
		require.Equal(t, 1, report.Missing)
		require.Zero(t, report.Failed)
	})

	t.Run("removal failure is counted not returned", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, cleanGate())
		f.runtime.AddContainer("stuck", labels.For(labels.Owner{PodName: "web", ReplayID: "x"}))
		f.runtime.FailOn(fakeruntime.OpRemoveContainer, nil)

		report, err := f.service.SweepCommand(t.Context(), replay.SweepFilter{})
		require.NoError(t, err)
		require.Equal(t, 1, report.Failed)
	})

	t.Run("list failure is returned", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, cleanGate())
		f.runtime.FailOn(fakeruntime.OpListContainers, nil)

		_, err := f.service.SweepCommand(t.Context(), replay.SweepFilter{})
		require.ErrorIs(t, err, fakeruntime.ErrInjected)
	})
}

func TestService_StopCommand(t *testing.T) {
	t.Parallel()

	t.Run("stops and removes replay resources", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, cleanGate())

		handle, err := f.service.ReplayCommand(t.Context(), nginxManifest())
		require.NoError(t, err)

		require.NoError(t, f.service.StopCommand(t.Context(), handle.ContainerID))
		require.Equal(t, 1, f.runtime.Calls(fakeruntime.OpStop))
		require.Zero(t, f.runtime.Tagged())
	})

	t.Run("refuses unmanaged container", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, cleanGate())
		f.runtime.AddContainer("db", map[string]string{"app": "postgres"})

		err := f.service.StopCommand(t.Context(), "db")
		require.ErrorIs(t, err, replay.ErrNotManaged)
		require.Len(t, f.runtime.Containers(), 1)
		require.Zero(t, f.runtime.Calls(fakeruntime.OpStop))
	})

	t.Run("missing container", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, cleanGate())

		err := f.service.StopCommand(t.Context(), "nope")
		require.ErrorIs(t, err, replay.ErrContainerMissing)
	})
}

func TestService_PingQuery(t *testing.T) {
	t.Parallel()

	f := newFixture(t, cleanGate())
	require.NoError(t, f.service.PingQuery(t.Context()))

	f.runtime.FailOn(fakeruntime.OpPing, nil)
	require.ErrorIs(t, f.service.PingQuery(t.Context()), fakeruntime.ErrInjected)
}
