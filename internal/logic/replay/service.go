// Package replay drives one replay attempt end to end:
//
//	idle -> sanitizing -> gating -> pulling -> isolating -> creating
//	     -> attaching -> starting -> running
//
// Any failure once pulling has begun passes through cleaning-up, which
// removes every resource recorded so far (container before network), and
// ends in failed. The orchestrator does not supervise a running container;
// stopping it is StopCommand.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skillcoder/podreplay/internal/infra/metrics"
	"github.com/skillcoder/podreplay/internal/logic/failure"
	"github.com/skillcoder/podreplay/internal/logic/gate"
	"github.com/skillcoder/podreplay/internal/logic/isolation"
	"github.com/skillcoder/podreplay/internal/logic/labels"
	"github.com/skillcoder/podreplay/internal/logic/netisolation"
	"github.com/skillcoder/podreplay/internal/logic/podspec"
)

// Deps are the collaborators of the orchestrator.
type Deps struct {
	Sanitizer Sanitizer
	Gate      Gate
	Confirmer Confirmer
	Runtime   Runtime
	Networks  NetworkManager
	Observer  Observer
}

type Service struct {
	logger    *slog.Logger
	sanitizer Sanitizer
	gate      Gate
	confirmer Confirmer
	runtime   Runtime
	networks  NetworkManager
	observer  Observer
	opts      Options
	newID     func() string
	now       func() time.Time
}

// New creates a replay orchestrator. A nil Confirmer declines every
// confirmation; a nil Observer is ignored.
func New(logger *slog.Logger, deps Deps, opts Options) *Service {
	if opts.PullTimeout <= 0 {
		opts.PullTimeout = defaultPullTimeout
	}

	if opts.RuntimeTimeout <= 0 {
		opts.RuntimeTimeout = defaultRuntimeTimeout
	}

	if opts.StopTimeout <= 0 {
		opts.StopTimeout = defaultStopTimeout
	}

	if opts.CleanupTimeout <= 0 {
		opts.CleanupTimeout = defaultCleanupTimeout
	}

	return &Service{
		logger:    logger,
		sanitizer: deps.Sanitizer,
		gate:      deps.Gate,
		confirmer: deps.Confirmer,
		runtime:   deps.Runtime,
		networks:  deps.Networks,
		observer:  deps.Observer,
		opts:      opts,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// attempt is the private state of one ReplayCommand call.
type attempt struct {
	owner     labels.Owner
	state     State
	resources Resources
	scan      *gate.Result
	logger    *slog.Logger
}

// ReplayCommand replays the first container of manifest in a sandbox. It
// never retries; on failure every resource it created has been removed (best
// effort) and the returned error is a *failure.Error carrying the cause.
func (s *Service) ReplayCommand(ctx context.Context, manifest *podspec.PodManifest) (*Handle, error) {
	a := s.newAttempt(manifest)

	handle, err := s.run(ctx, a, manifest)
	if err != nil {
		s.transition(ctx, a, StateFailed, err)
		a.logger.ErrorContext(ctx, "replay failed", "reason", err)

		return nil, failure.Wrap(err, "failed to replay pod %s", a.owner.PodName)
	}

	return handle, nil
}

func (s *Service) newAttempt(manifest *podspec.PodManifest) *attempt {
	owner := labels.Owner{
		ReplayID:  s.newID(),
		CreatedAt: s.now(),
	}

	if manifest != nil {
		owner.PodName = manifest.Name
		owner.Namespace = manifest.Namespace
	}

	return &attempt{
		owner: owner,
		state: StateIdle,
		logger: s.logger.With(
			"pod", owner.PodName,
			"namespace", owner.Namespace,
			"replayID", owner.ReplayID,
		),
	}
}

func (s *Service) run(ctx context.Context, a *attempt, manifest *podspec.PodManifest) (*Handle, error) {
	s.transition(ctx, a, StateSanitizing, nil)

	spec, err := s.sanitizer.Sanitize(ctx, manifest)
	if err != nil {
		metrics.RecordReplay(metrics.ReplayFailed)

		return nil, err
	}

	container := spec.Primary()

	s.transition(ctx, a, StateGating, nil)

	if err := s.gateImage(ctx, a, container.Image); err != nil {
		metrics.RecordReplay(metrics.ReplayBlocked)

		return nil, err
	}

	// From here on every failure goes through cleanup.
	handle, err := s.provision(ctx, a, spec)
	if err != nil {
		s.cleanup(ctx, a)
		metrics.RecordReplay(metrics.ReplayFailed)

		return nil, err
	}

	metrics.RecordReplay(metrics.ReplayRunning)

	return handle, nil
}

func (s *Service) gateImage(ctx context.Context, a *attempt, image string) error {
	result, decision := s.gate.Evaluate(ctx, image)
	a.scan = result

	if decision == gate.NeedsConfirmation {
		decision = s.confirmCritical(ctx, a, image, result)
	}

	if decision != gate.Blocked {
		return nil
	}

	if result != nil && result.Skipped {
		return failure.New(fmt.Sprintf("image %s was not scanned", image), ErrScanRequired)
	}

	critical := 0
	if result != nil {
		critical = result.Critical
	}

	return failure.New(fmt.Sprintf("image %s has %d critical vulnerabilities", image, critical), ErrImageBlocked)
}

func (s *Service) confirmCritical(
	ctx context.Context,
	a *attempt,
	image string,
	result *gate.Result,
) gate.Decision {
	if s.confirmer == nil {
		a.logger.WarnContext(ctx, "critical vulnerabilities found and no operator to confirm")

		return gate.Blocked
	}

	question := fmt.Sprintf(
		"Image %s has %d critical and %d high vulnerabilities. Replay anyway?",
		image, result.Critical, result.High,
	)

	ok, err := s.confirmer.Confirm(ctx, question)
	if err != nil {
		a.logger.WarnContext(ctx, "confirmation failed, treating as declined", "reason", err)

		return gate.Blocked
	}

	if !ok {
		a.logger.InfoContext(ctx, "operator declined replay", "critical", result.Critical)

		return gate.Blocked
	}

	a.logger.WarnContext(ctx, "operator accepted critical vulnerabilities", "critical", result.Critical)

	return gate.Proceed
}

func (s *Service) provision(ctx context.Context, a *attempt, spec *podspec.SanitizedPodSpec) (*Handle, error) {
	container := spec.Primary()

	s.transition(ctx, a, StatePulling, nil)

	err := s.call(ctx, s.opts.PullTimeout, func(ctx context.Context) error {
		return s.runtime.PullImageCommand(ctx, container.Image)
	})
	if err != nil {
		return nil, fmt.Errorf("pull image %s: %w", container.Image, err)
	}

	s.transition(ctx, a, StateIsolating, nil)

	cfg := s.opts.Isolation

	if cfg.NetworkIsolation {
		err = s.call(ctx, s.opts.RuntimeTimeout, func(ctx context.Context) error {
			network, err := s.networks.CreateIsolatedNetworkCommand(ctx, a.owner)
			if err != nil {
				return err
			}

			a.resources.NetworkID = network.ID
			a.resources.NetworkName = network.Name

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("isolate: %w", err)
		}

		cfg.NetworkName = a.resources.NetworkName
	}

	req, err := isolation.Build(baseRequest(a.owner, container), cfg)
	if err != nil {
		return nil, fmt.Errorf("build isolation policy: %w", err)
	}

	s.checkMemory(ctx, a, spec.Pod.ObservedMemoryBytes, req.Host.Memory)

	s.transition(ctx, a, StateCreating, nil)

	err = s.call(ctx, s.opts.RuntimeTimeout, func(ctx context.Context) error {
		id, err := s.runtime.CreateContainerCommand(ctx, req)
		if err != nil {
			return err
		}

		a.resources.ContainerID = id
		a.resources.ContainerName = req.Name

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}

	if cfg.NetworkIsolation {
		s.transition(ctx, a, StateAttaching, nil)

		err = s.call(ctx, s.opts.RuntimeTimeout, func(ctx context.Context) error {
			nw := netisolation.Network{ID: a.resources.NetworkID, Name: a.resources.NetworkName}

			return s.runtime.ConnectNetworkCommand(ctx, nw, a.resources.ContainerID)
		})
		if err != nil {
			return nil, fmt.Errorf("attach network %s: %w", a.resources.NetworkName, err)
		}
	}

	s.transition(ctx, a, StateStarting, nil)

	err = s.call(ctx, s.opts.RuntimeTimeout, func(ctx context.Context) error {
		return s.runtime.StartContainerCommand(ctx, a.resources.ContainerID)
	})
	if err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	s.transition(ctx, a, StateRunning, nil)

	a.logger.InfoContext(ctx, "replay running",
		"container", a.resources.ContainerName,
		"containerID", a.resources.ContainerID,
		"network", a.resources.NetworkName,
		"image", container.Image,
	)

	return &Handle{
		ReplayID:      a.owner.ReplayID,
		PodName:       a.owner.PodName,
		Namespace:     a.owner.Namespace,
		ContainerID:   a.resources.ContainerID,
		ContainerName: a.resources.ContainerName,
		Image:         container.Image,
		NetworkID:     a.resources.NetworkID,
		NetworkName:   a.resources.NetworkName,
		Scan:          a.scan,
		State:         StateRunning,
	}, nil
}

// call runs fn with its own deadline so a hung runtime call fails the step.
func (s *Service) call(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return fn(callCtx)
}

func (s *Service) checkMemory(ctx context.Context, a *attempt, observed, limit int64) {
	if observed <= 0 || limit <= 0 || observed <= limit {
		return
	}

	a.logger.WarnContext(ctx, "sandbox memory limit is below the pod's live usage, replay may be OOM-killed",
		"observedBytes", observed,
		"limitBytes", limit,
	)
}

func baseRequest(owner labels.Owner, c podspec.Container) isolation.ContainerRequest {
	env := make([]string, 0, len(c.Env))
	for _, e := range c.Env {
		env = append(env, e.Name+"="+e.Value)
	}

	return isolation.ContainerRequest{
		Name:       labels.ResourceName(owner),
		Image:      c.Image,
		Entrypoint: c.Command,
		Cmd:        c.Args,
		Env:        env,
		WorkingDir: c.WorkingDir,
		Labels:     labels.For(owner),
	}
}

func (s *Service) transition(ctx context.Context, a *attempt, to State, err error) {
	from := a.state
	a.state = to

	a.logger.DebugContext(ctx, "replay state changed", "from", from, "to", to)

	if s.observer == nil {
		return
	}

	s.observer.Transition(ctx, Event{
		ReplayID: a.owner.ReplayID,
		PodName:  a.owner.PodName,
		From:     from,
		To:       to,
		Err:      err,
	})
}
