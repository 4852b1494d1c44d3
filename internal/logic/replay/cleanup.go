package replay

import (
	"context"
	"fmt"

	"github.com/skillcoder/podreplay/internal/infra/metrics"
	"github.com/skillcoder/podreplay/internal/logic/failure"
	"github.com/skillcoder/podreplay/internal/logic/labels"
)

// cleanup removes the resources of a failed attempt, container first since a
// network cannot be removed while a container is attached. Failures are
// logged and never replace the error that caused the cleanup.
func (s *Service) cleanup(ctx context.Context, a *attempt) {
	s.transition(ctx, a, StateCleaningUp, nil)

	if a.resources.Empty() {
		return
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.CleanupTimeout)
	defer cancel()

	if a.resources.ContainerID != "" {
		if _, err := s.removeContainer(cleanupCtx, a.resources.ContainerID); err != nil {
			a.logger.WarnContext(ctx, "cleanup: container left behind",
				"containerID", a.resources.ContainerID,
				"reason", err,
			)
		}
	}

	if a.resources.NetworkID != "" {
		if _, err := s.networks.RemoveNetworkCommand(cleanupCtx, a.resources.NetworkID); err != nil {
			a.logger.WarnContext(ctx, "cleanup: network left behind",
				"networkID", a.resources.NetworkID,
				"reason", err,
			)
		}
	}

	a.logger.InfoContext(ctx, "cleanup finished",
		"containerID", a.resources.ContainerID,
		"networkID", a.resources.NetworkID,
	)
}

// removeContainer force-removes a container. A container that is already
// gone is not an error; removed is false in that case.
func (s *Service) removeContainer(ctx context.Context, id string) (bool, error) {
	err := s.call(ctx, s.opts.RuntimeTimeout, func(ctx context.Context) error {
		return s.runtime.RemoveContainerCommand(ctx, id)
	})
	if err == nil {
		return true, nil
	}

	if isNotFound(err) {
		s.logger.InfoContext(ctx, "container already removed", "containerID", id)

		return false, nil
	}

	metrics.RecordCleanupFailure(metrics.KindContainer)

	return false, fmt.Errorf("remove container %s: %w", id, err)
}

// SweepCommand removes every tagged container and network passing filter,
// regardless of which process or replay created them. Resources that vanish
// or fail to remove are counted, not returned as errors; only a failed
// listing is.
func (s *Service) SweepCommand(ctx context.Context, filter SweepFilter) (*SweepReport, error) {
	lf := labels.Filter{Selector: labels.ManagedSelector()}
	if filter.PodName != "" {
		lf.Selector = labels.PodSelector(filter.PodName)
	}

	if filter.OlderThan > 0 {
		lf.CreatedBefore = s.now().Add(-filter.OlderThan)
	}

	logger := s.logger.With("sweepPod", filter.PodName, "olderThan", filter.OlderThan)

	var containers []Container

	err := s.call(ctx, s.opts.RuntimeTimeout, func(ctx context.Context) error {
		var err error

		containers, err = s.runtime.ListContainersQuery(ctx, lf.Selector)

		return err
	})
	if err != nil {
		return nil, failure.New("failed to list replay containers", err)
	}

	report := &SweepReport{}

	for _, c := range containers {
		if !lf.Match(c.Labels) {
			continue
		}

		removed, err := s.removeContainer(ctx, c.ID)
		switch {
		case err != nil:
			logger.WarnContext(ctx, "sweep: failed to remove container", "containerID", c.ID, "reason", err)

			report.Failed++
		case removed:
			report.ContainersRemoved++
		default:
			report.Missing++
		}
	}

	metrics.RecordSwept(metrics.KindContainer, report.ContainersRemoved)

	networks, err := s.networks.RemoveNetworksCommand(ctx, lf)
	if err != nil {
		return report, failure.New("failed to sweep replay networks", err)
	}

	report.NetworksRemoved = networks.Removed
	report.Missing += networks.Missing
	report.Failed += networks.Failed

	logger.InfoContext(ctx, "sweep finished",
		"containersRemoved", report.ContainersRemoved,
		"networksRemoved", report.NetworksRemoved,
		"missing", report.Missing,
		"failed", report.Failed,
	)

	return report, nil
}

// StopCommand stops and removes a replay container and the isolated network
// of the same replay. Containers not created by the engine are refused.
func (s *Service) StopCommand(ctx context.Context, containerID string) error {
	var c *Container

	err := s.call(ctx, s.opts.RuntimeTimeout, func(ctx context.Context) error {
		var err error

		c, err = s.runtime.InspectContainerQuery(ctx, containerID)

		return err
	})
	if err != nil {
		if isNotFound(err) {
			return failure.Wrap(ErrContainerMissing, "failed to stop replay %s", containerID)
		}

		return failure.Wrap(err, "failed to stop replay %s", containerID)
	}

	if !labels.Matches(c.Labels, labels.ManagedSelector()) {
		return failure.Wrap(ErrNotManaged, "failed to stop replay %s", containerID)
	}

	logger := s.logger.With("containerID", c.ID, "pod", c.Labels[labels.Pod], "replayID", c.Labels[labels.ReplayID])

	err = s.call(ctx, s.opts.StopTimeout+s.opts.RuntimeTimeout, func(ctx context.Context) error {
		return s.runtime.StopContainerCommand(ctx, c.ID, s.opts.StopTimeout)
	})
	if err != nil && !isNotFound(err) {
		logger.WarnContext(ctx, "graceful stop failed, removing anyway", "reason", err)
	}

	if _, err := s.removeContainer(ctx, c.ID); err != nil {
		return failure.Wrap(err, "failed to stop replay %s", containerID)
	}

	replayID := c.Labels[labels.ReplayID]
	if replayID != "" {
		_, err := s.networks.RemoveNetworksCommand(ctx, labels.Filter{Selector: labels.ReplaySelector(replayID)})
		if err != nil {
			logger.WarnContext(ctx, "failed to remove replay network", "reason", err)
		}
	}

	logger.InfoContext(ctx, "replay stopped")

	return nil
}

// PingQuery checks that the container runtime is reachable.
func (s *Service) PingQuery(ctx context.Context) error {
	err := s.call(ctx, s.opts.RuntimeTimeout, s.runtime.PingQuery)
	if err != nil {
		return failure.New("failed to connect to container runtime", err)
	}

	return nil
}
