// Package netisolation manages the per-replay internal networks. Every
// network is labeled with the isolated marker and its owning pod, so removal
// works from labels alone and never needs in-memory replay state.
package netisolation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/skillcoder/podreplay/internal/infra/metrics"
	"github.com/skillcoder/podreplay/internal/logic/labels"
)

const bridgeDriver = "bridge"

type Manager struct {
	logger  *slog.Logger
	runtime Runtime
}

// New creates a network isolation manager.
func New(logger *slog.Logger, runtime Runtime) *Manager {
	return &Manager{
		logger:  logger,
		runtime: runtime,
	}
}

// CreateIsolatedNetworkCommand creates an internal bridge network with
// inter-container communication disabled.
func (m *Manager) CreateIsolatedNetworkCommand(
	ctx context.Context,
	owner labels.Owner,
) (*Network, error) {
	spec := NetworkSpec{
		Name:      labels.ResourceName(owner),
		Driver:    bridgeDriver,
		Internal:  true,
		EnableICC: false,
		Labels:    labels.ForNetwork(owner),
	}

	id, err := m.runtime.CreateNetworkCommand(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("create network %s: %w", spec.Name, err)
	}

	m.logger.DebugContext(ctx, "isolated network created",
		"network", spec.Name,
		"id", id,
		"pod", owner.PodName,
	)

	return &Network{
		ID:     id,
		Name:   spec.Name,
		Labels: spec.Labels,
	}, nil
}

// RemoveNetworksByTagCommand removes every isolated network owned by podName.
func (m *Manager) RemoveNetworksByTagCommand(ctx context.Context, podName string) (*RemoveReport, error) {
	return m.RemoveNetworksCommand(ctx, labels.Filter{Selector: labels.PodSelector(podName)})
}

// RemoveNetworksCommand removes every isolated network passing filter.
// Individual failures are logged and counted; only a failed listing is
// returned as an error.
func (m *Manager) RemoveNetworksCommand(ctx context.Context, filter labels.Filter) (*RemoveReport, error) {
	selector := labels.IsolatedNetworkSelector(filter.Selector)

	networks, err := m.runtime.ListNetworksQuery(ctx, selector)
	if err != nil {
		return nil, fmt.Errorf("list networks: %w", err)
	}

	report := &RemoveReport{}

	for _, network := range networks {
		if !filter.Match(network.Labels) {
			continue
		}

		removed, err := m.RemoveNetworkCommand(ctx, network.ID)
		switch {
		case err != nil:
			report.Failed++
		case removed:
			report.Removed++
		default:
			report.Missing++
		}
	}

	metrics.RecordSwept(metrics.KindNetwork, report.Removed)

	return report, nil
}

// RemoveNetworkCommand removes a single network. A network that is already
// gone is not an error; removed is false in that case.
func (m *Manager) RemoveNetworkCommand(ctx context.Context, id string) (bool, error) {
	err := m.runtime.RemoveNetworkCommand(ctx, id)
	if err == nil {
		m.logger.DebugContext(ctx, "network removed", "id", id)

		return true, nil
	}

	var target notFound
	if errors.As(err, &target) {
		m.logger.InfoContext(ctx, "network already removed", "id", id)

		return false, nil
	}

	m.logger.WarnContext(ctx, "failed to remove network", "id", id, "reason", err)
	metrics.RecordCleanupFailure(metrics.KindNetwork)

	return false, fmt.Errorf("remove network %s: %w", id, err)
}
