// Package docker implements the replay runtime port on the Docker Engine API.
package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/skillcoder/podreplay/internal/logic/isolation"
	"github.com/skillcoder/podreplay/internal/logic/netisolation"
	"github.com/skillcoder/podreplay/internal/logic/replay"
)

const enableICCOption = "com.docker.network.bridge.enable_icc"

// engineAPI is the subset of the Docker client the adapter uses.
type engineAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(
		ctx context.Context,
		config *container.Config,
		hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig,
		platform *ocispec.Platform,
		containerName string,
	) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error)
	NetworkRemove(ctx context.Context, networkID string) error
	NetworkList(ctx context.Context, options network.ListOptions) ([]network.Summary, error)
	NetworkConnect(ctx context.Context, networkID, containerID string, config *network.EndpointSettings) error
}

type Adapter struct {
	logger *slog.Logger
	api    engineAPI
}

var _ replay.Runtime = (*Adapter)(nil)

// New creates a Docker adapter over api.
func New(logger *slog.Logger, api engineAPI) *Adapter {
	return &Adapter{
		logger: logger,
		api:    api,
	}
}

// NewFromEnv connects using DOCKER_HOST and friends, negotiating the API
// version with the daemon.
func NewFromEnv(logger *slog.Logger) (*Adapter, *client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, nil, fmt.Errorf("create docker client: %w", err)
	}

	return New(logger, cli), cli, nil
}

func (a *Adapter) PingQuery(ctx context.Context) error {
	if _, err := a.api.Ping(ctx); err != nil {
		return fmt.Errorf("ping docker: %w", err)
	}

	return nil
}

// PullImageCommand pulls ref and waits for the pull to finish. Errors
// reported inside the progress stream are returned.
func (a *Adapter) PullImageCommand(ctx context.Context, ref string) error {
	rc, err := a.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return classify(err, "image", ref, "pull image")
	}
	defer rc.Close()

	if err := jsonmessage.DisplayJSONMessagesStream(rc, io.Discard, 0, false, nil); err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}

	a.logger.DebugContext(ctx, "image pulled", "image", ref)

	return nil
}

func (a *Adapter) CreateNetworkCommand(ctx context.Context, spec netisolation.NetworkSpec) (string, error) {
	resp, err := a.api.NetworkCreate(ctx, spec.Name, toNetworkCreateOptions(spec))
	if err != nil {
		return "", fmt.Errorf("create network %s: %w", spec.Name, err)
	}

	if resp.Warning != "" {
		a.logger.WarnContext(ctx, "docker network warning", "network", spec.Name, "warning", resp.Warning)
	}

	return resp.ID, nil
}

func (a *Adapter) RemoveNetworkCommand(ctx context.Context, id string) error {
	if err := a.api.NetworkRemove(ctx, id); err != nil {
		return classify(err, "network", id, "remove network")
	}

	return nil
}

func (a *Adapter) ListNetworksQuery(ctx context.Context, selector map[string]string) ([]netisolation.Network, error) {
	list, err := a.api.NetworkList(ctx, network.ListOptions{Filters: labelFilters(selector)})
	if err != nil {
		return nil, fmt.Errorf("list networks: %w", err)
	}

	out := make([]netisolation.Network, 0, len(list))
	for i := range list {
		out = append(out, netisolation.Network{
			ID:     list[i].ID,
			Name:   list[i].Name,
			Labels: list[i].Labels,
		})
	}

	return out, nil
}

// CreateContainerCommand creates the container with its labels in the same
// API call, so a crash after create never leaves an untagged container.
func (a *Adapter) CreateContainerCommand(ctx context.Context, req isolation.ContainerRequest) (string, error) {
	config, hostConfig := toContainerConfig(req)

	resp, err := a.api.ContainerCreate(ctx, config, hostConfig, nil, nil, req.Name)
	if err != nil {
		return "", classify(err, "image", req.Image, "create container")
	}

	for _, warning := range resp.Warnings {
		a.logger.WarnContext(ctx, "docker container warning", "container", req.Name, "warning", warning)
	}

	return resp.ID, nil
}

// ConnectNetworkCommand attaches the container to the network. It is a no-op
// when the container already joined it at creation.
func (a *Adapter) ConnectNetworkCommand(ctx context.Context, nw netisolation.Network, containerID string) error {
	inspect, err := a.api.ContainerInspect(ctx, containerID)
	if err != nil {
		return classify(err, "container", containerID, "inspect container")
	}

	if attached(inspect, nw) {
		return nil
	}

	if err := a.api.NetworkConnect(ctx, nw.ID, containerID, nil); err != nil {
		return classify(err, "network", nw.ID, "connect network")
	}

	return nil
}

func (a *Adapter) StartContainerCommand(ctx context.Context, id string) error {
	if err := a.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return classify(err, "container", id, "start container")
	}

	return nil
}

func (a *Adapter) StopContainerCommand(ctx context.Context, id string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())

	if err := a.api.ContainerStop(ctx, id, container.StopOptions{Timeout: &seconds}); err != nil {
		return classify(err, "container", id, "stop container")
	}

	return nil
}

// RemoveContainerCommand force-removes the container with its anonymous
// volumes.
func (a *Adapter) RemoveContainerCommand(ctx context.Context, id string) error {
	err := a.api.ContainerRemove(ctx, id, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil {
		return classify(err, "container", id, "remove container")
	}

	return nil
}

func (a *Adapter) InspectContainerQuery(ctx context.Context, id string) (*replay.Container, error) {
	inspect, err := a.api.ContainerInspect(ctx, id)
	if err != nil {
		return nil, classify(err, "container", id, "inspect container")
	}

	return fromInspect(inspect), nil
}

func (a *Adapter) ListContainersQuery(ctx context.Context, selector map[string]string) ([]replay.Container, error) {
	list, err := a.api.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: labelFilters(selector),
	})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	out := make([]replay.Container, 0, len(list))
	for i := range list {
		out = append(out, fromSummary(list[i]))
	}

	return out, nil
}

func labelFilters(selector map[string]string) filters.Args {
	args := filters.NewArgs()
	for k, v := range selector {
		args.Add("label", k+"="+v)
	}

	return args
}

// attached reports whether inspect lists nw. Endpoints are keyed by network
// name; the endpoint's NetworkID stays empty until the container has started.
func attached(inspect container.InspectResponse, nw netisolation.Network) bool {
	if inspect.NetworkSettings == nil {
		return false
	}

	for name, endpoint := range inspect.NetworkSettings.Networks {
		if nw.Name != "" && name == nw.Name {
			return true
		}

		if endpoint != nil && endpoint.NetworkID != "" && endpoint.NetworkID == nw.ID {
			return true
		}
	}

	return false
}

func classify(err error, kind, id, action string) error {
	if client.IsErrNotFound(err) {
		return &NotFoundError{Kind: kind, ID: id, Err: err}
	}

	return fmt.Errorf("%s %s: %w", action, id, err)
}

func trimName(name string) string {
	return strings.TrimPrefix(name, "/")
}
