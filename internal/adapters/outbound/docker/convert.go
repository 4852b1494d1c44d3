package docker

import (
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/strslice"

	"github.com/skillcoder/podreplay/internal/logic/isolation"
	"github.com/skillcoder/podreplay/internal/logic/netisolation"
	"github.com/skillcoder/podreplay/internal/logic/replay"
)

func toContainerConfig(req isolation.ContainerRequest) (*container.Config, *container.HostConfig) {
	config := &container.Config{
		Image:      req.Image,
		Env:        req.Env,
		WorkingDir: req.WorkingDir,
		Labels:     req.Labels,
	}

	if len(req.Entrypoint) > 0 {
		config.Entrypoint = strslice.StrSlice(req.Entrypoint)
	}

	if len(req.Cmd) > 0 {
		config.Cmd = strslice.StrSlice(req.Cmd)
	}

	h := req.Host

	hostConfig := &container.HostConfig{
		NetworkMode:    container.NetworkMode(h.NetworkMode),
		Privileged:     h.Privileged,
		CapAdd:         strslice.StrSlice(h.CapAdd),
		CapDrop:        strslice.StrSlice(h.CapDrop),
		SecurityOpt:    h.SecurityOpt,
		ReadonlyRootfs: h.ReadonlyRootfs,
		Tmpfs:          h.Tmpfs,
		IpcMode:        container.IpcMode(h.IpcMode),
		PidMode:        container.PidMode(h.PidMode),
		Resources: container.Resources{
			Memory:    h.Memory,
			CPUShares: h.CPUShares,
			PidsLimit: h.PidsLimit,
		},
	}

	return config, hostConfig
}

func toNetworkCreateOptions(spec netisolation.NetworkSpec) network.CreateOptions {
	icc := "false"
	if spec.EnableICC {
		icc = "true"
	}

	return network.CreateOptions{
		Driver:   spec.Driver,
		Internal: spec.Internal,
		Labels:   spec.Labels,
		Options: map[string]string{
			enableICCOption: icc,
		},
	}
}

func fromInspect(inspect container.InspectResponse) *replay.Container {
	out := &replay.Container{}

	if inspect.ContainerJSONBase != nil {
		out.ID = inspect.ID
		out.Name = trimName(inspect.Name)

		if inspect.State != nil {
			out.State = string(inspect.State.Status)
		}
	}

	if inspect.Config != nil {
		out.Image = inspect.Config.Image
		out.Labels = inspect.Config.Labels
	}

	return out
}

func fromSummary(s container.Summary) replay.Container {
	out := replay.Container{
		ID:     s.ID,
		Image:  s.Image,
		State:  string(s.State),
		Labels: s.Labels,
	}

	if len(s.Names) > 0 {
		out.Name = trimName(s.Names[0])
	}

	return out
}
