// Package isolation turns an isolation Config into a hardened container
// request. Build is pure: it has no side effects and never weakens the fixed
// security defaults whatever the caller passes in.
package isolation

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Build merges the fixed security defaults with cfg into a copy of base.
func Build(base ContainerRequest, cfg Config) (ContainerRequest, error) {
	out := base
	out.Entrypoint = slices.Clone(base.Entrypoint)
	out.Cmd = slices.Clone(base.Cmd)
	out.Env = slices.Clone(base.Env)
	out.Labels = maps.Clone(base.Labels)

	host := base.Host
	host.Tmpfs = maps.Clone(base.Host.Tmpfs)

	host.Privileged = false
	host.CapAdd = nil
	host.CapDrop = capDrop(cfg.CapDrop)
	host.IpcMode = ModePrivate
	// Empty is the runtime's own PID namespace; "private" is not a valid PID mode.
	host.PidMode = ""

	pids := cfg.PidsLimit
	if pids <= 0 {
		pids = DefaultPidsLimit
	}

	host.PidsLimit = &pids

	if cfg.Memory != "" {
		mem, err := ParseMemory(cfg.Memory)
		if err != nil {
			return ContainerRequest{}, err
		}

		host.Memory = mem
	}

	if cfg.CPUs != 0 {
		shares, err := CPUShares(cfg.CPUs)
		if err != nil {
			return ContainerRequest{}, err
		}

		host.CPUShares = shares
	}

	host.SecurityOpt = securityOpts(base.Host.SecurityOpt, cfg)

	if cfg.ReadOnlyRootfs {
		host.ReadonlyRootfs = true

		if host.Tmpfs == nil {
			host.Tmpfs = make(map[string]string, 1)
		}

		if _, ok := host.Tmpfs[tmpPath]; !ok {
			host.Tmpfs[tmpPath] = tmpOptions
		}
	}

	// Opting out of isolation keeps whatever network mode the caller chose.
	if cfg.NetworkIsolation {
		host.NetworkMode = NetworkModeNone
		if cfg.NetworkName != "" {
			host.NetworkMode = cfg.NetworkName
		}
	}

	out.Host = host

	return out, nil
}

func capDrop(extra []string) []string {
	out := []string{CapAll}

	for _, c := range extra {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || slices.Contains(out, c) {
			continue
		}

		out = append(out, c)
	}

	return out
}

func securityOpts(base []string, cfg Config) []string {
	out := make([]string, 0, len(base)+3)

	for _, opt := range base {
		if relaxes(opt) {
			continue
		}

		out = append(out, opt)
	}

	if cfg.NoNewPrivileges && !slices.Contains(out, "no-new-privileges:true") {
		out = append(out, "no-new-privileges:true")
	}

	if cfg.SeccompProfile != "" {
		out = append(out, "seccomp="+cfg.SeccompProfile)
	}

	if cfg.AppArmorProfile != "" {
		out = append(out, "apparmor="+cfg.AppArmorProfile)
	}

	return out
}

// relaxes reports whether a caller-supplied security option would weaken the
// sandbox.
func relaxes(opt string) bool {
	opt = strings.ToLower(strings.TrimSpace(opt))

	return strings.Contains(opt, "unconfined") ||
		strings.HasPrefix(opt, "label=disable") ||
		strings.HasPrefix(opt, "label:disable") ||
		strings.HasPrefix(opt, "no-new-privileges:false") ||
		strings.HasPrefix(opt, "no-new-privileges=false")
}

// ParseMemory parses a memory size with an optional b, k, m or g suffix
// (1024-based). A trailing "b" or "i" after the unit is accepted, so "512m",
// "512mb" and "512Mi" are equal. A bare number is bytes.
func ParseMemory(s string) (int64, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	if raw == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidMemory)
	}

	raw = strings.TrimSuffix(raw, "i")
	if len(raw) > 1 && raw[len(raw)-1] == 'b' && strings.IndexByte("kmg", raw[len(raw)-2]) >= 0 {
		raw = raw[:len(raw)-1]
	}

	if raw == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMemory, s)
	}

	multiplier := int64(1)

	switch raw[len(raw)-1] {
	case 'b':
		raw = raw[:len(raw)-1]
	case 'k':
		multiplier = 1 << 10
		raw = raw[:len(raw)-1]
	case 'm':
		multiplier = 1 << 20
		raw = raw[:len(raw)-1]
	case 'g':
		multiplier = 1 << 30
		raw = raw[:len(raw)-1]
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value <= 0 || math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMemory, s)
	}

	bytes := value * float64(multiplier)
	if bytes >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidMemory, s)
	}

	return int64(bytes), nil
}

// CPUShares converts a core count to the runtime's relative weight.
func CPUShares(cpus float64) (int64, error) {
	if cpus <= 0 || math.IsInf(cpus, 0) || math.IsNaN(cpus) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCPUs, cpus)
	}

	return int64(math.Round(cpus * cpuShareUnit)), nil
}
