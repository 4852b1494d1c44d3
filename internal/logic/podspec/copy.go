package podspec

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// DeepCopy returns a copy sharing no mutable state with m.
func (m *PodManifest) DeepCopy() *PodManifest {
	out := *m

	if m.AutomountServiceAccountToken != nil {
		v := *m.AutomountServiceAccountToken
		out.AutomountServiceAccountToken = &v
	}

	out.ImagePullSecrets = slices.Clone(m.ImagePullSecrets)

	if m.Containers != nil {
		out.Containers = make([]Container, len(m.Containers))
		for i := range m.Containers {
			out.Containers[i] = m.Containers[i].deepCopy()
		}
	}

	return &out
}

func (c Container) deepCopy() Container {
	out := c
	out.Command = slices.Clone(c.Command)
	out.Args = slices.Clone(c.Args)
	out.EnvFrom = slices.Clone(c.EnvFrom)
	out.Limits = maps.Clone(c.Limits)

	if c.Env != nil {
		out.Env = make([]EnvVar, len(c.Env))
		for i := range c.Env {
			out.Env[i] = c.Env[i].deepCopy()
		}
	}

	return out
}

func (e EnvVar) deepCopy() EnvVar {
	out := e

	if e.SecretKeyRef != nil {
		ref := *e.SecretKeyRef
		out.SecretKeyRef = &ref
	}

	if e.ConfigMapKeyRef != nil {
		ref := *e.ConfigMapKeyRef
		out.ConfigMapKeyRef = &ref
	}

	if e.FieldRef != nil {
		ref := *e.FieldRef
		out.FieldRef = &ref
	}

	if e.ResourceFieldRef != nil {
		ref := *e.ResourceFieldRef
		out.ResourceFieldRef = &ref
	}

	return out
}

// Validate enforces the sanitized-spec invariants.
func (s *SanitizedPodSpec) Validate() error {
	if len(s.Pod.Containers) != 1 || strings.TrimSpace(s.Pod.Containers[0].Image) == "" {
		return ErrInvalidSpec
	}

	if s.Pod.ServiceAccountName != "" || s.Pod.DeprecatedServiceAccount != "" {
		return ErrIdentityNotStripped
	}

	if s.Pod.AutomountServiceAccountToken == nil || *s.Pod.AutomountServiceAccountToken {
		return ErrIdentityNotStripped
	}

	c := s.Pod.Containers[0]
	if len(c.EnvFrom) > 0 {
		return fmt.Errorf("container %s: %w", c.Name, ErrUnresolvedReference)
	}

	for _, env := range c.Env {
		if env.HasValueFrom() {
			return fmt.Errorf("env %s: %w", env.Name, ErrUnresolvedReference)
		}
	}

	return nil
}
