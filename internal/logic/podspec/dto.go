// Package podspec is the domain model of a Pod manifest as the replay engine
// sees it. Manifests come from the cluster or from a file and are untrusted:
// every field is optional and readers must tolerate absent structure.
package podspec

// PodManifest is a read-only view of a Kubernetes Pod.
type PodManifest struct {
	Kind       string
	APIVersion string
	Name       string
	Namespace  string

	ServiceAccountName           string
	DeprecatedServiceAccount     string
	AutomountServiceAccountToken *bool
	NodeName                     string
	ImagePullSecrets             []string

	Containers []Container

	// ObservedMemoryBytes is the pod's live memory usage as reported by
	// metrics-server, 0 when unknown.
	ObservedMemoryBytes int64
}

type Container struct {
	Name       string
	Image      string
	Command    []string
	Args       []string
	WorkingDir string
	Env        []EnvVar
	EnvFrom    []EnvFromSource
	Limits     map[string]string
}

// EnvVar holds either a literal Value or exactly one value-from reference.
type EnvVar struct {
	Name             string
	Value            string
	SecretKeyRef     *KeyRef
	ConfigMapKeyRef  *KeyRef
	FieldRef         *FieldRef
	ResourceFieldRef *ResourceFieldRef
}

type KeyRef struct {
	Name string
	Key  string
}

type FieldRef struct {
	FieldPath string
}

type ResourceFieldRef struct {
	Resource string
}

// EnvFromSource imports every key of a ConfigMap or Secret.
type EnvFromSource struct {
	Prefix        string
	ConfigMapName string
	SecretName    string
}

// HasValueFrom reports whether the variable still references external data.
func (e EnvVar) HasValueFrom() bool {
	return e.SecretKeyRef != nil ||
		e.ConfigMapKeyRef != nil ||
		e.FieldRef != nil ||
		e.ResourceFieldRef != nil
}

// SanitizedPodSpec is a PodManifest stripped of cluster identity with every
// environment entry resolved to a literal. Only the first declared container
// is kept: a replay executes exactly one container.
type SanitizedPodSpec struct {
	Pod PodManifest
}

// Primary returns the container that will be replayed.
func (s *SanitizedPodSpec) Primary() Container {
	return s.Pod.Containers[0]
}
