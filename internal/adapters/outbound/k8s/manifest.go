package k8s

import (
	"bytes"
	"fmt"
	"os"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/yaml"

	"github.com/skillcoder/podreplay/internal/logic/podspec"
)

const podKind = "Pod"

// DecodeManifest parses a YAML or JSON Pod manifest. Unknown fields are
// ignored; a manifest of another kind is rejected.
func DecodeManifest(data []byte) (*podspec.PodManifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyManifest
	}

	var pod corev1.Pod
	if err := yaml.Unmarshal(data, &pod); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	if pod.Kind != "" && pod.Kind != podKind {
		return nil, fmt.Errorf("%w: kind %s", errNotAPod, pod.Kind)
	}

	return ToPodManifest(&pod), nil
}

// LoadManifestFile reads and decodes a Pod manifest from path.
func LoadManifestFile(path string) (*podspec.PodManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	manifest, err := DecodeManifest(data)
	if err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", path, err)
	}

	return manifest, nil
}
