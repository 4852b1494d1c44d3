// Package labels defines the tags stamped on every runtime object the replay
// engine creates. Sweeps discover resources through these labels only, so they
// must be applied at creation time, never afterwards.
package labels

import (
	"maps"
	"strconv"
	"strings"
	"time"
)

const (
	prefix = "podreplay.skillcoder.com/"

	Managed   = prefix + "managed"
	Pod       = prefix + "pod"
	Namespace = prefix + "namespace"
	ReplayID  = prefix + "replay-id"
	CreatedAt = prefix + "created-at"
	Isolated  = prefix + "isolated"

	trueValue = "true"
)

// Owner identifies the replay attempt a resource belongs to.
type Owner struct {
	PodName   string
	Namespace string
	ReplayID  string
	CreatedAt time.Time
}

// For returns the full label set for a resource created on behalf of owner.
func For(owner Owner) map[string]string {
	out := map[string]string{
		Managed:  trueValue,
		Pod:      owner.PodName,
		ReplayID: owner.ReplayID,
	}

	if owner.Namespace != "" {
		out[Namespace] = owner.Namespace
	}

	if !owner.CreatedAt.IsZero() {
		out[CreatedAt] = strconv.FormatInt(owner.CreatedAt.Unix(), 10)
	}

	return out
}

// ForNetwork is For plus the isolated marker.
func ForNetwork(owner Owner) map[string]string {
	out := For(owner)
	out[Isolated] = trueValue

	return out
}

// ManagedSelector matches every resource the engine has ever created.
func ManagedSelector() map[string]string {
	return map[string]string{Managed: trueValue}
}

// PodSelector matches every resource created for podName, across replays.
func PodSelector(podName string) map[string]string {
	return map[string]string{
		Managed: trueValue,
		Pod:     podName,
	}
}

// ReplaySelector matches the resources of a single replay attempt.
func ReplaySelector(replayID string) map[string]string {
	return map[string]string{
		Managed:  trueValue,
		ReplayID: replayID,
	}
}

// IsolatedNetworkSelector narrows sel to isolated networks.
func IsolatedNetworkSelector(sel map[string]string) map[string]string {
	out := make(map[string]string, len(sel)+1)
	maps.Copy(out, sel)

	out[Isolated] = trueValue

	return out
}

// CreatedAtFrom parses the creation timestamp label. ok is false when the
// label is absent or malformed.
func CreatedAtFrom(lbls map[string]string) (time.Time, bool) {
	raw, found := lbls[CreatedAt]
	if !found {
		return time.Time{}, false
	}

	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	return time.Unix(sec, 0), true
}

// Matches reports whether lbls contains every key/value in sel.
func Matches(lbls, sel map[string]string) bool {
	for k, v := range sel {
		if lbls[k] != v {
			return false
		}
	}

	return true
}

// Filter selects tagged resources by label and age.
type Filter struct {
	Selector map[string]string
	// CreatedBefore, when set, keeps only resources created strictly before
	// it. Resources without a readable created-at label are kept.
	CreatedBefore time.Time
}

// Match reports whether a resource with lbls passes the filter.
func (f Filter) Match(lbls map[string]string) bool {
	if !Matches(lbls, f.Selector) {
		return false
	}

	if f.CreatedBefore.IsZero() {
		return true
	}

	created, ok := CreatedAtFrom(lbls)
	if !ok {
		return true
	}

	return created.Before(f.CreatedBefore)
}

const (
	namePrefix     = "podreplay-"
	maxPodNameLen  = 40
	replayIDPrefix = 8
)

// ResourceName builds a runtime-safe object name for owner.
func ResourceName(owner Owner) string {
	var b strings.Builder

	for _, r := range strings.ToLower(owner.PodName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}

		if b.Len() >= maxPodNameLen {
			break
		}
	}

	pod := strings.Trim(b.String(), "-._")
	if pod == "" {
		pod = "pod"
	}

	id := owner.ReplayID
	if len(id) > replayIDPrefix {
		id = id[:replayIDPrefix]
	}

	if id == "" {
		return namePrefix + pod
	}

	return namePrefix + pod + "-" + id
}
