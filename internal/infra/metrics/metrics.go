// Package metrics owns the podreplay Prometheus registry and its counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan outcomes.
const (
	ScanClean    = "clean"
	ScanFindings = "findings"
	ScanSkipped  = "skipped"
)

// Replay outcomes.
const (
	ReplayRunning = "running"
	ReplayFailed  = "failed"
	ReplayBlocked = "blocked"
)

// Resource kinds.
const (
	KindContainer = "container"
	KindNetwork   = "network"
)

// registry holds only podreplay collectors plus the Go and process collectors,
// so /metrics never picks up whatever a dependency registers globally.
var registry = newRegistry()

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return reg
}

// Registry returns the registry the podreplay collectors are registered with.
func Registry() *prometheus.Registry {
	return registry
}

var scansTotal = promauto.With(registry).NewCounterVec(
	prometheus.CounterOpts{
		Name: "podreplay_image_scans_total",
		Help: "Total number of image vulnerability scans by outcome. " +
			"Skipped means the scanner could not run and the gate failed open or closed per policy.",
	},
	[]string{"outcome"},
)

var replaysTotal = promauto.With(registry).NewCounterVec(
	prometheus.CounterOpts{
		Name: "podreplay_replays_total",
		Help: "Total number of replay attempts by final outcome.",
	},
	[]string{"outcome"},
)

var cleanupFailuresTotal = promauto.With(registry).NewCounterVec(
	prometheus.CounterOpts{
		Name: "podreplay_cleanup_failures_total",
		Help: "Total number of runtime resources that could not be removed during cleanup or sweep.",
	},
	[]string{"kind"},
)

var sweptResourcesTotal = promauto.With(registry).NewCounterVec(
	prometheus.CounterOpts{
		Name: "podreplay_swept_resources_total",
		Help: "Total number of tagged runtime resources removed by sweeps.",
	},
	[]string{"kind"},
)

// RecordScan increments the scan counter for outcome.
func RecordScan(outcome string) {
	scansTotal.WithLabelValues(outcome).Inc()
}

// RecordReplay increments the replay counter for outcome.
func RecordReplay(outcome string) {
	replaysTotal.WithLabelValues(outcome).Inc()
}

// RecordCleanupFailure counts a resource of kind left behind by a failed removal.
func RecordCleanupFailure(kind string) {
	cleanupFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordSwept adds n removed resources of kind.
func RecordSwept(kind string, n int) {
	if n <= 0 {
		return
	}

	sweptResourcesTotal.WithLabelValues(kind).Add(float64(n))
}
