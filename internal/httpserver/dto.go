package httpserver

import (
	"time"

	"github.com/skillcoder/podreplay/internal/logic/replay"
)

type replayRequest struct {
	Namespace string `json:"namespace"`
	Pod       string `json:"pod"`
	// Manifest is an inline Pod manifest in YAML or JSON, used instead of
	// fetching Namespace/Pod from the cluster.
	Manifest string `json:"manifest,omitempty"`
}

type sweepRequest struct {
	Pod       string `json:"pod,omitempty"`
	OlderThan string `json:"olderThan,omitempty"`
}

type scanResponse struct {
	Critical   int        `json:"critical"`
	High       int        `json:"high"`
	Medium     int        `json:"medium"`
	Low        int        `json:"low"`
	Unknown    int        `json:"unknown"`
	Skipped    bool       `json:"skipped"`
	SkipReason string     `json:"skipReason,omitempty"`
	ScannedAt  *time.Time `json:"scannedAt,omitempty"`
}

type replayResponse struct {
	ReplayID      string        `json:"replayId"`
	Pod           string        `json:"pod"`
	Namespace     string        `json:"namespace"`
	ContainerID   string        `json:"containerId"`
	ContainerName string        `json:"containerName"`
	Image         string        `json:"image"`
	NetworkID     string        `json:"networkId,omitempty"`
	NetworkName   string        `json:"networkName,omitempty"`
	State         string        `json:"state"`
	Scan          *scanResponse `json:"scan,omitempty"`
}

type sweepResponse struct {
	ContainersRemoved int `json:"containersRemoved"`
	NetworksRemoved   int `json:"networksRemoved"`
	Missing           int `json:"missing"`
	Failed            int `json:"failed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type readyResponse struct {
	Checks map[string]string `json:"checks"`
}

func toReplayResponse(h *replay.Handle) replayResponse {
	out := replayResponse{
		ReplayID:      h.ReplayID,
		Pod:           h.PodName,
		Namespace:     h.Namespace,
		ContainerID:   h.ContainerID,
		ContainerName: h.ContainerName,
		Image:         h.Image,
		NetworkID:     h.NetworkID,
		NetworkName:   h.NetworkName,
		State:         string(h.State),
	}

	if h.Scan != nil {
		out.Scan = &scanResponse{
			Critical:   h.Scan.Critical,
			High:       h.Scan.High,
			Medium:     h.Scan.Medium,
			Low:        h.Scan.Low,
			Unknown:    h.Scan.Unknown,
			Skipped:    h.Scan.Skipped,
			SkipReason: h.Scan.SkipReason,
		}

		if !h.Scan.ScannedAt.IsZero() {
			scannedAt := h.Scan.ScannedAt
			out.Scan.ScannedAt = &scannedAt
		}
	}

	return out
}

func toSweepResponse(r *replay.SweepReport) sweepResponse {
	return sweepResponse{
		ContainersRemoved: r.ContainersRemoved,
		NetworksRemoved:   r.NetworksRemoved,
		Missing:           r.Missing,
		Failed:            r.Failed,
	}
}
