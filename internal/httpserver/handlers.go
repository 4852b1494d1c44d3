package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skillcoder/podreplay/internal/logic/podspec"
	"github.com/skillcoder/podreplay/internal/logic/replay"
)

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if s.inShutdown.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)

		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleReadyz pings every dependency and reports each result.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	status := http.StatusOK
	if s.inShutdown.Load() {
		status = http.StatusServiceUnavailable
	}

	resp := readyResponse{Checks: make(map[string]string, len(s.deps.Checks))}

	for _, check := range s.deps.Checks {
		if err := check.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "readiness check failed", "check", check.Name(), "reason", err)
			resp.Checks[check.Name()] = err.Error()
			status = http.StatusServiceUnavailable

			continue
		}

		resp.Checks[check.Name()] = "ok"
	}

	s.writeJSON(r.Context(), w, status, resp)
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req replayRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(ctx, w, err)

		return
	}

	manifest, err := s.resolveManifest(ctx, req)
	if err != nil {
		s.writeError(ctx, w, err)

		return
	}

	handle, err := s.deps.Replays.ReplayCommand(ctx, manifest)
	if err != nil {
		s.writeError(ctx, w, err)

		return
	}

	s.writeJSON(ctx, w, http.StatusCreated, toReplayResponse(handle))
}

func (s *Server) resolveManifest(ctx context.Context, req replayRequest) (*podspec.PodManifest, error) {
	inline := strings.TrimSpace(req.Manifest) != ""

	switch {
	case inline && (req.Namespace != "" || req.Pod != ""):
		return nil, fmt.Errorf("%w: %w", errBadRequest, errAmbiguousSource)
	case inline:
		if s.deps.Decode == nil {
			return nil, fmt.Errorf("%w: inline %w", errBadRequest, errSourceDisabled)
		}

		manifest, err := s.deps.Decode([]byte(req.Manifest))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errBadRequest, err)
		}

		return manifest, nil
	case req.Namespace == "" || req.Pod == "":
		return nil, fmt.Errorf("%w: %w", errBadRequest, errMissingPodName)
	case s.deps.Pods == nil:
		return nil, fmt.Errorf("%w: cluster %w", errBadRequest, errSourceDisabled)
	}

	manifest, err := s.deps.Pods.GetPodQuery(ctx, req.Namespace, req.Pod)
	if err != nil {
		return nil, fmt.Errorf("get pod %s/%s: %w", req.Namespace, req.Pod, err)
	}

	return manifest, nil
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := s.deps.Replays.StopCommand(ctx, id); err != nil {
		s.writeError(ctx, w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sweepRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(ctx, w, err)

		return
	}

	filter := replay.SweepFilter{PodName: req.Pod}

	if req.OlderThan != "" {
		olderThan, err := time.ParseDuration(req.OlderThan)
		if err != nil || olderThan < 0 {
			s.writeError(ctx, w, fmt.Errorf("%w: invalid olderThan %q", errBadRequest, req.OlderThan))

			return
		}

		filter.OlderThan = olderThan
	}

	report, err := s.deps.Replays.SweepCommand(ctx, filter)
	if err != nil {
		s.writeError(ctx, w, err)

		return
	}

	s.writeJSON(ctx, w, http.StatusOK, toSweepResponse(report))
}

// decodeBody reads a single JSON object. An empty body yields io.EOF
// unwrapped so callers may treat it as "no options".
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body: %w", errBadRequest, err)
		}

		return fmt.Errorf("%w: decode body: %w", errBadRequest, err)
	}

	return nil
}

func statusFor(err error) int {
	var (
		nf notFound
		tm tooManyRequests
	)

	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, podspec.ErrInvalidSpec):
		return http.StatusUnprocessableEntity
	case errors.Is(err, replay.ErrImageBlocked),
		errors.Is(err, replay.ErrScanRequired),
		errors.Is(err, replay.ErrNotManaged):
		return http.StatusForbidden
	case errors.Is(err, replay.ErrContainerMissing), errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &tm):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(ctx, "request failed", "reason", err)
	}

	s.writeJSON(ctx, w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.ErrorContext(ctx, "failed to encode response", "reason", err)
	}
}
