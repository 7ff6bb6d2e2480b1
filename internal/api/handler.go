// Package api provides the HTTP API handlers and routing for the gridbatch service.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"gridbatch/internal/apperrors"
	"gridbatch/internal/health"
	"gridbatch/internal/observability"
	"gridbatch/internal/results"
	"gridbatch/internal/submission"
)

// maxRequestBodySize limits request body to 2MB to prevent memory exhaustion
const maxRequestBodySize = 2 << 20

// Handler contains HTTP handlers for the gridbatch API
type Handler struct {
	coordinator *submission.Coordinator
	streamer    *results.Streamer
	metrics     *observability.Metrics
	health      *health.Checker
}

// NewHandler creates a new API handler
func NewHandler(coordinator *submission.Coordinator, streamer *results.Streamer, metrics *observability.Metrics, healthChecker *health.Checker) *Handler {
	return &Handler{
		coordinator: coordinator,
		streamer:    streamer,
		metrics:     metrics,
		health:      healthChecker,
	}
}

// SubmitJob handles PUT /v1/jobs. The response returns as soon as staging
// succeeds; the batch runs in the background with fire-and-forget
// semantics.
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	// Limit request body size to prevent memory exhaustion
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req submission.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.coordinator.Submit(r.Context(), &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, resp)
}

// GetSubmission handles GET /v1/submissions/{submissionId}
func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID := r.PathValue("submissionId")
	if submissionID == "" {
		h.writeError(w, http.StatusBadRequest, "Submission ID is required")
		return
	}

	status, err := h.coordinator.Status(submissionID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, status)
}

// GetResults handles GET /v1/results?path=
//
// The body is the raw result bytes, concatenated when the path is a
// directory. The content length is declared before streaming begins; the
// content type is fixed to plain text regardless of payload shape. Absent
// paths return 404 with no body bytes. A read failure before the first
// byte returns 500; once any byte is on the wire the failure is logged
// only, because the status and length are already committed.
func (h *Handler) GetResults(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		h.writeError(w, http.StatusBadRequest, "path parameter is required")
		return
	}

	logger := slog.With("path", path)
	logger.Info("Got request for results")

	rs, err := h.streamer.Resolve(path)
	if err != nil {
		status := apperrors.HTTPStatus(err)
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.Error("Results path does not exist, returning 404")
		} else {
			logger.Error("Unable to resolve results path", "error", err)
		}
		w.WriteHeader(status)
		if h.metrics != nil {
			h.metrics.RecordResultStream(r.Context(), status, 0)
		}
		return
	}

	// The status line is written implicitly with the first streamed byte,
	// keeping the 500 path open until then.
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.FormatInt(rs.Size(), 10))

	n, err := rs.WriteTo(w)
	if err != nil {
		if n == 0 {
			w.Header().Del("Content-Length")
			w.WriteHeader(http.StatusInternalServerError)
			logger.Error("Unable to read from DFS", "error", err)
			if h.metrics != nil {
				h.metrics.RecordResultStream(r.Context(), http.StatusInternalServerError, 0)
			}
			return
		}
		// The status and length are already committed; all that is left
		// is to log the failure.
		logger.Error("Unable to read from DFS", "error", err, "written", n)
	}
	if h.metrics != nil {
		h.metrics.RecordResultStream(r.Context(), http.StatusOK, n)
	}

	logger.Info("Done serving results", "bytes", n)
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	response := h.health.Liveness(r.Context())
	h.writeJSON(w, http.StatusOK, response)
}

// Readyz handles GET /readyz - readiness probe.
// Returns 200 if the service is ready to accept traffic.
// Returns 503 if dependencies (engine, filesystem) are unavailable.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleError handles errors from the service layer with appropriate HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	h.writeError(w, status, err.Error())
}
