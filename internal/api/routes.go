package api

import (
	"net/http"

	"gridbatch/internal/health"
	"gridbatch/internal/observability"
	"gridbatch/internal/results"
	"gridbatch/internal/submission"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Coordinator   *submission.Coordinator
	Streamer      *results.Streamer
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.Coordinator, cfg.Streamer, cfg.Metrics, cfg.HealthChecker)

	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes)
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	// Submission endpoints
	mux.HandleFunc("PUT /v1/jobs", handler.SubmitJob)
	mux.HandleFunc("GET /v1/submissions/{submissionId}", handler.GetSubmission)

	// Result retrieval
	mux.HandleFunc("GET /v1/results", handler.GetResults)

	// Apply middleware chain (order matters: outermost first)
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	h = CORSMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
