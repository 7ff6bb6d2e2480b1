package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds all application metrics implementing the golden 4 signals:
// - Latency: How long requests/submissions take
// - Traffic: Request/submission throughput
// - Errors: Rate of failures
// - Saturation: Resource utilization (in-flight submissions, streamed bytes)
type Metrics struct {
	meter metric.Meter

	// HTTP metrics (Latency, Traffic, Errors)
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Submission metrics (Latency, Traffic, Errors, Saturation)
	SubmissionDuration metric.Float64Histogram
	SubmissionsTotal   metric.Int64Counter
	SubmissionsActive  metric.Int64UpDownCounter
	BatchJobs          metric.Int64Histogram

	// Result streaming metrics (Traffic)
	ResultBytesStreamed metric.Int64Counter
	ResultRequestsTotal metric.Int64Counter
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("gridbatch")
	m := &Metrics{meter: meter}

	// HTTP metrics
	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Submission metrics
	m.SubmissionDuration, err = meter.Float64Histogram(
		"submission_duration_seconds",
		metric.WithDescription("Submission duration from acceptance to terminal state in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600, 7200),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SubmissionsTotal, err = meter.Int64Counter(
		"submissions_total",
		metric.WithDescription("Total number of submissions accepted"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SubmissionsActive, err = meter.Int64UpDownCounter(
		"submissions_active",
		metric.WithDescription("Number of submissions occupying a pool worker (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.BatchJobs, err = meter.Int64Histogram(
		"batch_jobs",
		metric.WithDescription("Number of trackable jobs one submitted script expanded into"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 4, 8, 16, 32, 64),
	)
	if err != nil {
		return nil, nil, err
	}

	// Result streaming metrics
	m.ResultBytesStreamed, err = meter.Int64Counter(
		"result_bytes_streamed_total",
		metric.WithDescription("Total result bytes streamed to callers"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ResultRequestsTotal, err = meter.Int64Counter(
		"result_requests_total",
		metric.WithDescription("Total result retrieval requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordSubmissionAccepted records a submission being accepted.
func (m *Metrics) RecordSubmissionAccepted(ctx context.Context) {
	m.SubmissionsTotal.Add(ctx, 1)
}

// RecordSubmissionStarted records a submission occupying a pool worker.
func (m *Metrics) RecordSubmissionStarted(ctx context.Context) {
	m.SubmissionsActive.Add(ctx, 1)
}

// RecordSubmissionStopped records a submission releasing its pool worker.
func (m *Metrics) RecordSubmissionStopped(ctx context.Context) {
	m.SubmissionsActive.Add(ctx, -1)
}

// RecordSubmissionFinished records a submission reaching a terminal state.
func (m *Metrics) RecordSubmissionFinished(ctx context.Context, state string, jobs int, durationSeconds float64) {
	attrs := metric.WithAttributes(stateAttr(state))
	m.SubmissionDuration.Record(ctx, durationSeconds, attrs)
	m.BatchJobs.Record(ctx, int64(jobs), attrs)
}

// RecordResultStream records one result retrieval and the bytes it served.
func (m *Metrics) RecordResultStream(ctx context.Context, statusCode int, bytes int64) {
	m.ResultRequestsTotal.Add(ctx, 1, metric.WithAttributes(statusAttr(statusCode)))
	if bytes > 0 {
		m.ResultBytesStreamed.Add(ctx, bytes)
	}
}
