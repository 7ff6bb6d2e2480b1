package observability

import (
	"context"
	"testing"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, handler, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	if metrics == nil {
		t.Fatal("Expected metrics to be non-nil")
	}

	if handler == nil {
		t.Fatal("Expected handler to be non-nil")
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordHTTPRequest(ctx, "PUT", "/v1/jobs", 202, 0.050)
	metrics.RecordHTTPRequest(ctx, "GET", "/v1/results", 200, 0.010)
	metrics.RecordHTTPRequest(ctx, "GET", "/v1/results", 404, 0.005)
	metrics.RecordHTTPRequest(ctx, "GET", "/v1/submissions/01J8ZQ", 200, 0.001)
	metrics.RecordHTTPRequest(ctx, "PUT", "/v1/jobs", 500, 0.001)
}

func TestRecordSubmissionMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordSubmissionAccepted(ctx)
	metrics.RecordSubmissionStarted(ctx)
	metrics.RecordSubmissionFinished(ctx, "done", 3, 42.5)
	metrics.RecordSubmissionStopped(ctx)
	metrics.RecordSubmissionFinished(ctx, "submission_failed", 0, 0.2)
	metrics.RecordResultStream(ctx, 200, 4096)
	metrics.RecordResultStream(ctx, 404, 0)
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input    string
		expected string
	}{
		{"/livez", "/livez"},
		{"/v1/jobs", "/v1/jobs"},
		{"/v1/results", "/v1/results"},
		{"/v1/submissions/01J8ZQABC", "/v1/submissions/{submissionId}"},
		{"/other/path", "/other/path"},
	}

	for _, tt := range tests {
		result := normalizePath(tt.input)
		if result != tt.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
