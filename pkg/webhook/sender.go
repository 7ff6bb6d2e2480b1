// Package webhook provides the outbound HTTP transport for completion callbacks.
package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Sender performs callback requests over a shared pooled HTTP client.
type Sender struct {
	client *http.Client
}

// NewSender creates a new callback sender with standard transport settings.
func NewSender(timeout time.Duration) *Sender {
	return &Sender{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Ping performs a single GET against url. The request carries no body;
// the submission ID travels in a header so receivers can correlate.
func (s *Sender) Ping(ctx context.Context, url, submissionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if submissionID != "" {
		req.Header.Set("X-Gridbatch-Submission", submissionID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	return &HTTPError{StatusCode: resp.StatusCode}
}

// HTTPError represents a non-2xx callback response.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}
