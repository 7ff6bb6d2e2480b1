// Package notify performs the best-effort completion callback.
package notify

import (
	"context"
	"log/slog"
	"time"

	"gridbatch/pkg/webhook"
)

// Notifier pings a caller-supplied endpoint once per completed batch.
// Delivery is best-effort: one call, no retry, no backoff, and no
// evaluation of the response beyond logging. Correctness of the
// fire-and-forget pipeline depends on this callback and on out-of-band
// log inspection.
type Notifier struct {
	sender *webhook.Sender
}

// New creates a notifier with a shared pooled HTTP client.
func New(timeout time.Duration) *Notifier {
	return &Notifier{sender: webhook.NewSender(timeout)}
}

// Notify performs one outbound call to target. Failures are logged and
// swallowed.
func (n *Notifier) Notify(ctx context.Context, target, submissionID string) {
	logger := slog.With("submissionId", submissionID, "callback", target)

	if err := n.sender.Ping(ctx, target, submissionID); err != nil {
		logger.Warn("Callback delivery failed", "error", err)
		return
	}
	logger.Info("Callback delivered")
}
