package submission

import (
	"context"
	"log/slog"
	"time"

	"gridbatch/internal/engine"
)

// poller waits for every handle in a batch to report completion.
type poller struct {
	interval time.Duration
	maxWait  time.Duration // 0 = unlimited
}

// await blocks until the batch is complete, sweeping every handle and
// suspending for the configured interval between sweeps. A per-handle
// status-check failure is fail-open: the handle is assumed complete rather
// than retried, which trades a possible premature completion for never
// waiting forever on a broken status check.
//
// Returns ok=false if ctx was cancelled, whether during the suspend phase
// or mid-sweep; the batch is then abandoned silently. Cancellation is never
// fail-opened into an assumed completion.
func (p *poller) await(ctx context.Context, logger *slog.Logger, handles []engine.Handle) (Completion, bool) {
	if len(handles) == 0 {
		return CompletionConfirmed, true
	}

	var deadline time.Time
	if p.maxWait > 0 {
		deadline = time.Now().Add(p.maxWait)
	}

	assumed := false
	for {
		allComplete := true
		for _, h := range handles {
			done, err := h.Completed(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return "", false
				}
				logger.Warn("Unable to check job for completion, assuming it has completed, though it may not have",
					"job", h.ID(), "error", err)
				assumed = true
				continue
			}
			allComplete = allComplete && done
		}

		if allComplete {
			if assumed {
				return CompletionAssumed, true
			}
			return CompletionConfirmed, true
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			logger.Warn("Polling budget exhausted before batch completed", "budget", p.maxWait)
			return CompletionTimedOut, true
		}

		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(p.interval):
		}
	}
}
