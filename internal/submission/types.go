package submission

// Request represents a request to submit a batch script.
type Request struct {
	Script      string `json:"script"`
	CallbackURL string `json:"callbackUrl,omitempty"`
}

// Response represents the response when a submission is accepted.
type Response struct {
	ID     string `json:"id"`
	Status string `json:"status"` // "accepted"
}

// Status represents the current state of a submission.
type Status struct {
	ID         string     `json:"id"`
	State      string     `json:"status"`
	Jobs       int        `json:"jobs"`
	Completion Completion `json:"completion,omitempty"`
}

// State constants. A submission moves staging → submitting → polling →
// notifying → done. Terminal states: done, aborted, submission_failed.
const (
	StateStaging          = "staging"
	StateSubmitting       = "submitting"
	StatePolling          = "polling"
	StateNotifying        = "notifying"
	StateDone             = "done"
	StateAborted          = "aborted"
	StateSubmissionFailed = "submission_failed"
)

// Completion describes how batch completion was observed.
type Completion string

const (
	// CompletionConfirmed means every handle reported completion.
	CompletionConfirmed Completion = "confirmed"

	// CompletionAssumed means at least one handle's status check failed
	// and was assumed complete rather than retried.
	CompletionAssumed Completion = "assumed"

	// CompletionTimedOut means the polling budget ran out before every
	// handle reported completion.
	CompletionTimedOut Completion = "timed_out"
)
