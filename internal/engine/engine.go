// Package engine defines the Engine interface for the distributed
// execution backend that runs submitted batch scripts.
package engine

import "context"

// Handle is an opaque reference to one schedulable unit of work registered
// with the execution engine. Handles are immutable once issued; their only
// observable mutable property is completion status.
type Handle interface {
	// ID identifies the handle for logging and status queries.
	ID() string

	// Completed reports whether the unit of work has finished executing.
	// Completion is not success: a failed job still reports completed.
	Completed(ctx context.Context) (bool, error)
}

// Engine is the execution backend the service submits staged scripts to.
//
// The engine is the source of truth for job state. The service holds
// handles only in the memory of the background task tracking a batch;
// nothing is persisted on this side.
type Engine interface {
	// SubmitBatch registers a staged script in batch mode, so the logical
	// stages embedded in one script come back as independently trackable
	// handles rather than one opaque unit. The returned slice preserves
	// stage order.
	SubmitBatch(ctx context.Context, scriptPath string) ([]Handle, error)

	// Ready checks that the engine backend is reachable.
	Ready(ctx context.Context) error

	// Close releases resources held by the engine client. Running jobs are
	// not stopped; they continue independently.
	Close() error
}
