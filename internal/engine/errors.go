package engine

import "errors"

var (
	// ErrWorkflowNotFound indicates the workflow id resolves to nothing.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrRunNotFound indicates the run id resolves to nothing.
	ErrRunNotFound = errors.New("run not found")

	// ErrNotRunnable indicates the workflow's status forbids starting a run
	// for the requested trigger (e.g. ARCHIVED, or a non-ACTIVE workflow hit
	// via the API or scheduler).
	ErrNotRunnable = errors.New("workflow is not runnable")

	// ErrModeMismatch indicates the trigger does not fit the workflow's mode:
	// chat triggers require CHATFLOW, every other trigger requires STANDARD.
	ErrModeMismatch = errors.New("workflow mode does not match trigger")

	// ErrInvalidGraph is the base error for all graph validation failures.
	// Validation happens before any run record is created or mutated.
	ErrInvalidGraph = errors.New("invalid workflow graph")

	// ErrNotPaused is returned by Resume when the run is not paused. A
	// concurrent resume that loses the status race observes this same error.
	ErrNotPaused = errors.New("run is not paused")

	// ErrNodeMismatch is returned by Resume when the given node id does not
	// match the run's suspension point.
	ErrNodeMismatch = errors.New("node does not match suspension point")

	// ErrNotCancellable is returned by Cancel when the run is already
	// terminal.
	ErrNotCancellable = errors.New("run is not cancellable")

	// ErrDepthExceeded indicates sub-workflow nesting beyond the configured
	// ceiling.
	ErrDepthExceeded = errors.New("sub-workflow depth exceeded")
)
