package models

import (
	"time"
)

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusPaused    RunStatus = "PAUSED"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// StepStatus represents the outcome of a single node attempt.
type StepStatus string

const (
	StepStatusOK        StepStatus = "OK"
	StepStatusError     StepStatus = "ERROR"
	StepStatusSuspended StepStatus = "SUSPENDED"
)

// StepLogEntry records one executed or attempted node. The step log is
// append-only for a given run: entries never shrink or reorder.
type StepLogEntry struct {
	NodeID         string     `json:"nodeId"`
	NodeType       string     `json:"nodeType"`
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
	Status         StepStatus `json:"status"`
	OutputSnapshot any        `json:"outputSnapshot,omitempty"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
}

// Run is one execution attempt of a workflow against one input. A run is
// owned exclusively by the runner while in flight and read-only to external
// callers once its status is terminal.
//
// Invariants: SuspendedAt is non-nil iff Status is PAUSED; CompletedAt is set
// exactly once, on the single transition into a terminal status.
type Run struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflowId"`
	Status      RunStatus      `json:"status"`
	Trigger     TriggerType    `json:"trigger,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	Steps       []StepLogEntry `json:"steps"`
	SuspendedAt *string        `json:"suspendedAt,omitempty"`
	ResumeData  map[string]any `json:"resumeData,omitempty"`

	// Snapshot is the workflow graph captured at run start. In-flight runs
	// execute against this snapshot, so concurrent edits to the workflow
	// definition never affect them.
	Snapshot *Workflow `json:"snapshot,omitempty"`

	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
