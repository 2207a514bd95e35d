// Package repository persists workflow definitions and runs. The run store
// is the single source of truth for run state: every status transition goes
// through a compare-and-swap so concurrent writers (two resume calls, a
// cancel racing a completion) have exactly one winner.
package repository

import (
	"context"
	"errors"

	"github.com/flowmesh-ai/flowmesh/pkg/models"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// WorkflowStore persists workflow definitions.
type WorkflowStore interface {
	// Create inserts a new workflow.
	Create(ctx context.Context, wf *models.Workflow) error
	// Update replaces an existing workflow definition.
	Update(ctx context.Context, wf *models.Workflow) error
	// Get retrieves a workflow by id.
	Get(ctx context.Context, id string) (*models.Workflow, error)
	// List returns all workflows.
	List(ctx context.Context) ([]*models.Workflow, error)
	// ListScheduled returns ACTIVE workflows with a schedule trigger.
	ListScheduled(ctx context.Context) ([]*models.Workflow, error)
}

// RunStore persists runs.
//
// Save never writes the status or completion-time columns: both belong to
// TransitionStatus, so a stale in-memory Run cannot resurrect an overtaken
// state (e.g. un-cancel a run, or null a cancelled run's completion time,
// by saving step output).
type RunStore interface {
	// Create inserts a new run with its initial status.
	Create(ctx context.Context, run *models.Run) error
	// Save persists the run's mutable fields except status and CompletedAt.
	Save(ctx context.Context, run *models.Run) error
	// Get retrieves a run by id.
	Get(ctx context.Context, id string) (*models.Run, error)
	// ListByWorkflow returns runs of a workflow, newest first.
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Run, error)
	// TransitionStatus atomically moves the run from one status to another,
	// reporting whether this caller won the transition. Winning a transition
	// into a terminal status stamps CompletedAt.
	TransitionStatus(ctx context.Context, id string, from, to models.RunStatus) (bool, error)
}

// FactStore persists facts extracted from chatflow conversations.
type FactStore interface {
	SaveFacts(ctx context.Context, userID, threadID string, facts []string) error
}
