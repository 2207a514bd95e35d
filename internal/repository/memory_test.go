package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh-ai/flowmesh/pkg/models"
)

func TestMemoryWorkflowStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWorkflowStore()

	wf := &models.Workflow{
		ID:      "wf-1",
		Name:    "First",
		Status:  models.WorkflowStatusActive,
		Trigger: models.Trigger{Type: models.TriggerTypeManual},
	}
	require.NoError(t, store.Create(ctx, wf))
	assert.Error(t, store.Create(ctx, wf), "duplicate create must fail")

	got, err := store.Get(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "First", got.Name)

	// Stored records must not alias caller memory.
	got.Name = "mutated"
	again, err := store.Get(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "First", again.Name)

	wf.Name = "Renamed"
	require.NoError(t, store.Update(ctx, wf))
	got, err = store.Get(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Update(ctx, &models.Workflow{ID: "missing"}), ErrNotFound)
}

func TestMemoryWorkflowStoreListScheduled(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWorkflowStore()

	add := func(id string, status models.WorkflowStatus, trigger models.TriggerType) {
		require.NoError(t, store.Create(ctx, &models.Workflow{
			ID:      id,
			Status:  status,
			Trigger: models.Trigger{Type: trigger, Schedule: "* * * * *"},
		}))
	}
	add("active-cron", models.WorkflowStatusActive, models.TriggerTypeSchedule)
	add("paused-cron", models.WorkflowStatusPaused, models.TriggerTypeSchedule)
	add("active-manual", models.WorkflowStatusActive, models.TriggerTypeManual)

	scheduled, err := store.ListScheduled(ctx)
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, "active-cron", scheduled[0].ID)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryRunStoreSaveNeverWritesStatus(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRunStore()

	run := &models.Run{
		ID:         "run-1",
		WorkflowID: "wf-1",
		Status:     models.RunStatusPending,
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.Create(ctx, run))

	swapped, err := store.TransitionStatus(ctx, "run-1", models.RunStatusPending, models.RunStatusRunning)
	require.NoError(t, err)
	assert.True(t, swapped)

	// A Save carrying a stale in-memory status must not clobber the stored
	// one; status only moves through TransitionStatus.
	run.Status = models.RunStatusPending
	run.Steps = []models.StepLogEntry{{NodeID: "a", Status: models.StepStatusOK}}
	require.NoError(t, store.Save(ctx, run))

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, got.Status)
	assert.Len(t, got.Steps, 1)
}

func TestMemoryRunStoreTransitionStampsCompletion(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRunStore()

	run := &models.Run{
		ID:         "run-1",
		WorkflowID: "wf-1",
		Status:     models.RunStatusPending,
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.Create(ctx, run))

	// Non-terminal transitions leave the completion time alone.
	swapped, err := store.TransitionStatus(ctx, "run-1", models.RunStatusPending, models.RunStatusRunning)
	require.NoError(t, err)
	require.True(t, swapped)
	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Nil(t, got.CompletedAt)

	swapped, err = store.TransitionStatus(ctx, "run-1", models.RunStatusRunning, models.RunStatusCancelled)
	require.NoError(t, err)
	require.True(t, swapped)
	got, err = store.Get(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	stamp := *got.CompletedAt

	// A Save racing the cancel carries a stale nil CompletedAt; it must not
	// null the stamped value.
	run.CompletedAt = nil
	run.Steps = []models.StepLogEntry{{NodeID: "a", Status: models.StepStatusOK}}
	require.NoError(t, store.Save(ctx, run))

	got, err = store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, stamp, *got.CompletedAt)
	assert.Len(t, got.Steps, 1)
}

func TestMemoryRunStoreTransitionStatus(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRunStore()
	require.NoError(t, store.Create(ctx, &models.Run{ID: "run-1", Status: models.RunStatusPaused}))

	swapped, err := store.TransitionStatus(ctx, "run-1", models.RunStatusPaused, models.RunStatusRunning)
	require.NoError(t, err)
	assert.True(t, swapped)

	// Second identical CAS loses: the run is no longer PAUSED.
	swapped, err = store.TransitionStatus(ctx, "run-1", models.RunStatusPaused, models.RunStatusRunning)
	require.NoError(t, err)
	assert.False(t, swapped)

	_, err = store.TransitionStatus(ctx, "missing", models.RunStatusPaused, models.RunStatusRunning)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRunStoreListByWorkflow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRunStore()

	base := time.Now().UTC()
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, store.Create(ctx, &models.Run{
			ID:         id,
			WorkflowID: "wf-1",
			Status:     models.RunStatusCompleted,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.Create(ctx, &models.Run{ID: "other", WorkflowID: "wf-2", StartedAt: base}))

	runs, err := store.ListByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "old", runs[2].ID)
}

func TestMemoryFactStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryFactStore()

	require.NoError(t, store.SaveFacts(ctx, "user-1", "thread-1", []string{"likes go"}))
	require.NoError(t, store.SaveFacts(ctx, "user-1", "thread-2", []string{"in UTC+2"}))

	assert.Equal(t, []string{"likes go", "in UTC+2"}, store.Facts("user-1"))
	assert.Empty(t, store.Facts("user-2"))
}
