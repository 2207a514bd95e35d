package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh-ai/flowmesh/internal/engine"
	"github.com/flowmesh-ai/flowmesh/internal/repository"
	"github.com/flowmesh-ai/flowmesh/pkg/models"
)

// fakeEngine records executions and fails or panics on command.
type fakeEngine struct {
	executed []string
	inputs   []map[string]any
	failOn   map[string]error
	panicOn  map[string]bool
}

func (f *fakeEngine) Execute(ctx context.Context, workflowID string, input map[string]any, opts ...engine.ExecuteOption) (*models.Run, error) {
	if f.panicOn[workflowID] {
		panic("executor blew up")
	}
	if err := f.failOn[workflowID]; err != nil {
		return nil, err
	}
	f.executed = append(f.executed, workflowID)
	f.inputs = append(f.inputs, input)
	return &models.Run{ID: "run-" + workflowID, WorkflowID: workflowID, Status: models.RunStatusCompleted}, nil
}

func scheduledWorkflow(id, schedule string) *models.Workflow {
	return &models.Workflow{
		ID:      id,
		Status:  models.WorkflowStatusActive,
		Trigger: models.Trigger{Type: models.TriggerTypeSchedule, Schedule: schedule},
	}
}

func TestTickMatchesAndExecutes(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryWorkflowStore()
	require.NoError(t, store.Create(ctx, scheduledWorkflow("every-minute", "* * * * *")))
	require.NoError(t, store.Create(ctx, scheduledWorkflow("at-nine", "0 9 * * *")))

	eng := &fakeEngine{}
	driver := NewDriver(store, eng, nil)

	// 10:30 matches only the every-minute workflow.
	at := time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC)
	results, err := driver.Tick(ctx, at)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "every-minute", results[0].WorkflowID)
	assert.Equal(t, "run-every-minute", results[0].RunID)
	assert.NoError(t, results[0].Err)

	require.Len(t, eng.inputs, 1)
	input := eng.inputs[0]
	assert.Equal(t, "schedule", input["_trigger"])
	assert.Equal(t, "* * * * *", input["_schedule"])
	assert.Equal(t, at.UTC().Format(time.RFC3339), input["_triggeredAt"])
}

func TestTickNoMatches(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryWorkflowStore()
	require.NoError(t, store.Create(ctx, scheduledWorkflow("at-nine", "0 9 * * *")))

	driver := NewDriver(store, &fakeEngine{}, nil)
	results, err := driver.Tick(ctx, time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestTickIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryWorkflowStore()
	require.NoError(t, store.Create(ctx, scheduledWorkflow("a-ok", "* * * * *")))
	require.NoError(t, store.Create(ctx, scheduledWorkflow("b-broken", "* * * * *")))
	require.NoError(t, store.Create(ctx, scheduledWorkflow("c-ok", "* * * * *")))

	eng := &fakeEngine{failOn: map[string]error{"b-broken": errors.New("invalid graph")}}
	driver := NewDriver(store, eng, nil)

	results, err := driver.Tick(ctx, time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, results, 3)

	byID := map[string]TickResult{}
	for _, r := range results {
		byID[r.WorkflowID] = r
	}
	assert.NoError(t, byID["a-ok"].Err)
	assert.Error(t, byID["b-broken"].Err)
	assert.NoError(t, byID["c-ok"].Err)
	assert.ElementsMatch(t, []string{"a-ok", "c-ok"}, eng.executed)
}

func TestTickRecoversPanics(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryWorkflowStore()
	require.NoError(t, store.Create(ctx, scheduledWorkflow("boom", "* * * * *")))
	require.NoError(t, store.Create(ctx, scheduledWorkflow("fine", "* * * * *")))

	eng := &fakeEngine{panicOn: map[string]bool{"boom": true}}
	driver := NewDriver(store, eng, nil)

	results, err := driver.Tick(ctx, time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[string]TickResult{}
	for _, r := range results {
		byID[r.WorkflowID] = r
	}
	require.Error(t, byID["boom"].Err)
	assert.Contains(t, byID["boom"].Err.Error(), "panic")
	assert.NoError(t, byID["fine"].Err)
}

func TestTickSkipsMalformedSchedules(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryWorkflowStore()
	require.NoError(t, store.Create(ctx, scheduledWorkflow("bad-cron", "not a cron")))

	eng := &fakeEngine{}
	driver := NewDriver(store, eng, nil)

	results, err := driver.Tick(ctx, time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, eng.executed)
}
