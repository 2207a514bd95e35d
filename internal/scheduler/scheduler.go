// Package scheduler evaluates schedule-triggered workflows against the
// clock. The driver itself is stateless between ticks; an external periodic
// caller (the serve command, or anything else) invokes Tick at most once per
// matching minute and owns duplicate-firing and timezone concerns.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/flowmesh-ai/flowmesh/internal/cron"
	"github.com/flowmesh-ai/flowmesh/internal/engine"
	"github.com/flowmesh-ai/flowmesh/internal/logging"
	"github.com/flowmesh-ai/flowmesh/internal/repository"
	"github.com/flowmesh-ai/flowmesh/pkg/models"
)

// Engine is the slice of the workflow engine the driver needs.
type Engine interface {
	Execute(ctx context.Context, workflowID string, input map[string]any, opts ...engine.ExecuteOption) (*models.Run, error)
}

// TickResult is the per-workflow outcome of one tick.
type TickResult struct {
	WorkflowID string
	RunID      string
	Err        error
}

// Driver lists schedule-triggered workflows and starts the ones whose cron
// expression matches.
type Driver struct {
	workflows repository.WorkflowStore
	engine    Engine
	logger    *logging.Logger
}

// NewDriver creates a Driver.
func NewDriver(workflows repository.WorkflowStore, eng Engine, logger *logging.Logger) *Driver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Driver{workflows: workflows, engine: eng, logger: logger}
}

// Tick evaluates every ACTIVE schedule-triggered workflow against now. One
// workflow's failure never prevents evaluation of its siblings: each failure
// is captured in that workflow's TickResult. Tick itself errors only when
// the workflow listing fails.
func (d *Driver) Tick(ctx context.Context, now time.Time) ([]TickResult, error) {
	workflows, err := d.workflows.ListScheduled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scheduled workflows: %w", err)
	}

	var results []TickResult
	for _, wf := range workflows {
		if !cron.Matches(wf.Trigger.Schedule, now) {
			continue
		}
		result := d.runOne(ctx, wf, now)
		if result.Err != nil {
			d.logger.Warn("scheduled execution failed",
				"workflow_id", wf.ID, "schedule", wf.Trigger.Schedule, "error", result.Err)
		} else {
			d.logger.Info("scheduled execution started",
				"workflow_id", wf.ID, "run_id", result.RunID, "schedule", wf.Trigger.Schedule)
		}
		results = append(results, result)
	}
	return results, nil
}

func (d *Driver) runOne(ctx context.Context, wf *models.Workflow, now time.Time) (result TickResult) {
	result.WorkflowID = wf.ID
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("panic executing workflow %q: %v", wf.ID, r)
		}
	}()

	input := map[string]any{
		"_trigger":     string(models.TriggerTypeSchedule),
		"_schedule":    wf.Trigger.Schedule,
		"_triggeredAt": now.UTC().Format(time.RFC3339),
	}
	run, err := d.engine.Execute(ctx, wf.ID, input, engine.WithTrigger(models.TriggerTypeSchedule))
	if err != nil {
		result.Err = err
		return result
	}
	result.RunID = run.ID
	return result
}
