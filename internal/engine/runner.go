// Package engine executes workflow graphs: it walks nodes via their
// executors, maintains the execution context, applies conditional edge
// routing and drives the run state machine, including suspension and
// resumption at arbitrary nodes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowmesh-ai/flowmesh/internal/logging"
	"github.com/flowmesh-ai/flowmesh/internal/repository"
	"github.com/flowmesh-ai/flowmesh/pkg/models"
)

const (
	defaultMaxSteps = 1000
	defaultMaxDepth = 5
)

// Engine owns the run store and executor registry. It is constructed once
// and shared by all callers; there is no process-wide engine state.
type Engine struct {
	workflows repository.WorkflowStore
	runs      repository.RunStore
	registry  *Registry
	logger    *logging.Logger
	metrics   *runMetrics
	maxSteps  int
	maxDepth  int
}

// Options configures a new Engine.
type Options struct {
	Workflows repository.WorkflowStore
	Runs      repository.RunStore
	Registry  *Registry
	Logger    *logging.Logger
	// MaxSteps is the runtime ceiling on node executions per run, a backstop
	// behind static cycle detection.
	MaxSteps int
	// MaxDepth bounds sub-workflow nesting.
	MaxDepth int
}

// New creates an Engine and registers the sub-workflow executor against it.
func New(opts Options) (*Engine, error) {
	if opts.Workflows == nil {
		return nil, fmt.Errorf("engine: workflow store required")
	}
	if opts.Runs == nil {
		return nil, fmt.Errorf("engine: run store required")
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
		opts.Registry.RegisterBuiltins(BuiltinDeps{})
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = defaultMaxSteps
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaultMaxDepth
	}
	e := &Engine{
		workflows: opts.Workflows,
		runs:      opts.Runs,
		registry:  opts.Registry,
		logger:    opts.Logger,
		metrics:   newRunMetrics(),
		maxSteps:  opts.MaxSteps,
		maxDepth:  opts.MaxDepth,
	}
	e.registry.Register(&subworkflowExecutor{engine: e})
	return e, nil
}

// Registry returns the engine's executor registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Validate compiles a workflow definition without running it, surfacing
// graph and config errors. Used by the save path and the CLI.
func (e *Engine) Validate(wf *models.Workflow) error {
	_, err := Compile(wf, e.registry)
	return err
}

type executeOptions struct {
	trigger models.TriggerType
	sink    TokenSink
	depth   int
}

// ExecuteOption customizes one execution.
type ExecuteOption func(*executeOptions)

// WithTrigger records which trigger class started the run and applies that
// trigger's eligibility rules.
func WithTrigger(t models.TriggerType) ExecuteOption {
	return func(o *executeOptions) { o.trigger = t }
}

// WithTokenSink attaches a sink receiving incremental tokens from
// streaming-capable nodes (chatflow mode).
func WithTokenSink(sink TokenSink) ExecuteOption {
	return func(o *executeOptions) { o.sink = sink }
}

// withDepth sets the sub-workflow call depth.
func withDepth(depth int) ExecuteOption {
	return func(o *executeOptions) { o.depth = depth }
}

// Execute runs a workflow against an input. Validation failures return an
// error before any run record exists. Node-level failures do not return an
// error: they surface as the returned run's FAILED status and error text.
func (e *Engine) Execute(ctx context.Context, workflowID string, input map[string]any, opts ...ExecuteOption) (*models.Run, error) {
	o := executeOptions{trigger: models.TriggerTypeManual}
	for _, opt := range opts {
		opt(&o)
	}

	wf, err := e.workflows.Get(ctx, workflowID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrWorkflowNotFound, workflowID)
		}
		return nil, fmt.Errorf("load workflow: %w", err)
	}
	if !wf.Runnable(o.trigger) {
		return nil, fmt.Errorf("%w: %q is %s (trigger %s)", ErrNotRunnable, workflowID, wf.Status, o.trigger)
	}
	if chatflow := wf.Mode == models.WorkflowModeChatflow; chatflow != (o.trigger == models.TriggerTypeChat) {
		return nil, fmt.Errorf("%w: %q cannot start via trigger %s", ErrModeMismatch, workflowID, o.trigger)
	}

	plan, err := Compile(wf, e.registry)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	run := &models.Run{
		ID:         uuid.NewString(),
		WorkflowID: wf.ID,
		Status:     models.RunStatusPending,
		Trigger:    o.trigger,
		Input:      input,
		Steps:      []models.StepLogEntry{},
		Snapshot:   wf,
		StartedAt:  now,
	}
	if err := e.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	if _, err := e.runs.TransitionStatus(ctx, run.ID, models.RunStatusPending, models.RunStatusRunning); err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	run.Status = models.RunStatusRunning
	e.metrics.add(ctx, e.metrics.started, wf.ID)
	e.logger.Info("run started", "run_id", run.ID, "workflow_id", wf.ID, "trigger", o.trigger)

	ec := e.seedContext(plan, input, &o)
	if err := e.advance(ctx, plan, run, ec, []string{plan.Entry()}); err != nil {
		return run, err
	}
	return run, nil
}

// Resume re-enters a paused run at its suspension point with caller-supplied
// data. Of two concurrent resumes, exactly one wins the PAUSED→RUNNING
// transition; the loser gets ErrNotPaused.
func (e *Engine) Resume(ctx context.Context, runID, nodeID string, data map[string]any) (*models.Run, error) {
	run, err := e.runs.Get(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("load run: %w", err)
	}
	if run.Status != models.RunStatusPaused {
		return nil, fmt.Errorf("%w: run %q is %s", ErrNotPaused, runID, run.Status)
	}
	if run.SuspendedAt == nil || *run.SuspendedAt != nodeID {
		return nil, fmt.Errorf("%w: run %q is suspended at %q, not %q",
			ErrNodeMismatch, runID, deref(run.SuspendedAt), nodeID)
	}

	swapped, err := e.runs.TransitionStatus(ctx, runID, models.RunStatusPaused, models.RunStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("resume run: %w", err)
	}
	if !swapped {
		return nil, fmt.Errorf("%w: run %q (lost resume race)", ErrNotPaused, runID)
	}
	run.Status = models.RunStatusRunning

	wf := run.Snapshot
	if wf == nil {
		// Runs created before snapshotting fall back to the live definition.
		if wf, err = e.workflows.Get(ctx, run.WorkflowID); err != nil {
			return nil, e.repauseRun(ctx, runID, fmt.Errorf("load workflow for resume: %w", err))
		}
	}
	plan, err := Compile(wf, e.registry)
	if err != nil {
		// Reachable when the process restarts with a different executor set
		// than the one the snapshot was compiled against.
		return nil, e.repauseRun(ctx, runID, err)
	}

	cn, ok := plan.nodes[nodeID]
	if !ok {
		return nil, e.repauseRun(ctx, runID, fmt.Errorf("%w: node %q no longer in graph", ErrNodeMismatch, nodeID))
	}

	ec := e.seedContext(plan, run.Input, &executeOptions{})
	replaySteps(plan, run, ec)

	// The resume payload becomes the suspended node's output.
	resumed := ValueOf(data)
	ec.Set(cn.output, resumed)
	now := time.Now().UTC()
	run.Steps = append(run.Steps, models.StepLogEntry{
		NodeID:         nodeID,
		NodeType:       cn.node.Type,
		StartedAt:      now,
		FinishedAt:     &now,
		Status:         models.StepStatusOK,
		OutputSnapshot: resumed.Interface(),
	})
	run.SuspendedAt = nil
	run.ResumeData = data
	if err := e.runs.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}
	e.metrics.add(ctx, e.metrics.resumed, run.WorkflowID)
	e.logger.Info("run resumed", "run_id", run.ID, "node_id", nodeID)

	next, err := e.route(ctx, cn, ec)
	if err != nil {
		return run, e.failRun(ctx, run, err.Error())
	}
	if err := e.advance(ctx, plan, run, ec, next); err != nil {
		return run, err
	}
	return run, nil
}

// Cancel moves a non-terminal run to CANCELLED. An in-flight runner notices
// the transition at its next step boundary and stops without finalizing.
func (e *Engine) Cancel(ctx context.Context, runID string) (*models.Run, error) {
	run, err := e.runs.Get(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("load run: %w", err)
	}
	for _, from := range []models.RunStatus{models.RunStatusRunning, models.RunStatusPaused, models.RunStatusPending} {
		swapped, err := e.runs.TransitionStatus(ctx, runID, from, models.RunStatusCancelled)
		if err != nil {
			return nil, fmt.Errorf("cancel run: %w", err)
		}
		if swapped {
			now := time.Now().UTC()
			run.Status = models.RunStatusCancelled
			run.SuspendedAt = nil
			run.CompletedAt = &now
			if err := e.runs.Save(ctx, run); err != nil {
				return nil, fmt.Errorf("save run: %w", err)
			}
			e.metrics.add(ctx, e.metrics.cancelled, run.WorkflowID)
			e.logger.Info("run cancelled", "run_id", runID)
			return run, nil
		}
	}
	return nil, fmt.Errorf("%w: run %q is %s", ErrNotCancellable, runID, run.Status)
}

// seedContext builds the initial context: declared defaults first, then the
// input on top.
func (e *Engine) seedContext(plan *Plan, input map[string]any, o *executeOptions) *ExecutionContext {
	ec := NewExecutionContext()
	ec.depth = o.depth
	ec.sink = o.sink
	for _, v := range plan.workflow.Variables {
		if v.Default != nil {
			ec.Set(v.Name, ValueOf(v.Default))
		}
	}
	for name, v := range input {
		ec.Set(name, ValueOf(v))
	}
	return ec
}

// replaySteps rebuilds context state from the persisted step log. This is
// what lets a suspended run hold no engine-side resources: everything needed
// to continue lives in the run record.
func replaySteps(plan *Plan, run *models.Run, ec *ExecutionContext) {
	for _, step := range run.Steps {
		if step.Status != models.StepStatusOK {
			continue
		}
		ec.Set(plan.outputBinding(step.NodeID), ValueOf(step.OutputSnapshot))
	}
}

// advance walks the graph depth-first from the frontier until every branch
// is exhausted, a node suspends, or a node fails. The step log is persisted
// incrementally after every node.
func (e *Engine) advance(ctx context.Context, plan *Plan, run *models.Run, ec *ExecutionContext, frontier []string) error {
	stack := make([]string, 0, len(frontier))
	for i := len(frontier) - 1; i >= 0; i-- {
		stack = append(stack, frontier[i])
	}

	executed := make(map[string]struct{}, len(run.Steps))
	for _, step := range run.Steps {
		if step.Status == models.StepStatusOK {
			executed[step.NodeID] = struct{}{}
		}
	}

	for len(stack) > 0 {
		if len(run.Steps) >= e.maxSteps {
			return e.failRun(ctx, run, fmt.Sprintf("step ceiling of %d exceeded", e.maxSteps))
		}
		if cancelled, err := e.checkCancelled(ctx, run); err != nil {
			return err
		} else if cancelled {
			return nil
		}

		nodeID := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, done := executed[nodeID]; done {
			// Join point reached via a second branch; it already ran.
			continue
		}
		cn := plan.nodes[nodeID]

		started := time.Now().UTC()
		outcome := cn.exec.Execute(ctx, cn.config, ec)
		finished := time.Now().UTC()
		e.metrics.add(ctx, e.metrics.steps, run.WorkflowID)

		switch {
		case outcome.Failed():
			run.Steps = append(run.Steps, models.StepLogEntry{
				NodeID:       nodeID,
				NodeType:     cn.node.Type,
				StartedAt:    started,
				FinishedAt:   &finished,
				Status:       models.StepStatusError,
				ErrorMessage: outcome.Message(),
			})
			return e.failRun(ctx, run, outcome.Message())

		case outcome.Suspended():
			run.Steps = append(run.Steps, models.StepLogEntry{
				NodeID:         nodeID,
				NodeType:       cn.node.Type,
				StartedAt:      started,
				Status:         models.StepStatusSuspended,
				OutputSnapshot: map[string]any{"resumeToken": outcome.ResumeToken()},
			})
			suspended := nodeID
			run.SuspendedAt = &suspended
			swapped, err := e.runs.TransitionStatus(ctx, run.ID, models.RunStatusRunning, models.RunStatusPaused)
			if err != nil {
				return fmt.Errorf("pause run: %w", err)
			}
			if !swapped {
				// Cancelled underneath us; leave the overtaken state alone.
				return e.reloadStatus(ctx, run)
			}
			run.Status = models.RunStatusPaused
			if err := e.runs.Save(ctx, run); err != nil {
				return fmt.Errorf("save run: %w", err)
			}
			e.metrics.add(ctx, e.metrics.paused, run.WorkflowID)
			e.logger.Info("run paused", "run_id", run.ID, "node_id", nodeID)
			return nil

		default:
			v := outcome.Value()
			run.Steps = append(run.Steps, models.StepLogEntry{
				NodeID:         nodeID,
				NodeType:       cn.node.Type,
				StartedAt:      started,
				FinishedAt:     &finished,
				Status:         models.StepStatusOK,
				OutputSnapshot: v.Interface(),
			})
			ec.Set(cn.output, v)
			executed[nodeID] = struct{}{}
			if err := e.runs.Save(ctx, run); err != nil {
				return fmt.Errorf("save run: %w", err)
			}
			next, err := e.route(ctx, cn, ec)
			if err != nil {
				return e.failRun(ctx, run, err.Error())
			}
			for i := len(next) - 1; i >= 0; i-- {
				stack = append(stack, next[i])
			}
		}
	}

	// All branches exhausted: complete.
	now := time.Now().UTC()
	run.Output = plan.outputs(ec)
	run.CompletedAt = &now
	swapped, err := e.runs.TransitionStatus(ctx, run.ID, models.RunStatusRunning, models.RunStatusCompleted)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if !swapped {
		return e.reloadStatus(ctx, run)
	}
	run.Status = models.RunStatusCompleted
	if err := e.runs.Save(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	e.metrics.add(ctx, e.metrics.completed, run.WorkflowID)
	e.logger.Info("run completed", "run_id", run.ID, "steps", len(run.Steps))
	return nil
}

// route selects the next nodes: conditioned edges whose condition holds, or
// the conditionless defaults when none matched.
func (e *Engine) route(ctx context.Context, cn *compiledNode, ec *ExecutionContext) ([]string, error) {
	vars := ec.Snapshot()
	var next []string
	for _, edge := range cn.condEdges {
		ok, err := edge.condition.Evaluate(ctx, vars)
		if err != nil {
			return nil, err
		}
		if ok {
			next = append(next, edge.target)
		}
	}
	if len(next) == 0 {
		next = append(next, cn.defaults...)
	}
	return next, nil
}

// repauseRun returns a resume that failed before any traversal to PAUSED so
// the caller can retry; the suspension point is left untouched. The run must
// hold the RUNNING status this resume just won.
func (e *Engine) repauseRun(ctx context.Context, runID string, cause error) error {
	if _, err := e.runs.TransitionStatus(ctx, runID, models.RunStatusRunning, models.RunStatusPaused); err != nil {
		e.logger.Error("re-pause after failed resume", "run_id", runID, "error", err)
	}
	return cause
}

func (e *Engine) failRun(ctx context.Context, run *models.Run, message string) error {
	now := time.Now().UTC()
	run.Error = message
	run.CompletedAt = &now
	swapped, err := e.runs.TransitionStatus(ctx, run.ID, models.RunStatusRunning, models.RunStatusFailed)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	if !swapped {
		return e.reloadStatus(ctx, run)
	}
	run.Status = models.RunStatusFailed
	if err := e.runs.Save(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	e.metrics.add(ctx, e.metrics.failed, run.WorkflowID)
	e.logger.Warn("run failed", "run_id", run.ID, "error", message)
	return nil
}

// checkCancelled polls run status at step boundaries so a Cancel lands
// between nodes instead of after the whole run.
func (e *Engine) checkCancelled(ctx context.Context, run *models.Run) (bool, error) {
	current, err := e.runs.Get(ctx, run.ID)
	if err != nil {
		return false, fmt.Errorf("load run: %w", err)
	}
	if current.Status == models.RunStatusCancelled {
		run.Status = models.RunStatusCancelled
		run.CompletedAt = current.CompletedAt
		e.logger.Info("run cancelled mid-flight", "run_id", run.ID)
		return true, nil
	}
	return false, nil
}

func (e *Engine) reloadStatus(ctx context.Context, run *models.Run) error {
	current, err := e.runs.Get(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	run.Status = current.Status
	run.CompletedAt = current.CompletedAt
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
