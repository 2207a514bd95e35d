package engine

import (
	"context"
	"fmt"

	"github.com/flowmesh-ai/flowmesh/pkg/models"
)

// SubworkflowConfig configures a sub-workflow node. Input values support
// ${...} interpolation against the parent context.
type SubworkflowConfig struct {
	WorkflowID string         `json:"workflowId"`
	Input      map[string]any `json:"input,omitempty"`
	Output     string         `json:"output,omitempty"`
}

func (c *SubworkflowConfig) outputName() string { return c.Output }

// subworkflowExecutor recurses into the engine. The call depth is threaded
// through the ExecutionContext and bounded, so self-referential workflows
// terminate with a failure instead of unbounded recursion.
type subworkflowExecutor struct {
	engine *Engine
}

func (e *subworkflowExecutor) Type() string { return NodeTypeSubworkflow }

func (e *subworkflowExecutor) DecodeConfig(raw map[string]any) (NodeConfig, error) {
	var cfg SubworkflowConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.WorkflowID == "" {
		return nil, fmt.Errorf("subworkflow node requires a workflowId")
	}
	return &cfg, nil
}

func (e *subworkflowExecutor) Execute(ctx context.Context, cfg NodeConfig, ec *ExecutionContext) Outcome {
	c := cfg.(*SubworkflowConfig)

	if ec.Depth()+1 > e.engine.maxDepth {
		return Fail("subworkflow node: %v (max %d)", ErrDepthExceeded, e.engine.maxDepth)
	}

	input := make(map[string]any, len(c.Input))
	for name, raw := range c.Input {
		v, err := InterpolateAny(ctx, raw, ec)
		if err != nil {
			return Fail("subworkflow node: %v", err)
		}
		input[name] = v.Interface()
	}

	run, err := e.engine.Execute(ctx, c.WorkflowID, input,
		WithTrigger(models.TriggerTypeManual),
		withDepth(ec.Depth()+1),
	)
	if err != nil {
		return Fail("subworkflow node: %v", err)
	}
	switch run.Status {
	case models.RunStatusCompleted:
		return Complete(ValueOf(map[string]any{
			"runId":  run.ID,
			"output": run.Output,
		}))
	case models.RunStatusFailed:
		return Fail("subworkflow node: run %s failed: %s", run.ID, run.Error)
	case models.RunStatusPaused:
		// A child pausing cannot park the parent: the parent has no handle
		// to resume through. Treat it as a failure of the composition.
		return Fail("subworkflow node: run %s suspended; sub-workflows must not contain approval nodes", run.ID)
	default:
		return Fail("subworkflow node: run %s ended in unexpected status %s", run.ID, run.Status)
	}
}
