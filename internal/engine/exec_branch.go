package engine

import (
	"context"
	"fmt"

	"github.com/risor-io/risor"
)

// BranchConfig configures a branch node. The expression is evaluated against
// the context and the boolean result bound as the node's output; the actual
// routing decision is made by the conditions on the node's outgoing edges.
type BranchConfig struct {
	Expression string `json:"expression"`
	Output     string `json:"output,omitempty"`
}

func (c *BranchConfig) outputName() string { return c.Output }

type branchExecutor struct{}

func (e *branchExecutor) Type() string { return NodeTypeBranch }

func (e *branchExecutor) DecodeConfig(raw map[string]any) (NodeConfig, error) {
	var cfg BranchConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.Expression == "" {
		return nil, fmt.Errorf("branch node requires an expression")
	}
	return &cfg, nil
}

func (e *branchExecutor) Execute(ctx context.Context, cfg NodeConfig, ec *ExecutionContext) Outcome {
	c := cfg.(*BranchConfig)
	result, err := risor.Eval(ctx, c.Expression, risor.WithGlobals(ec.Snapshot()))
	if err != nil {
		return Fail("branch node: %v", err)
	}
	return Complete(Bool(result.IsTruthy()))
}
