package engine

import (
	"context"
	"fmt"

	"github.com/risor-io/risor"
)

// TransformConfig configures a transform node: a script evaluated against
// the execution context whose result becomes the node's output.
type TransformConfig struct {
	Script string `json:"script"`
	Output string `json:"output,omitempty"`
}

func (c *TransformConfig) outputName() string { return c.Output }

type transformExecutor struct{}

func (e *transformExecutor) Type() string { return NodeTypeTransform }

func (e *transformExecutor) DecodeConfig(raw map[string]any) (NodeConfig, error) {
	var cfg TransformConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.Script == "" {
		return nil, fmt.Errorf("transform node requires a script")
	}
	return &cfg, nil
}

func (e *transformExecutor) Execute(ctx context.Context, cfg NodeConfig, ec *ExecutionContext) Outcome {
	c := cfg.(*TransformConfig)
	result, err := risor.Eval(ctx, c.Script, risor.WithGlobals(ec.Snapshot()))
	if err != nil {
		return Fail("transform node: %v", err)
	}
	return Complete(ValueOf(result.Interface()))
}
