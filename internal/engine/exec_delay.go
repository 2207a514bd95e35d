package engine

import (
	"context"
	"fmt"
	"time"
)

// DelayConfig configures a delay node.
type DelayConfig struct {
	Seconds float64 `json:"seconds"`
	Output  string  `json:"output,omitempty"`
}

func (c *DelayConfig) outputName() string { return c.Output }

type delayExecutor struct{}

func (e *delayExecutor) Type() string { return NodeTypeDelay }

func (e *delayExecutor) DecodeConfig(raw map[string]any) (NodeConfig, error) {
	var cfg DelayConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.Seconds < 0 {
		return nil, fmt.Errorf("delay node requires a non-negative duration")
	}
	return &cfg, nil
}

func (e *delayExecutor) Execute(ctx context.Context, cfg NodeConfig, _ *ExecutionContext) Outcome {
	c := cfg.(*DelayConfig)
	d := time.Duration(c.Seconds * float64(time.Second))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return Complete(Number(c.Seconds))
	case <-ctx.Done():
		return Fail("delay node: %v", ctx.Err())
	}
}
