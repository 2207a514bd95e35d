package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowmesh-ai/flowmesh/internal/llm"
)

// ModelConfig configures an AI-model node. Prompt and system support ${...}
// interpolation against the execution context.
type ModelConfig struct {
	Model          string   `json:"model,omitempty"`
	System         string   `json:"system,omitempty"`
	Prompt         string   `json:"prompt"`
	Temperature    *float64 `json:"temperature,omitempty"`
	TimeoutSeconds float64  `json:"timeoutSeconds,omitempty"`
	// Stream forces atomic completion when false even in a chatflow run.
	Stream *bool  `json:"stream,omitempty"`
	Output string `json:"output,omitempty"`
}

func (c *ModelConfig) outputName() string { return c.Output }

type modelExecutor struct {
	client  llm.Client
	timeout time.Duration
}

func (e *modelExecutor) Type() string { return NodeTypeModel }

func (e *modelExecutor) DecodeConfig(raw map[string]any) (NodeConfig, error) {
	var cfg ModelConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.Prompt == "" {
		return nil, fmt.Errorf("model node requires a prompt")
	}
	return &cfg, nil
}

// Execute invokes the model with its own timeout. When the execution context
// carries a token sink (chatflow mode) and streaming is not disabled, tokens
// are forwarded incrementally; the accumulated text is the node's output
// either way.
func (e *modelExecutor) Execute(ctx context.Context, cfg NodeConfig, ec *ExecutionContext) Outcome {
	c := cfg.(*ModelConfig)
	if e.client == nil {
		return Fail("model node: no model provider configured")
	}

	timeout := e.timeout
	if c.TimeoutSeconds > 0 {
		timeout = time.Duration(c.TimeoutSeconds * float64(time.Second))
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt, err := Interpolate(ctx, c.Prompt, ec)
	if err != nil {
		return Fail("model node: %v", err)
	}
	system, err := Interpolate(ctx, c.System, ec)
	if err != nil {
		return Fail("model node: %v", err)
	}

	req := llm.Request{
		Model:       c.Model,
		System:      system.String(),
		Prompt:      prompt.String(),
		Temperature: c.Temperature,
	}

	streaming := ec.Streaming() && (c.Stream == nil || *c.Stream)

	var text string
	if streaming {
		text, err = e.client.Stream(ctx, req, ec.EmitToken)
	} else {
		text, err = e.client.Complete(ctx, req)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Fail("model node: invocation timed out after %s", timeout)
		}
		return Fail("model node: %v", err)
	}
	return Complete(String(text))
}
