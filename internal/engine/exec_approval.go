package engine

import (
	"context"

	"github.com/google/uuid"
)

// ApprovalConfig configures a human-approval node. Execution always parks
// the run; the approver's payload arrives later through Resume and is bound
// under the node's output name.
type ApprovalConfig struct {
	Prompt string `json:"prompt,omitempty"`
	Output string `json:"output,omitempty"`
}

func (c *ApprovalConfig) outputName() string { return c.Output }

type approvalExecutor struct{}

func (e *approvalExecutor) Type() string { return NodeTypeApproval }

func (e *approvalExecutor) DecodeConfig(raw map[string]any) (NodeConfig, error) {
	var cfg ApprovalConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (e *approvalExecutor) Execute(_ context.Context, _ NodeConfig, _ *ExecutionContext) Outcome {
	return Suspend(uuid.NewString())
}
