package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/flowmesh-ai/flowmesh/internal/credentials"
	"github.com/flowmesh-ai/flowmesh/internal/llm"
)

// Built-in node type names.
const (
	NodeTypeHTTP        = "http"
	NodeTypeTransform   = "transform"
	NodeTypeBranch      = "branch"
	NodeTypeDelay       = "delay"
	NodeTypeApproval    = "approval"
	NodeTypeModel       = "model"
	NodeTypeSubworkflow = "subworkflow"
)

// NodeConfig is a decoded, validated node configuration. Each executor
// decodes its own typed struct at compile time; the runner never inspects
// raw config maps per step.
type NodeConfig any

// Executor implements the behavior of one node type.
type Executor interface {
	// Type is the node type string this executor handles.
	Type() string

	// DecodeConfig validates raw node config and returns the typed form.
	// Called once at workflow compile time; errors here are validation
	// errors, surfaced before any run is created.
	DecodeConfig(raw map[string]any) (NodeConfig, error)

	// Execute runs the node against the current context.
	Execute(ctx context.Context, cfg NodeConfig, ec *ExecutionContext) Outcome
}

// Registry maps node type strings to executors. It is built once per engine
// instance; the compiled plan resolves each node's executor at load time.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register adds or replaces the executor for its node type.
func (r *Registry) Register(e Executor) {
	r.executors[e.Type()] = e
}

// Get returns the executor for a node type.
func (r *Registry) Get(nodeType string) (Executor, bool) {
	e, ok := r.executors[nodeType]
	return e, ok
}

// Types returns the registered node type names.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	return types
}

// BuiltinDeps carries the collaborators the built-in executors need.
type BuiltinDeps struct {
	Credentials credentials.Store
	Model       llm.Client
	HTTPClient  *http.Client
	// HTTPTimeout bounds http nodes that do not set their own timeout.
	HTTPTimeout time.Duration
	// ModelTimeout bounds model node invocations.
	ModelTimeout time.Duration
}

// RegisterBuiltins registers the built-in executor set. The sub-workflow
// executor is registered separately by the engine, since it needs a handle
// back to it.
func (r *Registry) RegisterBuiltins(deps BuiltinDeps) {
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}
	if deps.HTTPTimeout <= 0 {
		deps.HTTPTimeout = 30 * time.Second
	}
	if deps.ModelTimeout <= 0 {
		deps.ModelTimeout = 120 * time.Second
	}
	r.Register(&httpExecutor{creds: deps.Credentials, client: deps.HTTPClient, timeout: deps.HTTPTimeout})
	r.Register(&transformExecutor{})
	r.Register(&branchExecutor{})
	r.Register(&delayExecutor{})
	r.Register(&approvalExecutor{})
	r.Register(&modelExecutor{client: deps.Model, timeout: deps.ModelTimeout})
}

// outputNamer lets a config struct override the context binding for the
// node's output. Nodes without an explicit output bind under their node id.
type outputNamer interface {
	outputName() string
}

// decodeConfig strictly decodes a raw config map into out. Unknown fields
// are rejected so typos surface at save time, not mid-run.
func decodeConfig(raw map[string]any, out any) error {
	if raw == nil {
		raw = map[string]any{}
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}
