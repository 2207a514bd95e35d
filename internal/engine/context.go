package engine

// TokenSink receives incremental output tokens from streaming-capable nodes.
// It is only set for chatflow executions.
type TokenSink func(token string)

// ExecutionContext is the transient variable state of one run: seeded from
// the input and declared defaults, accumulated as nodes produce outputs, and
// consulted by edge conditions and config interpolation. It is not persisted
// beyond the run's step log and output.
type ExecutionContext struct {
	vars  map[string]Value
	depth int
	sink  TokenSink
}

// NewExecutionContext returns an empty context.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{vars: make(map[string]Value)}
}

// Set binds a variable name to a value, replacing any previous binding.
func (ec *ExecutionContext) Set(name string, v Value) {
	ec.vars[name] = v
}

// Get returns the value bound to name.
func (ec *ExecutionContext) Get(name string) (Value, bool) {
	v, ok := ec.vars[name]
	return v, ok
}

// Snapshot returns the current variables as plain Go values, for script
// globals and for the run's output.
func (ec *ExecutionContext) Snapshot() map[string]any {
	out := make(map[string]any, len(ec.vars))
	for k, v := range ec.vars {
		out[k] = v.Interface()
	}
	return out
}

// Depth is the sub-workflow call depth of this context. The root run is
// depth zero.
func (ec *ExecutionContext) Depth() int { return ec.depth }

// EmitToken forwards a token to the stream sink, if one is attached.
func (ec *ExecutionContext) EmitToken(token string) {
	if ec.sink != nil {
		ec.sink(token)
	}
}

// Streaming reports whether a token sink is attached.
func (ec *ExecutionContext) Streaming() bool { return ec.sink != nil }
