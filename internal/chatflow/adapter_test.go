package chatflow

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh-ai/flowmesh/internal/engine"
	"github.com/flowmesh-ai/flowmesh/internal/repository"
	"github.com/flowmesh-ai/flowmesh/pkg/models"
)

// emitExecutor streams a scripted token sequence, standing in for a model
// node.
type emitExecutor struct {
	tokens []string
}

func (e *emitExecutor) Type() string { return "emit" }

func (e *emitExecutor) DecodeConfig(raw map[string]any) (engine.NodeConfig, error) {
	return raw, nil
}

func (e *emitExecutor) Execute(_ context.Context, _ engine.NodeConfig, ec *engine.ExecutionContext) engine.Outcome {
	var sb strings.Builder
	for _, tok := range e.tokens {
		ec.EmitToken(tok)
		sb.WriteString(tok)
	}
	return engine.Complete(engine.String(sb.String()))
}

type recordingExtractor struct {
	mu        sync.Mutex
	calls     int
	userID    string
	userMsg   string
	assistant string
	err       error
}

func (r *recordingExtractor) ExtractAndSaveFacts(_ context.Context, userID, threadID, userMessage, assistantResponse string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.userID = userID
	r.userMsg = userMessage
	r.assistant = assistantResponse
	return r.err
}

func (r *recordingExtractor) snapshot() recordingExtractor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return recordingExtractor{calls: r.calls, userID: r.userID, userMsg: r.userMsg, assistant: r.assistant}
}

func chatWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:      "assistant",
		Status:  models.WorkflowStatusActive,
		Mode:    models.WorkflowModeChatflow,
		Trigger: models.Trigger{Type: models.TriggerTypeChat},
		Nodes: []models.Node{
			{ID: "answer", Type: "emit", Config: map[string]any{}},
		},
	}
}

func newChatEngine(t *testing.T, tokens []string) *engine.Engine {
	t.Helper()
	store := repository.NewMemoryWorkflowStore()
	require.NoError(t, store.Create(context.Background(), chatWorkflow()))

	registry := engine.NewRegistry()
	registry.RegisterBuiltins(engine.BuiltinDeps{})
	registry.Register(&emitExecutor{tokens: tokens})

	eng, err := engine.New(engine.Options{
		Workflows: store,
		Runs:      repository.NewMemoryRunStore(),
		Registry:  registry,
	})
	require.NoError(t, err)
	return eng
}

func TestExecuteStreamsTokens(t *testing.T) {
	tokens := []string{"Here ", "you ", "go.", SourcesDelimiter, "[1] handbook"}
	eng := newChatEngine(t, tokens)
	extractor := &recordingExtractor{}
	adapter := NewAdapter(eng, extractor, nil)

	stream := adapter.Execute(context.Background(), Request{
		WorkflowID: "assistant",
		UserID:     "user-1",
		ThreadID:   "thread-1",
		Message:    "where is the handbook?",
	})

	var received []string
	for tok := range stream.Tokens() {
		received = append(received, tok)
	}
	assert.Equal(t, tokens, received)

	run, err := stream.Wait()
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, "Here you go.", stream.VisibleText())
	assert.Equal(t, "[1] handbook", stream.Sources())

	// Fact extraction runs detached; it sees only the visible text.
	require.Eventually(t, func() bool {
		return extractor.snapshot().calls == 1
	}, time.Second, 10*time.Millisecond)
	got := extractor.snapshot()
	assert.Equal(t, "user-1", got.userID)
	assert.Equal(t, "where is the handbook?", got.userMsg)
	assert.Equal(t, "Here you go.", got.assistant)
}

func TestExecuteWithoutSources(t *testing.T) {
	eng := newChatEngine(t, []string{"plain answer"})
	adapter := NewAdapter(eng, nil, nil)

	stream := adapter.Execute(context.Background(), Request{WorkflowID: "assistant", Message: "hi"})
	for range stream.Tokens() {
	}
	run, err := stream.Wait()
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, "plain answer", stream.VisibleText())
	assert.Empty(t, stream.Sources())
}

func TestExecuteUnknownWorkflow(t *testing.T) {
	eng := newChatEngine(t, nil)
	extractor := &recordingExtractor{}
	adapter := NewAdapter(eng, extractor, nil)

	stream := adapter.Execute(context.Background(), Request{WorkflowID: "missing", Message: "hi"})
	for range stream.Tokens() {
	}
	_, err := stream.Wait()
	assert.ErrorIs(t, err, engine.ErrWorkflowNotFound)

	// No extraction on failure paths.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, extractor.snapshot().calls)
}

func TestExtractionFailureDoesNotSurface(t *testing.T) {
	eng := newChatEngine(t, []string{"answer"})
	extractor := &recordingExtractor{err: assert.AnError}
	adapter := NewAdapter(eng, extractor, nil)

	stream := adapter.Execute(context.Background(), Request{WorkflowID: "assistant", UserID: "u", Message: "hi"})
	for range stream.Tokens() {
	}
	run, err := stream.Wait()
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)

	require.Eventually(t, func() bool {
		return extractor.snapshot().calls == 1
	}, time.Second, 10*time.Millisecond)
}

func TestExecuteRejectsStandardModeWorkflow(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryWorkflowStore()
	wf := chatWorkflow()
	wf.ID = "batch"
	wf.Mode = models.WorkflowModeStandard
	require.NoError(t, store.Create(ctx, wf))

	registry := engine.NewRegistry()
	registry.RegisterBuiltins(engine.BuiltinDeps{})
	registry.Register(&emitExecutor{})

	eng, err := engine.New(engine.Options{
		Workflows: store,
		Runs:      repository.NewMemoryRunStore(),
		Registry:  registry,
	})
	require.NoError(t, err)
	adapter := NewAdapter(eng, nil, nil)

	stream := adapter.Execute(ctx, Request{WorkflowID: "batch", Message: "hi"})
	for range stream.Tokens() {
	}
	_, err = stream.Wait()
	assert.ErrorIs(t, err, engine.ErrModeMismatch)
}

func TestSplitSources(t *testing.T) {
	visible, sources := SplitSources("answer" + SourcesDelimiter + "[1] a\n[2] b")
	assert.Equal(t, "answer", visible)
	assert.Equal(t, "[1] a\n[2] b", sources)

	visible, sources = SplitSources("no delimiter here")
	assert.Equal(t, "no delimiter here", visible)
	assert.Empty(t, sources)

	visible, sources = SplitSources("")
	assert.Empty(t, visible)
	assert.Empty(t, sources)
}
