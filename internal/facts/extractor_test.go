package facts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh-ai/flowmesh/internal/llm"
	"github.com/flowmesh-ai/flowmesh/internal/repository"
)

type scriptedClient struct {
	reply   string
	err     error
	lastReq llm.Request
}

func (c *scriptedClient) Complete(_ context.Context, req llm.Request) (string, error) {
	c.lastReq = req
	return c.reply, c.err
}

func (c *scriptedClient) Stream(ctx context.Context, req llm.Request, onToken func(string)) (string, error) {
	return c.Complete(ctx, req)
}

func TestExtractAndSaveFacts(t *testing.T) {
	client := &scriptedClient{reply: "- prefers dark mode\n* works remotely\n\nNONE\nbased in Lisbon"}
	store := repository.NewMemoryFactStore()
	extractor := NewLLMExtractor(client, store, "gpt-4o-mini", nil)

	err := extractor.ExtractAndSaveFacts(context.Background(), "user-1", "thread-1", "hi", "hello")
	require.NoError(t, err)

	assert.Equal(t, []string{"prefers dark mode", "works remotely", "based in Lisbon"}, store.Facts("user-1"))
	assert.Equal(t, "gpt-4o-mini", client.lastReq.Model)
	assert.Contains(t, client.lastReq.Prompt, "hi")
	assert.Contains(t, client.lastReq.Prompt, "hello")
}

func TestExtractNoFacts(t *testing.T) {
	client := &scriptedClient{reply: "NONE"}
	store := repository.NewMemoryFactStore()
	extractor := NewLLMExtractor(client, store, "", nil)

	require.NoError(t, extractor.ExtractAndSaveFacts(context.Background(), "user-1", "t", "hi", "hello"))
	assert.Empty(t, store.Facts("user-1"))
}

func TestExtractSkipsAnonymousUsers(t *testing.T) {
	client := &scriptedClient{reply: "something"}
	store := repository.NewMemoryFactStore()
	extractor := NewLLMExtractor(client, store, "", nil)

	require.NoError(t, extractor.ExtractAndSaveFacts(context.Background(), "", "t", "hi", "hello"))
	assert.Empty(t, store.Facts(""))
	assert.Empty(t, client.lastReq.Prompt, "no model call for anonymous users")
}

func TestExtractCompletionError(t *testing.T) {
	client := &scriptedClient{err: assert.AnError}
	store := repository.NewMemoryFactStore()
	extractor := NewLLMExtractor(client, store, "", nil)

	err := extractor.ExtractAndSaveFacts(context.Background(), "user-1", "t", "hi", "hello")
	assert.Error(t, err)
	assert.Empty(t, store.Facts("user-1"))
}

func TestNopExtractor(t *testing.T) {
	assert.NoError(t, Nop{}.ExtractAndSaveFacts(context.Background(), "u", "t", "a", "b"))
}
