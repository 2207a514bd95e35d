// Package facts distills durable user facts from chat exchanges and stores
// them for later retrieval by workflows.
package facts

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowmesh-ai/flowmesh/internal/llm"
	"github.com/flowmesh-ai/flowmesh/internal/logging"
	"github.com/flowmesh-ai/flowmesh/internal/repository"
)

const extractionSystemPrompt = `You extract durable facts about the user from a conversation exchange.
A durable fact is something worth remembering across conversations: preferences,
circumstances, names, goals. Ignore pleasantries and one-off context.
Return one fact per line, plain text, no numbering. Return NONE if there are no facts.`

// Extractor distills facts from one exchange and persists them.
type Extractor interface {
	ExtractAndSaveFacts(ctx context.Context, userID, threadID, userMessage, assistantResponse string) error
}

// LLMExtractor asks a model to list durable facts and writes them to the
// fact store.
type LLMExtractor struct {
	client llm.Client
	store  repository.FactStore
	logger *logging.Logger
	model  string
}

// NewLLMExtractor creates an LLMExtractor. An empty model falls back to the
// client's default.
func NewLLMExtractor(client llm.Client, store repository.FactStore, model string, logger *logging.Logger) *LLMExtractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LLMExtractor{client: client, store: store, logger: logger, model: model}
}

// ExtractAndSaveFacts runs one extraction round. It is safe to call from a
// detached goroutine; the caller decides whether failures matter.
func (e *LLMExtractor) ExtractAndSaveFacts(ctx context.Context, userID, threadID, userMessage, assistantResponse string) error {
	if userID == "" {
		return nil
	}
	prompt := fmt.Sprintf("User said:\n%s\n\nAssistant replied:\n%s", userMessage, assistantResponse)
	reply, err := e.client.Complete(ctx, llm.Request{
		Model:  e.model,
		System: extractionSystemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return fmt.Errorf("fact extraction completion: %w", err)
	}

	facts := parseFacts(reply)
	if len(facts) == 0 {
		return nil
	}
	if err := e.store.SaveFacts(ctx, userID, threadID, facts); err != nil {
		return fmt.Errorf("save facts: %w", err)
	}
	e.logger.Debug("facts saved", "user_id", userID, "count", len(facts))
	return nil
}

func parseFacts(reply string) []string {
	var facts []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*• \t"))
		if line == "" || strings.EqualFold(line, "NONE") {
			continue
		}
		facts = append(facts, line)
	}
	return facts
}

// Nop is an Extractor that does nothing. Used when extraction is disabled.
type Nop struct{}

func (Nop) ExtractAndSaveFacts(context.Context, string, string, string, string) error { return nil }
