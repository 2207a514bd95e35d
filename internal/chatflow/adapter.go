// Package chatflow wraps a single workflow execution as a token stream for
// conversational invocation.
package chatflow

import (
	"context"
	"strings"
	"time"

	"github.com/flowmesh-ai/flowmesh/internal/engine"
	"github.com/flowmesh-ai/flowmesh/internal/logging"
	"github.com/flowmesh-ai/flowmesh/pkg/models"
)

// SourcesDelimiter separates conversational content from the structured
// sources payload in a chatflow's streamed text. Content after it is
// excluded from the persisted visible message and from fact extraction.
const SourcesDelimiter = "\n\n---SOURCES---\n"

// FactExtractor is the fire-and-forget fact extraction collaborator.
// Failures are logged and swallowed; they never affect the chat response.
type FactExtractor interface {
	ExtractAndSaveFacts(ctx context.Context, userID, threadID, userMessage, assistantResponse string) error
}

// Engine is the slice of the workflow engine the adapter needs.
type Engine interface {
	Execute(ctx context.Context, workflowID string, input map[string]any, opts ...engine.ExecuteOption) (*models.Run, error)
}

// Request is one chat invocation.
type Request struct {
	WorkflowID string
	UserID     string
	ThreadID   string
	Message    string
}

// Adapter executes chatflow-mode workflows and tees the accumulated visible
// text to the fact extractor in the background.
type Adapter struct {
	engine         Engine
	facts          FactExtractor
	logger         *logging.Logger
	extractTimeout time.Duration
}

// NewAdapter creates an Adapter. The fact extractor may be nil, in which
// case extraction is skipped.
func NewAdapter(eng Engine, facts FactExtractor, logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Adapter{engine: eng, facts: facts, logger: logger, extractTimeout: 60 * time.Second}
}

// Stream delivers a chatflow execution incrementally. Consumers drain
// Tokens, then call Wait for the final run record.
type Stream struct {
	tokens  chan string
	done    chan struct{}
	run     *models.Run
	err     error
	visible string
	sources string
}

// Tokens returns the channel of output tokens. It is closed when the
// execution finishes.
func (s *Stream) Tokens() <-chan string { return s.tokens }

// Wait blocks until the execution finishes and returns the run record. The
// run's status reflects node failures; err is non-nil only for errors that
// prevented execution (unknown workflow, validation).
func (s *Stream) Wait() (*models.Run, error) {
	<-s.done
	return s.run, s.err
}

// VisibleText returns the streamed text before the sources delimiter.
// Valid after Wait returns.
func (s *Stream) VisibleText() string { return s.visible }

// Sources returns the raw payload after the sources delimiter, if any.
// Valid after Wait returns.
func (s *Stream) Sources() string { return s.sources }

// Execute starts a chatflow execution and returns its stream. The chat
// message is bound under "message" in the workflow input.
func (a *Adapter) Execute(ctx context.Context, req Request) *Stream {
	s := &Stream{
		tokens: make(chan string, 64),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)

		var sb strings.Builder
		sink := func(token string) {
			sb.WriteString(token)
			s.tokens <- token
		}
		input := map[string]any{
			"message":  req.Message,
			"_trigger": string(models.TriggerTypeChat),
			"_userId":  req.UserID,
			"_thread":  req.ThreadID,
		}
		run, err := a.engine.Execute(ctx, req.WorkflowID, input,
			engine.WithTrigger(models.TriggerTypeChat),
			engine.WithTokenSink(sink),
		)
		close(s.tokens)
		s.run, s.err = run, err

		text := sb.String()
		if text == "" && run != nil {
			// Non-streaming model nodes still produce output; fall back to
			// the run's text output so callers and extraction see it.
			text = textOutput(run)
		}
		s.visible, s.sources = SplitSources(text)

		if err != nil || run == nil || run.Status != models.RunStatusCompleted {
			return
		}
		if a.facts == nil || s.visible == "" {
			return
		}
		go a.extract(req, s.visible)
	}()
	return s
}

// extract runs fact extraction detached from the request lifecycle.
// Extraction errors are logged only; they must never alter or delay the
// primary response.
func (a *Adapter) extract(req Request, assistantResponse string) {
	ctx, cancel := context.WithTimeout(context.Background(), a.extractTimeout)
	defer cancel()
	if err := a.facts.ExtractAndSaveFacts(ctx, req.UserID, req.ThreadID, req.Message, assistantResponse); err != nil {
		a.logger.Warn("fact extraction failed",
			"user_id", req.UserID, "thread_id", req.ThreadID, "error", err)
	}
}

// SplitSources splits streamed chatflow text at the trailing sources
// delimiter.
func SplitSources(text string) (visible, sources string) {
	visible, sources, found := strings.Cut(text, SourcesDelimiter)
	if !found {
		return text, ""
	}
	return strings.TrimRight(visible, "\n"), sources
}

func textOutput(run *models.Run) string {
	for _, v := range run.Output {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}
