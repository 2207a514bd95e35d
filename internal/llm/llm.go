// Package llm abstracts the AI-model providers used by model nodes and the
// chatflow fact extractor.
package llm

import "context"

// Request describes one model invocation.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature *float64
}

// Client is a minimal completion interface over a model provider. Stream
// delivers tokens incrementally through onToken and returns the full
// accumulated text; Complete returns the text atomically.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request, onToken func(token string)) (string, error)
}
