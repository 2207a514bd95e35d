package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI implements Client against the OpenAI chat completions API (or any
// compatible endpoint via base URL override).
type OpenAI struct {
	client       openai.Client
	defaultModel string
}

// OpenAIOption customizes the OpenAI client.
type OpenAIOption func(*openAIConfig)

type openAIConfig struct {
	apiKey       string
	baseURL      string
	defaultModel string
}

func WithAPIKey(key string) OpenAIOption {
	return func(c *openAIConfig) { c.apiKey = key }
}

func WithBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) { c.baseURL = url }
}

func WithDefaultModel(model string) OpenAIOption {
	return func(c *openAIConfig) { c.defaultModel = model }
}

// NewOpenAI creates an OpenAI-backed Client.
func NewOpenAI(opts ...OpenAIOption) *OpenAI {
	cfg := openAIConfig{defaultModel: "gpt-4o-mini"}
	for _, opt := range opts {
		opt(&cfg)
	}
	var reqOpts []option.RequestOption
	if cfg.apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(cfg.apiKey))
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	return &OpenAI{
		client:       openai.NewClient(reqOpts...),
		defaultModel: cfg.defaultModel,
	}
}

func (c *OpenAI) params(req Request) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	return params
}

// Complete performs a single blocking completion.
func (c *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// Stream performs a streaming completion, forwarding each content delta to
// onToken and returning the accumulated text.
func (c *OpenAI) Stream(ctx context.Context, req Request, onToken func(string)) (string, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(req))
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if onToken != nil {
			onToken(delta)
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("chat completion stream: %w", err)
	}
	return sb.String(), nil
}
