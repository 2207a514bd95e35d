package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowmesh-ai/flowmesh/internal/credentials"
)

// HTTPConfig configures an http node. URL, headers and string body values
// support ${...} interpolation against the execution context.
type HTTPConfig struct {
	Method         string            `json:"method,omitempty"`
	URL            string            `json:"url"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           any               `json:"body,omitempty"`
	Credential     string            `json:"credential,omitempty"`
	TimeoutSeconds float64           `json:"timeoutSeconds,omitempty"`
	Output         string            `json:"output,omitempty"`
}

func (c *HTTPConfig) outputName() string { return c.Output }

type httpExecutor struct {
	creds   credentials.Store
	client  *http.Client
	timeout time.Duration
}

func (e *httpExecutor) Type() string { return NodeTypeHTTP }

func (e *httpExecutor) DecodeConfig(raw map[string]any) (NodeConfig, error) {
	var cfg HTTPConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("http node requires a url")
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	cfg.Method = strings.ToUpper(cfg.Method)
	return &cfg, nil
}

// Execute performs the request with its own timeout; a timeout converts to
// a Fail outcome rather than blocking the runner.
func (e *httpExecutor) Execute(ctx context.Context, cfg NodeConfig, ec *ExecutionContext) Outcome {
	c := cfg.(*HTTPConfig)

	timeout := e.timeout
	if c.TimeoutSeconds > 0 {
		timeout = time.Duration(c.TimeoutSeconds * float64(time.Second))
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url, err := Interpolate(ctx, c.URL, ec)
	if err != nil {
		return Fail("http node: %v", err)
	}

	var body io.Reader
	if c.Body != nil {
		resolved, err := InterpolateAny(ctx, c.Body, ec)
		if err != nil {
			return Fail("http node: %v", err)
		}
		encoded, err := json.Marshal(resolved)
		if err != nil {
			return Fail("http node: encode body: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, c.Method, url.String(), body)
	if err != nil {
		return Fail("http node: build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range c.Headers {
		resolved, err := Interpolate(ctx, value, ec)
		if err != nil {
			return Fail("http node: %v", err)
		}
		req.Header.Set(name, resolved.String())
	}
	if c.Credential != "" {
		if e.creds == nil {
			return Fail("http node: no credential store configured")
		}
		secret, err := e.creds.Resolve(ctx, c.Credential)
		if err != nil {
			return Fail("http node: %v", err)
		}
		if req.Header.Get("Authorization") == "" {
			req.Header.Set("Authorization", "Bearer "+secret)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return Fail("http node: request timed out after %s", timeout)
		}
		return Fail("http node: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return Fail("http node: read response: %v", err)
	}

	// JSON responses decode into the context as structured values; anything
	// else is kept as text.
	var decoded any
	var parsedBody Value
	if json.Unmarshal(raw, &decoded) == nil {
		parsedBody = ValueOf(decoded)
	} else {
		parsedBody = String(string(raw))
	}

	return Complete(Map(map[string]Value{
		"status": Number(float64(resp.StatusCode)),
		"body":   parsedBody,
	}))
}
