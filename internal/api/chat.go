package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/flowmesh-ai/flowmesh/internal/chatflow"
	"github.com/flowmesh-ai/flowmesh/pkg/models"
)

// ChatRequest is the body of a chat call.
type ChatRequest struct {
	WorkflowID string `json:"workflowId"`
	UserID     string `json:"userId"`
	ThreadID   string `json:"threadId"`
	Message    string `json:"message"`
}

// chatDone is the payload of the terminal SSE event.
type chatDone struct {
	RunID   string `json:"runId"`
	Status  string `json:"status"`
	Sources string `json:"sources,omitempty"`
}

// HandleChat streams a chatflow execution as server-sent events: one
// "token" event per output token, then a single "done" event with the run
// id, or an "error" event.
// (POST /api/v1/chat)
func (s *Server) HandleChat(c echo.Context) error {
	if s.Chat == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Chat is not configured")
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if req.WorkflowID == "" || req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "workflowId and message are required")
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	stream := s.Chat.Execute(c.Request().Context(), chatflow.Request{
		WorkflowID: req.WorkflowID,
		UserID:     req.UserID,
		ThreadID:   req.ThreadID,
		Message:    req.Message,
	})

	for token := range stream.Tokens() {
		if err := writeEvent(resp, "token", token); err != nil {
			// Client went away; keep draining so the execution can finish
			// and persist its run record.
			for range stream.Tokens() {
			}
			break
		}
	}

	run, err := stream.Wait()
	if err != nil {
		writeEvent(resp, "error", err.Error())
		return nil
	}

	if run.Status == models.RunStatusFailed {
		writeEvent(resp, "error", run.Error)
	}
	writeEvent(resp, "done", chatDone{
		RunID:   run.ID,
		Status:  string(run.Status),
		Sources: stream.Sources(),
	})
	return nil
}

func writeEvent(resp *echo.Response, event string, data any) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event, encoded); err != nil {
		return err
	}
	resp.Flush()
	return nil
}
