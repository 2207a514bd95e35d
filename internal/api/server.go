// Package api contains the HTTP handlers for the workflow service.
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/flowmesh-ai/flowmesh/internal/chatflow"
	"github.com/flowmesh-ai/flowmesh/internal/engine"
	"github.com/flowmesh-ai/flowmesh/internal/logging"
	"github.com/flowmesh-ai/flowmesh/internal/repository"
	"github.com/flowmesh-ai/flowmesh/pkg/models"
)

// Engine is the slice of the workflow engine the API needs.
type Engine interface {
	Validate(workflow *models.Workflow) error
	Execute(ctx context.Context, workflowID string, input map[string]any, opts ...engine.ExecuteOption) (*models.Run, error)
	Resume(ctx context.Context, runID, nodeID string, data map[string]any) (*models.Run, error)
	Cancel(ctx context.Context, runID string) (*models.Run, error)
}

// Server holds the dependencies for the API server.
type Server struct {
	Workflows repository.WorkflowStore
	Runs      repository.RunStore
	Engine    Engine
	Chat      *chatflow.Adapter
	Logger    *logging.Logger
}

// NewServer creates a new Server. Chat may be nil when no chatflow adapter
// is configured; the chat endpoint then returns 503.
func NewServer(workflows repository.WorkflowStore, runs repository.RunStore, eng Engine, chat *chatflow.Adapter, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{Workflows: workflows, Runs: runs, Engine: eng, Chat: chat, Logger: logger}
}

// RegisterRoutes mounts all API routes on the echo instance.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", s.HandleHealth)

	v1 := e.Group("/api/v1")
	v1.GET("/workflows", s.ListWorkflows)
	v1.PUT("/workflows", s.PutWorkflow)
	v1.GET("/workflows/:id", s.GetWorkflow)
	v1.POST("/workflows/:id/validate", s.ValidateWorkflow)
	v1.POST("/workflows/:id/execute", s.ExecuteWorkflow)
	v1.GET("/workflows/:id/runs", s.ListRuns)
	v1.GET("/runs/:id", s.GetRun)
	v1.POST("/runs/:id/resume", s.ResumeRun)
	v1.POST("/runs/:id/cancel", s.CancelRun)
	v1.POST("/chat", s.HandleChat)
}
