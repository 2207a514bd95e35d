package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/flowmesh-ai/flowmesh/internal/engine"
	"github.com/flowmesh-ai/flowmesh/internal/repository"
	"github.com/flowmesh-ai/flowmesh/pkg/models"
)

// ExecuteRequest is the body of an execute call. Trigger defaults to "api";
// builders pass "manual" for test runs of a draft.
type ExecuteRequest struct {
	Input   map[string]any `json:"input"`
	Trigger string         `json:"trigger,omitempty"`
}

// ResumeRequest is the body of a resume call.
type ResumeRequest struct {
	NodeID string         `json:"nodeId"`
	Data   map[string]any `json:"data"`
}

// ExecuteWorkflow starts a synchronous run of a workflow
// (POST /api/v1/workflows/:id/execute)
func (s *Server) ExecuteWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	trigger := models.TriggerTypeAPI
	switch req.Trigger {
	case "", string(models.TriggerTypeAPI):
	case string(models.TriggerTypeManual):
		trigger = models.TriggerTypeManual
	default:
		return echo.NewHTTPError(http.StatusBadRequest, `trigger must be "api" or "manual"`)
	}

	run, err := s.Engine.Execute(ctx, c.Param("id"), req.Input, engine.WithTrigger(trigger))
	if err != nil {
		return runError(err)
	}
	return c.JSON(http.StatusOK, run)
}

// GetRun returns a run record including its step log
// (GET /api/v1/runs/:id)
func (s *Server) GetRun(c echo.Context) error {
	ctx := c.Request().Context()

	run, err := s.Runs.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Run not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, run)
}

// ListRuns returns the runs of one workflow, newest first
// (GET /api/v1/workflows/:id/runs)
func (s *Server) ListRuns(c echo.Context) error {
	ctx := c.Request().Context()

	runs, err := s.Runs.ListByWorkflow(ctx, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, runs)
}

// ResumeRun continues a paused run from its suspended node
// (POST /api/v1/runs/:id/resume)
func (s *Server) ResumeRun(c echo.Context) error {
	ctx := c.Request().Context()

	var req ResumeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if req.NodeID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "nodeId is required")
	}

	run, err := s.Engine.Resume(ctx, c.Param("id"), req.NodeID, req.Data)
	if err != nil {
		return runError(err)
	}
	return c.JSON(http.StatusOK, run)
}

// CancelRun cancels a pending, running or paused run
// (POST /api/v1/runs/:id/cancel)
func (s *Server) CancelRun(c echo.Context) error {
	ctx := c.Request().Context()

	run, err := s.Engine.Cancel(ctx, c.Param("id"))
	if err != nil {
		return runError(err)
	}
	return c.JSON(http.StatusOK, run)
}

// runError maps engine sentinels to HTTP status codes.
func runError(err error) error {
	switch {
	case errors.Is(err, engine.ErrWorkflowNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Workflow not found")
	case errors.Is(err, engine.ErrRunNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Run not found")
	case errors.Is(err, engine.ErrNotRunnable):
		return echo.NewHTTPError(http.StatusConflict, "Workflow is not runnable for this trigger")
	case errors.Is(err, engine.ErrModeMismatch):
		return echo.NewHTTPError(http.StatusConflict, "Workflow mode does not match this trigger")
	case errors.Is(err, engine.ErrInvalidGraph):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid workflow: "+err.Error())
	case errors.Is(err, engine.ErrNotPaused):
		return echo.NewHTTPError(http.StatusConflict, "Run is not paused")
	case errors.Is(err, engine.ErrNodeMismatch):
		return echo.NewHTTPError(http.StatusConflict, "Run is not suspended at that node")
	case errors.Is(err, engine.ErrNotCancellable):
		return echo.NewHTTPError(http.StatusConflict, "Run is already finished")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
