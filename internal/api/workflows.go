package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/flowmesh-ai/flowmesh/internal/repository"
	"github.com/flowmesh-ai/flowmesh/pkg/models"
)

// ListWorkflows returns a list of all workflows
// (GET /api/v1/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	ctx := c.Request().Context()

	workflows, err := s.Workflows.List(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, workflows)
}

// GetWorkflow returns a single workflow by id
// (GET /api/v1/workflows/:id)
func (s *Server) GetWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	workflow, err := s.Workflows.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Workflow not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, workflow)
}

// PutWorkflow creates or updates a workflow. The definition is validated
// before it is stored; a workflow that fails graph validation is rejected.
// (PUT /api/v1/workflows)
func (s *Server) PutWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	var workflow models.Workflow
	if err := c.Bind(&workflow); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	if err := s.Engine.Validate(&workflow); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid workflow: "+err.Error())
	}

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	_, err := s.Workflows.Get(ctx, workflow.ID)
	switch {
	case err == nil:
		if err := s.Workflows.Update(ctx, &workflow); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save workflow: "+err.Error())
		}
	case errors.Is(err, repository.ErrNotFound):
		if err := s.Workflows.Create(ctx, &workflow); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save workflow: "+err.Error())
		}
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, workflow)
}

// ValidateWorkflow checks a stored workflow's definition without running it
// (POST /api/v1/workflows/:id/validate)
func (s *Server) ValidateWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	workflow, err := s.Workflows.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Workflow not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := s.Engine.Validate(workflow); err != nil {
		return c.JSON(http.StatusOK, map[string]any{"valid": false, "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"valid": true})
}
