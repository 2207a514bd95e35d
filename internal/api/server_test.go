package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh-ai/flowmesh/internal/engine"
	"github.com/flowmesh-ai/flowmesh/internal/repository"
	"github.com/flowmesh-ai/flowmesh/pkg/models"
)

func newTestServer(t *testing.T) (*echo.Echo, repository.WorkflowStore) {
	t.Helper()
	workflows := repository.NewMemoryWorkflowStore()
	runs := repository.NewMemoryRunStore()
	registry := engine.NewRegistry()
	registry.RegisterBuiltins(engine.BuiltinDeps{})
	eng, err := engine.New(engine.Options{Workflows: workflows, Runs: runs, Registry: registry})
	require.NoError(t, err)

	e := echo.New()
	NewServer(workflows, runs, eng, nil, nil).RegisterRoutes(e)
	return e, workflows
}

func doJSON(e *echo.Echo, method, path string, body any) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = strings.NewReader(string(encoded))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func validWorkflowBody() map[string]any {
	return map[string]any{
		"id":     "wf-1",
		"name":   "Adder",
		"status": "ACTIVE",
		"trigger": map[string]any{
			"type": "manual",
		},
		"variables": []map[string]any{
			{"name": "x", "type": "number"},
			{"name": "result", "type": "number", "output": true},
		},
		"nodes": []map[string]any{
			{"id": "add", "type": "transform", "config": map[string]any{"script": "x + 1", "output": "result"}},
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doJSON(e, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestPutAndGetWorkflow(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodPut, "/api/v1/workflows", validWorkflowBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(e, http.MethodGet, "/api/v1/workflows/wf-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var wf models.Workflow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wf))
	assert.Equal(t, "Adder", wf.Name)

	rec = doJSON(e, http.MethodGet, "/api/v1/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutWorkflowRejectsInvalidGraph(t *testing.T) {
	e, store := newTestServer(t)

	body := validWorkflowBody()
	body["nodes"] = []map[string]any{
		{"id": "a", "type": "transform", "config": map[string]any{"script": "1"}},
		{"id": "b", "type": "transform", "config": map[string]any{"script": "2"}},
	}
	body["edges"] = []map[string]any{
		{"source": "a", "target": "b"},
		{"source": "b", "target": "a"},
	}
	rec := doJSON(e, http.MethodPut, "/api/v1/workflows", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	_, err := store.Get(context.Background(), "wf-1")
	assert.ErrorIs(t, err, repository.ErrNotFound, "invalid workflow must not be stored")
}

func TestExecuteWorkflowEndpoint(t *testing.T) {
	e, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, doJSON(e, http.MethodPut, "/api/v1/workflows", validWorkflowBody()).Code)

	rec := doJSON(e, http.MethodPost, "/api/v1/workflows/wf-1/execute", map[string]any{
		"input": map[string]any{"x": 4},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var run models.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, map[string]any{"result": float64(5)}, run.Output)

	// The run is retrievable and listed afterwards.
	rec = doJSON(e, http.MethodGet, "/api/v1/runs/"+run.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(e, http.MethodGet, "/api/v1/workflows/wf-1/runs", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var runs []models.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 1)
}

func TestExecuteDraftWorkflowTriggerGate(t *testing.T) {
	e, _ := newTestServer(t)

	body := validWorkflowBody()
	body["status"] = "DRAFT"
	require.Equal(t, http.StatusOK, doJSON(e, http.MethodPut, "/api/v1/workflows", body).Code)

	// The endpoint runs with the api trigger class by default, and drafts are
	// not eligible for it.
	rec := doJSON(e, http.MethodPost, "/api/v1/workflows/wf-1/execute", map[string]any{
		"input": map[string]any{"x": 4},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Builders test drafts by asking for a manual run explicitly.
	rec = doJSON(e, http.MethodPost, "/api/v1/workflows/wf-1/execute", map[string]any{
		"input":   map[string]any{"x": 4},
		"trigger": "manual",
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(e, http.MethodPost, "/api/v1/workflows/wf-1/execute", map[string]any{
		"trigger": "schedule",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecuteWorkflowNotFound(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doJSON(e, http.MethodPost, "/api/v1/workflows/missing/execute", map[string]any{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResumeAndCancelEndpoints(t *testing.T) {
	e, _ := newTestServer(t)

	body := validWorkflowBody()
	body["id"] = "wf-approval"
	body["variables"] = []map[string]any{}
	body["nodes"] = []map[string]any{
		{"id": "approve", "type": "approval", "config": map[string]any{"output": "decision"}},
	}
	require.Equal(t, http.StatusOK, doJSON(e, http.MethodPut, "/api/v1/workflows", body).Code)

	rec := doJSON(e, http.MethodPost, "/api/v1/workflows/wf-approval/execute", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	var run models.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	require.Equal(t, models.RunStatusPaused, run.Status)

	// Resume at the wrong node conflicts.
	rec = doJSON(e, http.MethodPost, "/api/v1/runs/"+run.ID+"/resume", map[string]any{
		"nodeId": "other",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Missing nodeId is a bad request.
	rec = doJSON(e, http.MethodPost, "/api/v1/runs/"+run.ID+"/resume", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/v1/runs/"+run.ID+"/resume", map[string]any{
		"nodeId": "approve",
		"data":   map[string]any{"approved": true},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, models.RunStatusCompleted, run.Status)

	// A finished run cannot be cancelled.
	rec = doJSON(e, http.MethodPost, "/api/v1/runs/"+run.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestValidateWorkflowEndpoint(t *testing.T) {
	e, store := newTestServer(t)
	wf := &models.Workflow{
		ID:      "broken",
		Status:  models.WorkflowStatusDraft,
		Trigger: models.Trigger{Type: models.TriggerTypeManual},
		Nodes:   []models.Node{{ID: "a", Type: "nonsense"}},
	}
	require.NoError(t, store.Create(context.Background(), wf))

	rec := doJSON(e, http.MethodPost, "/api/v1/workflows/broken/validate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, false, result["valid"])
	assert.Contains(t, result["error"], "unknown type")
}

func TestChatEndpointUnconfigured(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doJSON(e, http.MethodPost, "/api/v1/chat", map[string]any{
		"workflowId": "x", "message": "hi",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
