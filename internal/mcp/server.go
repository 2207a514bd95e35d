package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flowmesh-ai/flowmesh/internal/engine"
	"github.com/flowmesh-ai/flowmesh/internal/repository"
	"github.com/flowmesh-ai/flowmesh/pkg/models"
)

// Engine is the slice of the workflow engine the MCP tools need.
type Engine interface {
	Execute(ctx context.Context, workflowID string, input map[string]any, opts ...engine.ExecuteOption) (*models.Run, error)
	Resume(ctx context.Context, runID, nodeID string, data map[string]any) (*models.Run, error)
	Cancel(ctx context.Context, runID string) (*models.Run, error)
}

type Server struct {
	mcpServer *server.MCPServer
	engine    Engine
	workflows repository.WorkflowStore
	runs      repository.RunStore
}

func NewServer(eng Engine, workflows repository.WorkflowStore, runs repository.RunStore) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"FlowMesh Workflows",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		engine:    eng,
		workflows: workflows,
		runs:      runs,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_workflows",
			mcp.WithDescription("List all workflows with their status and trigger"),
		),
		s.handleListWorkflows,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"run_workflow",
			mcp.WithDescription("Execute a workflow and return the finished or paused run"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("The ID of the workflow to execute")),
			mcp.WithString("input", mcp.Description("JSON object of input values")),
		),
		s.handleRunWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_run",
			mcp.WithDescription("Fetch a run record including its step log"),
			mcp.WithString("run_id", mcp.Required(), mcp.Description("The ID of the run")),
		),
		s.handleGetRun,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"resume_run",
			mcp.WithDescription("Resume a paused run from its suspended node"),
			mcp.WithString("run_id", mcp.Required(), mcp.Description("The ID of the paused run")),
			mcp.WithString("node_id", mcp.Required(), mcp.Description("The node the run is suspended at")),
			mcp.WithString("data", mcp.Description("JSON object of resume data, e.g. an approval decision")),
		),
		s.handleResumeRun,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"cancel_run",
			mcp.WithDescription("Cancel a pending, running or paused run"),
			mcp.WithString("run_id", mcp.Required(), mcp.Description("The ID of the run")),
		),
		s.handleCancelRun,
	)
}

func (s *Server) handleListWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflows, err := s.workflows.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list workflows: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(workflows)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleRunWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	workflowID, ok := args["workflow_id"].(string)
	if !ok || workflowID == "" {
		return mcp.NewToolResultError("Missing required parameter: workflow_id"), nil
	}

	input, err := decodeJSONObject(args, "input")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	run, err := s.engine.Execute(ctx, workflowID, input, engine.WithTrigger(models.TriggerTypeAPI))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to execute: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(run)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	runID, ok := args["run_id"].(string)
	if !ok || runID == "" {
		return mcp.NewToolResultError("Missing required parameter: run_id"), nil
	}

	run, err := s.runs.Get(ctx, runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get run: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(run)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleResumeRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	runID, ok := args["run_id"].(string)
	if !ok || runID == "" {
		return mcp.NewToolResultError("Missing required parameter: run_id"), nil
	}
	nodeID, ok := args["node_id"].(string)
	if !ok || nodeID == "" {
		return mcp.NewToolResultError("Missing required parameter: node_id"), nil
	}

	data, err := decodeJSONObject(args, "data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	run, err := s.engine.Resume(ctx, runID, nodeID, data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resume: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(run)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleCancelRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	runID, ok := args["run_id"].(string)
	if !ok || runID == "" {
		return mcp.NewToolResultError("Missing required parameter: run_id"), nil
	}

	run, err := s.engine.Cancel(ctx, runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to cancel: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(run)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// decodeJSONObject parses an optional string argument holding a JSON object.
func decodeJSONObject(args map[string]interface{}, key string) (map[string]any, error) {
	raw, ok := args[key].(string)
	if !ok || raw == "" {
		return nil, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("Parameter %s must be a JSON object: %v", key, err)
	}
	return decoded, nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// Use SSE server for /mcp/sse and /mcp/message endpoints
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
