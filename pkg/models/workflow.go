// Package models defines the domain models for the workflow engine.
package models

import (
	"time"
)

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "DRAFT"
	WorkflowStatusActive   WorkflowStatus = "ACTIVE"
	WorkflowStatusPaused   WorkflowStatus = "PAUSED"
	WorkflowStatusArchived WorkflowStatus = "ARCHIVED"
)

// WorkflowMode selects how a workflow's output is delivered.
type WorkflowMode string

const (
	// WorkflowModeStandard produces a single atomic output.
	WorkflowModeStandard WorkflowMode = "STANDARD"
	// WorkflowModeChatflow streams output incrementally, token by token.
	WorkflowModeChatflow WorkflowMode = "CHATFLOW"
)

// TriggerType classifies the event that starts a run.
type TriggerType string

const (
	TriggerTypeManual   TriggerType = "manual"
	TriggerTypeSchedule TriggerType = "schedule"
	TriggerTypeAPI      TriggerType = "api"
	TriggerTypeChat     TriggerType = "chat"
)

// Trigger describes how a workflow is started. Schedule is a 5-field cron
// expression and is only meaningful when Type is "schedule".
type Trigger struct {
	Type     TriggerType `json:"type"`
	Schedule string      `json:"schedule,omitempty"`
}

// Position is presentation-only node placement. The runner ignores it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single typed step in a workflow graph.
type Node struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Config   map[string]any `json:"config,omitempty"`
	Position *Position      `json:"position,omitempty"`
}

// Edge is a directed connection between two nodes. An empty Condition marks
// the edge as the default/fallthrough route.
type Edge struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Condition string `json:"condition,omitempty"`
}

// Variable declares an input or output variable of a workflow.
type Variable struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Default any    `json:"default,omitempty"`
	Output  bool   `json:"output,omitempty"`
}

// Workflow is a saved, versioned graph of nodes and edges plus a trigger
// definition.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Status      WorkflowStatus `json:"status"`
	Mode        WorkflowMode   `json:"mode"`
	Version     int            `json:"version"`
	Nodes       []Node         `json:"nodes"`
	Edges       []Edge         `json:"edges"`
	Trigger     Trigger        `json:"trigger"`
	Variables   []Variable     `json:"variables,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Node returns the node with the given id, if present.
func (w *Workflow) Node(id string) (*Node, bool) {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i], true
		}
	}
	return nil, false
}

// Runnable reports whether the workflow may start a new run for the given
// trigger type. ARCHIVED workflows never run. Schedule, API and chat triggers
// additionally require ACTIVE status; manual runs are allowed for drafts so
// builders can test before activating.
func (w *Workflow) Runnable(trigger TriggerType) bool {
	if w.Status == WorkflowStatusArchived {
		return false
	}
	switch trigger {
	case TriggerTypeManual:
		return true
	default:
		return w.Status == WorkflowStatusActive
	}
}
