// Package models defines the workflow, execution and secret entities exchanged with the automation backend.
package models

import (
	"time"
)

const (
	// MaxWorkflowNameLength is the maximum number of characters in a workflow name.
	MaxWorkflowNameLength = 100
	// MaxWorkflowDescriptionLength is the maximum number of characters in a workflow description.
	MaxWorkflowDescriptionLength = 500
)

// Workflow is a trigger plus an ordered list of steps.
// Step order is significant: it is the execution order and decides which
// step outputs are addressable from a given step.
type Workflow struct {
	ID                    string           `json:"workflow_id,omitempty"`
	Name                  string           `json:"name"`
	Description           string           `json:"description"`
	Enabled               bool             `json:"enabled"`
	Trigger               Trigger          `json:"trigger"`
	Steps                 []Step           `json:"steps"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
	LatestExecutionStatus *ExecutionStatus `json:"latest_execution_status,omitempty"`
}

// Persisted reports whether the backend has assigned an identifier to the workflow.
func (w *Workflow) Persisted() bool {
	return w.ID != ""
}

// Request builds the create/update payload for the workflow.
func (w *Workflow) Request() WorkflowRequest {
	steps := make([]Step, len(w.Steps))
	for i, step := range w.Steps {
		steps[i] = step.Clone()
	}

	return WorkflowRequest{
		Name:        w.Name,
		Description: w.Description,
		Enabled:     w.Enabled,
		Trigger:     w.Trigger.Clone(),
		Steps:       steps,
	}
}

// WorkflowRequest is the body of POST /workflows and PUT /workflows/{id}.
type WorkflowRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Enabled     bool    `json:"enabled"`
	Trigger     Trigger `json:"trigger"`
	Steps       []Step  `json:"steps"`
}

// WorkflowList is the body of GET /workflows.
type WorkflowList struct {
	Workflows []*Workflow `json:"workflows"`
	Count     int         `json:"count"`
}

// EnabledRequest is the body of PATCH /workflows/{id}/enabled.
type EnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// EnabledResponse is returned by PATCH /workflows/{id}/enabled.
type EnabledResponse struct {
	WorkflowID string `json:"workflow_id"`
	Enabled    bool   `json:"enabled"`
	Message    string `json:"message"`
}

// DeleteResponse is returned by DELETE /workflows/{id}.
type DeleteResponse struct {
	Message    string `json:"message"`
	WorkflowID string `json:"workflow_id"`
}
