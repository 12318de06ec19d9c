package models

import (
	"time"
)

// ExecutionStatus is the lifecycle state of a workflow run.
type ExecutionStatus string

const (
	ExecutionPending ExecutionStatus = "pending"
	ExecutionRunning ExecutionStatus = "running"
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionSuccess || s == ExecutionFailed
}

// StepStatus is the state of a single step within a run. It extends
// ExecutionStatus with skipped.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

func (s StepStatus) Terminal() bool {
	return s == StepSuccess || s == StepFailed || s == StepSkipped
}

// Execution is one run of a workflow. Clients only read it; a retry
// creates a new execution rather than mutating this one.
type Execution struct {
	WorkflowID  string          `json:"workflow_id"`
	ID          string          `json:"execution_id"`
	Status      ExecutionStatus `json:"status"`
	TriggerType TriggerType     `json:"trigger_type"`
	TriggerData map[string]any  `json:"trigger_data"`
	Steps       []ExecutionStep `json:"steps"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Normalize clears the output of every step that did not succeed.
func (e *Execution) Normalize() {
	for i := range e.Steps {
		if e.Steps[i].Status != StepSuccess {
			e.Steps[i].Output = nil
		}
	}
}

// ExecutionStep is the per-step result of an execution.
type ExecutionStep struct {
	StepID     string     `json:"step_id"`
	Name       string     `json:"name,omitempty"`
	Type       StepType   `json:"type,omitempty"`
	Status     StepStatus `json:"status"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Input      any        `json:"input,omitempty"`
	Output     any        `json:"output"`
	Error      string     `json:"error,omitempty"`
}

// ExecuteRequest is the body of POST /workflows/{id}/execute.
type ExecuteRequest struct {
	TriggerData map[string]any `json:"trigger_data"`
}

// ExecuteResponse is returned by POST /workflows/{id}/execute.
type ExecuteResponse struct {
	Status      string `json:"status"`
	WorkflowID  string `json:"workflow_id"`
	ExecutionID string `json:"execution_id,omitempty"`
	Message     string `json:"message"`
}

// ExecuteQueued is the status reported for an accepted execute call.
const ExecuteQueued = "queued"

const (
	// DefaultExecutionLimit is the page size used when none is requested.
	DefaultExecutionLimit = 20
	// MaxExecutionLimit caps the requested page size.
	MaxExecutionLimit = 100
)

// ExecutionList is the body of GET /workflows/{id}/executions.
type ExecutionList struct {
	Executions []*Execution `json:"executions"`
	Count      int          `json:"count"`
	LastKey    string       `json:"last_key,omitempty"`
}

// ExecutionListOptions selects a page of executions.
type ExecutionListOptions struct {
	Limit   int
	LastKey string
}

// EffectiveLimit clamps Limit into [1, MaxExecutionLimit], defaulting to DefaultExecutionLimit.
func (o ExecutionListOptions) EffectiveLimit() int {
	switch {
	case o.Limit <= 0:
		return DefaultExecutionLimit
	case o.Limit > MaxExecutionLimit:
		return MaxExecutionLimit
	}

	return o.Limit
}
