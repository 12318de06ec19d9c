// Package events defines the messages the development backend passes through its event bus.
package events

import (
	"errors"
	"time"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every execution event.
const Topic = "flowdash.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// ExecutionQueuedEvent is published when an execute call is accepted.
	ExecutionQueuedEvent EventType = "execution.queued"
	// ExecutionFinishedEvent is published when an execution reaches a terminal status.
	ExecutionFinishedEvent EventType = "execution.finished"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// ExecutionQueued asks a worker to run a pending execution.
type ExecutionQueued struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	TriggerType string         `json:"trigger_type"`
	TriggerData map[string]any `json:"trigger_data"`
}

func (e ExecutionQueued) GetType() EventType {
	return ExecutionQueuedEvent
}

func NewExecutionQueued(workflowID, executionID string, triggerType models.TriggerType, triggerData map[string]any) ExecutionQueued {
	return ExecutionQueued{
		BaseEvent:   NewBaseEvent(ExecutionQueuedEvent, workflowID),
		ExecutionID: executionID,
		TriggerType: string(triggerType),
		TriggerData: triggerData,
	}
}

func (e *ExecutionQueued) Validate() error {
	if e.WorkflowID == "" {
		return errors.New("workflow_id is required")
	}

	if e.ExecutionID == "" {
		return errors.New("execution_id is required")
	}

	return nil
}

// ExecutionFinished reports the outcome of a run.
type ExecutionFinished struct {
	BaseEvent

	ExecutionID string                 `json:"execution_id"`
	Status      models.ExecutionStatus `json:"status"`
	Error       string                 `json:"error,omitempty"`
	Duration    time.Duration          `json:"duration"`
}

func (e ExecutionFinished) GetType() EventType {
	return ExecutionFinishedEvent
}

func NewExecutionFinished(execution *models.Execution, duration time.Duration) ExecutionFinished {
	return ExecutionFinished{
		BaseEvent:   NewBaseEvent(ExecutionFinishedEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		Status:      execution.Status,
		Error:       execution.Error,
		Duration:    duration,
	}
}
