package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/dukex/flowdash/pkg/eventbus"
	"github.com/dukex/flowdash/pkg/events"
	"github.com/dukex/flowdash/pkg/log"
	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/persistence"
)

// Headers dropped from webhook trigger data; they describe the transport, not the sender.
var excludedWebhookHeaders = map[string]bool{
	"host":              true,
	"connection":        true,
	"content-length":    true,
	"x-forwarded-for":   true,
	"x-forwarded-port":  true,
	"x-forwarded-proto": true,
}

type Execution struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	now         func() time.Time
}

// NewExecution creates a new execution service that queues runs on publisher.
func NewExecution(persistence persistence.Persistence, publisher eventbus.EventPublisher) *Execution {
	return &Execution{
		persistence: persistence,
		publisher:   publisher,
		logger:      log.WithModule("services.execution"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Execute queues a manual run of a workflow with the given trigger data.
func (e *Execution) Execute(ctx context.Context, workflowID string, triggerData map[string]any) (*models.ExecuteResponse, error) {
	workflow, err := e.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if triggerData == nil {
		triggerData = map[string]any{}
	}

	execution, err := e.queue(ctx, "Execute", workflow, models.TriggerManual, triggerData)
	if err != nil {
		return nil, err
	}

	return &models.ExecuteResponse{
		Status:      models.ExecuteQueued,
		WorkflowID:  workflowID,
		ExecutionID: execution.ID,
		Message:     "Execution queued successfully",
	}, nil
}

// WebhookRequest is an inbound webhook call.
type WebhookRequest struct {
	ContentType string
	Body        []byte
	Headers     map[string]string
	Query       map[string]string
}

// ReceiveWebhook queues a run of a webhook-triggered workflow.
func (e *Execution) ReceiveWebhook(ctx context.Context, workflowID string, req WebhookRequest) (*models.Execution, error) {
	workflow, err := e.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Trigger.Type() != models.TriggerWebhook {
		return nil, NewValidationError("ReceiveWebhook", "not_webhook_workflow",
			fmt.Sprintf("Workflow %s is not triggered by webhooks", workflowID), ErrNotWebhookWorkflow)
	}

	headers := make(map[string]any, len(req.Headers))
	for name, value := range req.Headers {
		if !excludedWebhookHeaders[strings.ToLower(name)] {
			headers[name] = value
		}
	}

	query := make(map[string]any, len(req.Query))
	for name, value := range req.Query {
		query[name] = value
	}

	triggerData := map[string]any{
		"type":      string(models.TriggerWebhook),
		"payload":   ParseWebhookBody(req.ContentType, req.Body),
		"headers":   headers,
		"query":     query,
		"method":    "POST",
		"timestamp": e.now().Format(time.RFC3339),
	}

	return e.queue(ctx, "ReceiveWebhook", workflow, models.TriggerWebhook, triggerData)
}

// ParseWebhookBody decodes a webhook body by content type. JSON bodies are
// decoded, form bodies become a map with single values flattened, and
// anything else is kept under "raw". An empty body is an empty map.
func ParseWebhookBody(contentType string, body []byte) any {
	if len(body) == 0 {
		return map[string]any{}
	}

	raw := map[string]any{"raw": string(body)}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return raw
	}

	switch mediaType {
	case "application/json":
		var payload any
		if err := json.Unmarshal(body, &payload); err != nil {
			return raw
		}

		return payload
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return raw
		}

		payload := make(map[string]any, len(values))
		for key, value := range values {
			if len(value) == 1 {
				payload[key] = value[0]
			} else {
				payload[key] = value
			}
		}

		return payload
	}

	return raw
}

// queue stores a pending execution of an enabled workflow and publishes it for a worker.
func (e *Execution) queue(ctx context.Context, op string, workflow *models.Workflow, triggerType models.TriggerType, triggerData map[string]any) (*models.Execution, error) {
	if !workflow.Enabled {
		return nil, NewValidationError(op, "workflow_disabled",
			fmt.Sprintf("Workflow %s is disabled", workflow.ID), ErrWorkflowDisabled)
	}

	now := e.now()
	execution := &models.Execution{
		WorkflowID:  workflow.ID,
		ID:          NewExecutionID(now),
		Status:      models.ExecutionPending,
		TriggerType: triggerType,
		TriggerData: maps.Clone(triggerData),
		Steps:       make([]models.ExecutionStep, len(workflow.Steps)),
		StartedAt:   now,
	}

	for i, step := range workflow.Steps {
		execution.Steps[i] = models.ExecutionStep{
			StepID: step.ID,
			Name:   step.Name,
			Type:   step.Type(),
			Status: models.StepPending,
		}
	}

	if err := e.persistence.SaveExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to save execution: %w", err)
	}

	event := events.NewExecutionQueued(workflow.ID, execution.ID, triggerType, execution.TriggerData)
	if err := e.publisher.Publish(ctx, workflow.ID, event); err != nil {
		e.abandon(ctx, execution, err)

		return nil, fmt.Errorf("failed to queue execution %s: %w", execution.ID, err)
	}

	log.FromContext(ctx).InfoContext(ctx, "execution queued",
		"workflow_id", workflow.ID, "execution_id", execution.ID, "trigger_type", triggerType)

	return execution, nil
}

// abandon fails an execution that never reached the queue so it does not stay pending.
func (e *Execution) abandon(ctx context.Context, execution *models.Execution, cause error) {
	finished := e.now()
	execution.Status = models.ExecutionFailed
	execution.FinishedAt = &finished
	execution.Error = "failed to queue execution: " + cause.Error()

	if err := e.persistence.SaveExecution(context.WithoutCancel(ctx), execution); err != nil {
		e.logger.ErrorContext(ctx, "failed to mark unqueued execution as failed",
			"execution_id", execution.ID, "error", err)
	}
}

// List returns a page of executions of an existing workflow, newest first.
func (e *Execution) List(ctx context.Context, workflowID string, opts models.ExecutionListOptions) (*models.ExecutionList, error) {
	if _, err := e.persistence.WorkflowByID(ctx, workflowID); err != nil {
		return nil, err
	}

	list, err := e.persistence.Executions(ctx, workflowID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	return list, nil
}

// FetchByID returns one execution.
func (e *Execution) FetchByID(ctx context.Context, workflowID, executionID string) (*models.Execution, error) {
	return e.persistence.ExecutionByID(ctx, workflowID, executionID)
}
