// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/google/uuid"
)

func hex12() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// CreateTestWorkflow creates an enabled webhook workflow with two steps that can be overridden.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	workflow := &models.Workflow{
		ID:          "wf_" + hex12(),
		Name:        "Test Workflow",
		Description: "A workflow for tests",
		Enabled:     true,
		Trigger:     models.NewTrigger(models.WebhookConfig{}),
		Steps: []models.Step{
			{
				ID:   "step-fetch",
				Name: "fetch",
				Config: models.HTTPRequestConfig{
					Method:  models.MethodGet,
					URL:     "https://example.com/{{trigger.payload.id}}",
					Headers: map[string]string{"Accept": "application/json"},
				},
			},
			{
				ID:     "step-log",
				Name:   "log",
				Config: models.LogConfig{Message: "got {{steps.fetch.output.status}}", Level: models.LevelInfo},
			},
		},
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// WithSteps replaces the workflow steps.
func WithSteps(steps ...models.Step) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Steps = steps
	}
}

// WithTrigger replaces the workflow trigger.
func WithTrigger(config models.TriggerConfig) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Trigger = models.NewTrigger(config)
	}
}

// Disabled marks the workflow as disabled.
func Disabled() func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Enabled = false
	}
}

// CreateTestExecution creates a pending execution of workflowID that can be overridden.
func CreateTestExecution(workflowID string, overrides ...func(*models.Execution)) *models.Execution {
	now := time.Now().UTC()

	execution := &models.Execution{
		WorkflowID:  workflowID,
		ID:          fmt.Sprintf("ex_%012x_%s", now.UnixMilli(), hex12()),
		Status:      models.ExecutionPending,
		TriggerType: models.TriggerWebhook,
		TriggerData: map[string]any{"payload": map[string]any{"id": "42"}},
		Steps:       []models.ExecutionStep{},
		StartedAt:   now,
	}

	for _, override := range overrides {
		override(execution)
	}

	return execution
}

// StatusPtr returns a pointer to an execution status.
func StatusPtr(status models.ExecutionStatus) *models.ExecutionStatus {
	return &status
}
