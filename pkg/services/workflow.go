package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowdash/pkg/form"
	"github.com/dukex/flowdash/pkg/log"
	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/persistence"
	"github.com/lithammer/shortuuid/v3"
)

type Workflow struct {
	persistence persistence.Persistence
	logger      *slog.Logger
	now         func() time.Time
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence) *Workflow {
	return &Workflow{
		persistence: persistence,
		logger:      log.WithModule("services.workflow"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns every workflow with the status of its most recent execution.
func (w *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := w.persistence.Workflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	for _, workflow := range workflows {
		w.withLatestStatus(ctx, workflow)
	}

	return workflows, nil
}

// withLatestStatus sets LatestExecutionStatus. A failed lookup only costs the enrichment.
func (w *Workflow) withLatestStatus(ctx context.Context, workflow *models.Workflow) {
	latest, err := w.persistence.Executions(ctx, workflow.ID, models.ExecutionListOptions{Limit: 1})
	if err != nil {
		w.logger.WarnContext(ctx, "failed to load latest execution", "workflow_id", workflow.ID, "error", err)

		return
	}

	if len(latest.Executions) > 0 {
		status := latest.Executions[0].Status
		workflow.LatestExecutionStatus = &status
	}
}

// FetchByID returns one workflow.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	w.withLatestStatus(ctx, workflow)

	return workflow, nil
}

// Create validates a workflow request and stores it under a new ID.
func (w *Workflow) Create(ctx context.Context, req models.WorkflowRequest) (*models.Workflow, error) {
	workflow, err := checkRequest("Create", req)
	if err != nil {
		return nil, err
	}

	now := w.now()
	workflow.ID = NewWorkflowID()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if err := w.persistence.SaveWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "workflow created", "workflow_id", workflow.ID, "name", workflow.Name)

	return workflow, nil
}

// Update replaces every field of an existing workflow except its ID and creation time.
func (w *Workflow) Update(ctx context.Context, id string, req models.WorkflowRequest) (*models.Workflow, error) {
	existing, err := w.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	workflow, err := checkRequest("Update", req)
	if err != nil {
		return nil, err
	}

	workflow.ID = existing.ID
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = w.now()

	if err := w.persistence.SaveWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "workflow updated", "workflow_id", workflow.ID)

	return workflow, nil
}

// SetEnabled turns a workflow on or off.
func (w *Workflow) SetEnabled(ctx context.Context, id string, enabled bool) (*models.EnabledResponse, error) {
	workflow, err := w.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	workflow.Enabled = enabled
	workflow.UpdatedAt = w.now()

	if err := w.persistence.SaveWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}

	w.logger.InfoContext(ctx, "workflow "+state, "workflow_id", id)

	return &models.EnabledResponse{
		WorkflowID: id,
		Enabled:    enabled,
		Message:    "Workflow " + state,
	}, nil
}

// Delete removes a workflow and its executions.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	if err := w.persistence.DeleteWorkflow(ctx, id); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "workflow deleted", "workflow_id", id)

	return nil
}

// checkRequest assigns missing step IDs and runs the form checks.
func checkRequest(op string, req models.WorkflowRequest) (*models.Workflow, error) {
	data := form.Data{
		Name:        req.Name,
		Description: req.Description,
		Enabled:     req.Enabled,
		Trigger:     req.Trigger,
		Steps:       make([]models.Step, len(req.Steps)),
	}

	for i, step := range req.Steps {
		if step.ID == "" {
			step.ID = shortuuid.New()
		}

		data.Steps[i] = step
	}

	workflow, err := form.Check(data)
	if err == nil {
		return workflow, nil
	}

	var problems form.ValidationErrors
	if errors.As(err, &problems) {
		return nil, &InvalidWorkflowError{Op: op, Problems: problems}
	}

	if errors.Is(err, form.ErrStepID) {
		return nil, &InvalidWorkflowError{Op: op, Problems: form.ValidationErrors{{Field: "steps", Message: err.Error()}}}
	}

	return nil, fmt.Errorf("failed to validate workflow: %w", err)
}
