// Package workflow runs queued executions of the development backend. Runs are
// dry: no step reaches outside the process.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowdash/pkg/eventbus"
	"github.com/dukex/flowdash/pkg/events"
	"github.com/dukex/flowdash/pkg/execution"
	"github.com/dukex/flowdash/pkg/log"
	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/persistence"
)

// SimulateFailureKey in trigger data makes the first step and the run fail.
const SimulateFailureKey = "simulate_failure"

// SimulatedFailureMessage is the error of a step failed on request.
const SimulatedFailureMessage = "simulated failure"

type Executor struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	now         func() time.Time
}

func NewExecutor(persistence persistence.Persistence, publisher eventbus.EventPublisher) *Executor {
	return &Executor{
		persistence: persistence,
		publisher:   publisher,
		logger:      log.WithModule("workflow_executor"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Register subscribes the executor to queued executions and logs finished ones.
func (x *Executor) Register(bus eventbus.EventSubscriber) error {
	if err := bus.Handle(events.ExecutionQueuedEvent, x.handleQueued); err != nil {
		return fmt.Errorf("failed to handle %s: %w", events.ExecutionQueuedEvent, err)
	}

	if err := bus.Handle(events.ExecutionFinishedEvent, x.handleFinished); err != nil {
		return fmt.Errorf("failed to handle %s: %w", events.ExecutionFinishedEvent, err)
	}

	return nil
}

func (x *Executor) handleQueued(ctx context.Context, event any) error {
	queued, ok := event.(*events.ExecutionQueued)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	if err := queued.Validate(); err != nil {
		// A malformed event can never succeed; acking it stops redelivery.
		x.logger.ErrorContext(ctx, "dropping invalid queued event", "error", err)

		return nil
	}

	_, err := x.Run(ctx, queued.WorkflowID, queued.ExecutionID)

	return err
}

func (x *Executor) handleFinished(ctx context.Context, event any) error {
	finished, ok := event.(*events.ExecutionFinished)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	x.logger.InfoContext(ctx, "execution finished",
		"workflow_id", finished.WorkflowID,
		"execution_id", finished.ExecutionID,
		"status", finished.Status,
		"duration", execution.FormatDuration(finished.Duration),
	)

	return nil
}

// Run executes a pending execution and returns it in its final state. An
// execution that is no longer pending is returned unchanged, so redelivered
// events are harmless.
func (x *Executor) Run(ctx context.Context, workflowID, executionID string) (*models.Execution, error) {
	logger := x.logger.With("workflow_id", workflowID, "execution_id", executionID)

	run, err := x.persistence.ExecutionByID(ctx, workflowID, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution: %w", err)
	}

	if !execution.CanTransition(run.Status, models.ExecutionRunning) {
		logger.InfoContext(ctx, "execution already handled", "status", run.Status)

		return run, nil
	}

	workflow, err := x.persistence.WorkflowByID(ctx, workflowID)
	if persistence.IsWorkflowNotFound(err) {
		return nil, fmt.Errorf("workflow of execution %s is gone: %w", executionID, err)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	run.Status = models.ExecutionRunning
	if err := x.persistence.SaveExecution(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to mark execution running: %w", err)
	}

	logger.InfoContext(ctx, "Starting execution of workflow", "steps", len(workflow.Steps))

	x.runSteps(ctx, logger, workflow, run)

	finished := x.now()
	run.FinishedAt = &finished

	if err := x.persistence.SaveExecution(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save finished execution: %w", err)
	}

	duration := finished.Sub(run.StartedAt)

	if err := x.publisher.Publish(ctx, workflowID, events.NewExecutionFinished(run, duration)); err != nil {
		logger.WarnContext(ctx, "failed to publish finished event", "error", err)
	}

	logger.InfoContext(ctx, "Completed execution of workflow", "status", run.Status)

	return run, nil
}

// runSteps walks the steps in order and sets the final execution status.
func (x *Executor) runSteps(ctx context.Context, logger *slog.Logger, workflow *models.Workflow, run *models.Execution) {
	steps := make([]models.ExecutionStep, len(workflow.Steps))
	fail := run.TriggerData[SimulateFailureKey] == true
	failed := false

	for i, step := range workflow.Steps {
		result := models.ExecutionStep{
			StepID: step.ID,
			Name:   step.Name,
			Type:   step.Type(),
			Status: models.StepPending,
			Input:  step.Config,
		}

		if failed {
			result.Status = models.StepSkipped
			steps[i] = result

			continue
		}

		output, status, message := dryRun(step)
		if fail && i == 0 {
			output, status, message = nil, models.StepFailed, SimulatedFailureMessage
		}

		if status == models.StepSkipped {
			result.Status = models.StepSkipped
			steps[i] = result

			continue
		}

		started := x.now()
		result.StartedAt = &started

		stepFinished := x.now()
		result.FinishedAt = &stepFinished
		result.Status = status
		result.Error = message

		if status == models.StepSuccess {
			result.Output = output
		} else {
			failed = true
			run.Error = fmt.Sprintf("step %s failed: %s", step.Name, message)
		}

		logger.DebugContext(ctx, "step finished", "step_id", step.ID, "step_type", step.Type(), "status", status)

		steps[i] = result
	}

	run.Steps = steps
	run.Status = models.ExecutionSuccess

	if failed {
		run.Status = models.ExecutionFailed
	}
}

// dryRun returns the outcome of one step. Steps with side effects outside the
// process are skipped; the rest echo their configuration.
func dryRun(step models.Step) (any, models.StepStatus, string) {
	switch config := step.Config.(type) {
	case models.LogConfig:
		return map[string]any{"message": config.Message, "level": string(config.Level)}, models.StepSuccess, ""
	case models.TransformConfig:
		output := map[string]any{"result": config.Template}
		if config.OutputKey != "" {
			output["output_key"] = config.OutputKey
		}

		return output, models.StepSuccess, ""
	case models.HTTPRequestConfig, models.NotifyConfig:
		return nil, models.StepSkipped, ""
	}

	return nil, models.StepFailed, fmt.Sprintf("unsupported step type %q", step.Type())
}
