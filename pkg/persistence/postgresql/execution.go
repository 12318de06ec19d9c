package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/persistence"
	"github.com/lib/pq"
)

const selectExecutions = `
	SELECT
		id
	  , workflow_id
	  , status
	  , trigger_type
	  , trigger_data
	  , steps
	  , started_at
	  , finished_at
	  , error_message
	FROM executions
`

func scanExecution(row scanner) (*models.Execution, error) {
	var (
		execution   models.Execution
		triggerData []byte
		steps       []byte
		finishedAt  sql.NullTime
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.Status,
		&execution.TriggerType,
		&triggerData,
		&steps,
		&execution.StartedAt,
		&finishedAt,
		&execution.Error,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(triggerData, &execution.TriggerData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
	}

	if err := json.Unmarshal(steps, &execution.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	if finishedAt.Valid {
		execution.FinishedAt = &finishedAt.Time
	}

	return &execution, nil
}

// SaveExecution inserts or replaces an execution.
func (p *Persistence) SaveExecution(ctx context.Context, execution *models.Execution) error {
	triggerData := execution.TriggerData
	if triggerData == nil {
		triggerData = map[string]any{}
	}

	triggerJSON, err := json.Marshal(triggerData)
	if err != nil {
		return persistence.NewExecutionError("SaveExecution", execution.WorkflowID, execution.ID, err)
	}

	steps := execution.Steps
	if steps == nil {
		steps = []models.ExecutionStep{}
	}

	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return persistence.NewExecutionError("SaveExecution", execution.WorkflowID, execution.ID, err)
	}

	query := `
		INSERT INTO executions (id, workflow_id, status, trigger_type, trigger_data, steps, started_at, finished_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status
		  , steps = EXCLUDED.steps
		  , finished_at = EXCLUDED.finished_at
		  , error_message = EXCLUDED.error_message
	`

	_, err = p.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.Status,
		execution.TriggerType,
		triggerJSON,
		stepsJSON,
		execution.StartedAt,
		execution.FinishedAt,
		execution.Error,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
		err = persistence.ErrWorkflowNotFound
	}

	if err != nil {
		return persistence.NewExecutionError("SaveExecution", execution.WorkflowID, execution.ID, err)
	}

	return nil
}

// ExecutionByID returns one execution of a workflow.
func (p *Persistence) ExecutionByID(ctx context.Context, workflowID, executionID string) (*models.Execution, error) {
	row := p.db.QueryRowContext(ctx, selectExecutions+" WHERE workflow_id = $1 AND id = $2", workflowID, executionID)

	execution, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewExecutionError("ExecutionByID", workflowID, executionID, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

// Executions returns a page of executions of a workflow, newest first.
// One row beyond the limit is read to decide whether a next page exists.
func (p *Persistence) Executions(ctx context.Context, workflowID string, opts models.ExecutionListOptions) (*models.ExecutionList, error) {
	limit := opts.EffectiveLimit()

	query := selectExecutions + " WHERE workflow_id = $1 AND ($2::text = '' OR id < $2::text) ORDER BY id DESC LIMIT $3"

	rows, err := p.db.QueryContext(ctx, query, workflowID, opts.LastKey, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer p.closeRows(ctx, rows)

	executions := make([]*models.Execution, 0, limit+1)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return persistence.Page(executions, models.ExecutionListOptions{Limit: limit}), nil
}
