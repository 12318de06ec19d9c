// Package persistence provides the storage abstraction of the development backend.
package persistence

import (
	"context"

	"github.com/dukex/flowdash/pkg/models"
)

// Persistence stores workflows, their executions and secrets.
//
// Lookups of a missing record return an error matching the package's
// sentinel errors (ErrWorkflowNotFound, ErrExecutionNotFound, ErrSecretNotFound).
type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	// DeleteWorkflow removes a workflow and all of its executions.
	DeleteWorkflow(ctx context.Context, id string) error

	SaveExecution(ctx context.Context, execution *models.Execution) error
	ExecutionByID(ctx context.Context, workflowID, executionID string) (*models.Execution, error)
	// Executions returns executions of a workflow, newest first. LastKey is the
	// ID of the last execution of the previous page.
	Executions(ctx context.Context, workflowID string, opts models.ExecutionListOptions) (*models.ExecutionList, error)

	Secrets(ctx context.Context) ([]*models.SecretRecord, error)
	SecretByName(ctx context.Context, name string) (*models.SecretRecord, error)
	// CreateSecret fails with ErrSecretAlreadyExists when the name is taken.
	CreateSecret(ctx context.Context, secret *models.SecretRecord) error
	DeleteSecret(ctx context.Context, name string) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// Page applies the executions cursor to a newest-first slice and fills the list.
func Page(sorted []*models.Execution, opts models.ExecutionListOptions) *models.ExecutionList {
	start := 0

	if opts.LastKey != "" {
		start = len(sorted)

		for i, e := range sorted {
			if e.ID < opts.LastKey {
				start = i

				break
			}
		}
	}

	limit := opts.EffectiveLimit()
	end := min(start+limit, len(sorted))

	list := &models.ExecutionList{Executions: sorted[start:end]}
	list.Count = len(list.Executions)

	if end < len(sorted) && list.Count > 0 {
		list.LastKey = list.Executions[list.Count-1].ID
	}

	return list
}
