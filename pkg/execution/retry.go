package execution

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/dukex/flowdash/pkg/models"
)

var (
	// ErrNotRetryable is returned when retrying an execution that has not failed.
	ErrNotRetryable = errors.New("execution is not retryable")
	// ErrSameExecution is returned when a retry reports the ID of the execution it retried.
	ErrSameExecution = errors.New("retry returned the original execution")
)

// IsRetryable reports whether a run can be retried. Only failed runs can.
func IsRetryable(e *models.Execution) bool {
	return e != nil && e.Status == models.ExecutionFailed
}

// Runner starts a new execution of a workflow.
type Runner interface {
	Execute(ctx context.Context, workflowID string, triggerData map[string]any) (*models.ExecuteResponse, error)
}

// Retry starts a new execution carrying the trigger data of a failed one and
// returns the response of that call. The original record is not modified.
// The caller should move on to the returned execution ID; it can be empty when
// the backend did not assign one synchronously.
func Retry(ctx context.Context, runner Runner, e *models.Execution) (*models.ExecuteResponse, error) {
	if !IsRetryable(e) {
		return nil, ErrNotRetryable
	}

	triggerData := maps.Clone(e.TriggerData)
	if triggerData == nil {
		triggerData = map[string]any{}
	}

	response, err := runner.Execute(ctx, e.WorkflowID, triggerData)
	if err != nil {
		return nil, fmt.Errorf("failed to retry execution %s: %w", e.ID, err)
	}

	if response.ExecutionID != "" && response.ExecutionID == e.ID {
		return nil, fmt.Errorf("%w: %s", ErrSameExecution, e.ID)
	}

	return response, nil
}
