package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/persistence"
)

// SaveExecution creates or replaces an execution. The workflow must exist.
func (fp *Persistence) SaveExecution(_ context.Context, execution *models.Execution) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if _, err := fp.workflow(execution.WorkflowID); err != nil {
		return persistence.NewExecutionError("SaveExecution", execution.WorkflowID, execution.ID, err)
	}

	path := fp.path("executions", execution.WorkflowID, execution.ID+".json")
	if err := writeJSON(path, execution); err != nil {
		return persistence.NewExecutionError("SaveExecution", execution.WorkflowID, execution.ID, err)
	}

	return nil
}

// ExecutionByID retrieves one execution of a workflow.
func (fp *Persistence) ExecutionByID(_ context.Context, workflowID, executionID string) (*models.Execution, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	var execution models.Execution

	err := readJSON(fp.path("executions", workflowID, executionID+".json"), &execution)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, persistence.NewExecutionError("ExecutionByID", workflowID, executionID, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to fetch execution %s: %w", executionID, err)
	}

	return &execution, nil
}

// Executions returns a page of executions of a workflow, newest first.
func (fp *Persistence) Executions(_ context.Context, workflowID string, opts models.ExecutionListOptions) (*models.ExecutionList, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	executions := make([]*models.Execution, 0)

	err := readDir(fp.path("executions", workflowID), func(path string) error {
		var execution models.Execution
		if err := readJSON(path, &execution); err != nil {
			return err
		}

		executions = append(executions, &execution)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list executions of workflow %s: %w", workflowID, err)
	}

	slices.SortFunc(executions, func(a, b *models.Execution) int {
		return strings.Compare(b.ID, a.ID)
	})

	return persistence.Page(executions, opts), nil
}
