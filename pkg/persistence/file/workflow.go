package file

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/persistence"
)

// Workflows returns every workflow, newest first.
func (fp *Persistence) Workflows(_ context.Context) ([]*models.Workflow, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	workflows := make([]*models.Workflow, 0)

	err := readDir(fp.path("workflows"), func(path string) error {
		var workflow models.Workflow
		if err := readJSON(path, &workflow); err != nil {
			return err
		}

		workflows = append(workflows, &workflow)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	slices.SortFunc(workflows, func(a, b *models.Workflow) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})

	return workflows, nil
}

// WorkflowByID retrieves a workflow by its ID from the file system.
func (fp *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	return fp.workflow(id)
}

func (fp *Persistence) workflow(id string) (*models.Workflow, error) {
	var workflow models.Workflow

	err := readJSON(fp.path("workflows", id+".json"), &workflow)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", id, err)
	}

	return &workflow, nil
}

// SaveWorkflow saves a workflow to the file system.
func (fp *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	stored := *workflow
	stored.LatestExecutionStatus = nil

	if err := writeJSON(fp.path("workflows", workflow.ID+".json"), &stored); err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, err)
	}

	return nil
}

// DeleteWorkflow removes a workflow and its executions.
func (fp *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	err := os.Remove(fp.path("workflows", id+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return persistence.NewWorkflowError("DeleteWorkflow", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	if err := os.RemoveAll(fp.path("executions", id)); err != nil {
		return fmt.Errorf("failed to delete executions of workflow %s: %w", id, err)
	}

	return nil
}
