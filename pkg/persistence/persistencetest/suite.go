// Package persistencetest holds behaviour checks shared by every persistence backend.
package persistencetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/persistence"
	"github.com/dukex/flowdash/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a backend. newPersistence must return an empty store for each call.
func Run(t *testing.T, newPersistence func(t *testing.T) persistence.Persistence) {
	t.Helper()

	t.Run("workflow round trip", func(t *testing.T) {
		p := newPersistence(t)
		ctx := context.Background()

		workflow := testutil.CreateTestWorkflow()
		require.NoError(t, p.SaveWorkflow(ctx, workflow))
		assert.False(t, workflow.CreatedAt.IsZero())
		assert.False(t, workflow.UpdatedAt.IsZero())

		got, err := p.WorkflowByID(ctx, workflow.ID)
		require.NoError(t, err)
		assert.Equal(t, workflow.Name, got.Name)
		assert.Equal(t, workflow.Trigger, got.Trigger)
		assert.Equal(t, workflow.Steps, got.Steps)
		assert.WithinDuration(t, workflow.CreatedAt, got.CreatedAt, time.Millisecond)

		workflow.Name = "renamed"
		workflow.Enabled = false
		require.NoError(t, p.SaveWorkflow(ctx, workflow))

		got, err = p.WorkflowByID(ctx, workflow.ID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Name)
		assert.False(t, got.Enabled)

		all, err := p.Workflows(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("missing workflow", func(t *testing.T) {
		p := newPersistence(t)
		ctx := context.Background()

		_, err := p.WorkflowByID(ctx, "wf_missing")
		assert.True(t, persistence.IsWorkflowNotFound(err))

		err = p.DeleteWorkflow(ctx, "wf_missing")
		assert.True(t, persistence.IsWorkflowNotFound(err))

		all, err := p.Workflows(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("executions page newest first", func(t *testing.T) {
		p := newPersistence(t)
		ctx := context.Background()

		workflow := testutil.CreateTestWorkflow()
		require.NoError(t, p.SaveWorkflow(ctx, workflow))

		for i := range 5 {
			execution := testutil.CreateTestExecution(workflow.ID, func(e *models.Execution) {
				e.ID = fmt.Sprintf("ex_%012x_%012x", i+1, i)
			})
			require.NoError(t, p.SaveExecution(ctx, execution))
		}

		first, err := p.Executions(ctx, workflow.ID, models.ExecutionListOptions{Limit: 3})
		require.NoError(t, err)
		require.Len(t, first.Executions, 3)
		assert.Equal(t, 3, first.Count)
		assert.Equal(t, fmt.Sprintf("ex_%012x_%012x", 5, 4), first.Executions[0].ID)
		assert.NotEmpty(t, first.LastKey)

		second, err := p.Executions(ctx, workflow.ID, models.ExecutionListOptions{Limit: 3, LastKey: first.LastKey})
		require.NoError(t, err)
		require.Len(t, second.Executions, 2)
		assert.Equal(t, fmt.Sprintf("ex_%012x_%012x", 1, 0), second.Executions[1].ID)
		assert.Empty(t, second.LastKey)

		other, err := p.Executions(ctx, "wf_other", models.ExecutionListOptions{})
		require.NoError(t, err)
		assert.Empty(t, other.Executions)
	})

	t.Run("execution update", func(t *testing.T) {
		p := newPersistence(t)
		ctx := context.Background()

		workflow := testutil.CreateTestWorkflow()
		require.NoError(t, p.SaveWorkflow(ctx, workflow))

		execution := testutil.CreateTestExecution(workflow.ID)
		require.NoError(t, p.SaveExecution(ctx, execution))

		finished := time.Now().UTC()
		execution.Status = models.ExecutionFailed
		execution.FinishedAt = &finished
		execution.Error = "boom"
		require.NoError(t, p.SaveExecution(ctx, execution))

		got, err := p.ExecutionByID(ctx, workflow.ID, execution.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionFailed, got.Status)
		assert.Equal(t, "boom", got.Error)
		assert.Equal(t, execution.TriggerData, got.TriggerData)
		require.NotNil(t, got.FinishedAt)

		_, err = p.ExecutionByID(ctx, workflow.ID, "ex_missing")
		assert.True(t, persistence.IsExecutionNotFound(err))

		_, err = p.ExecutionByID(ctx, "wf_other", execution.ID)
		assert.True(t, persistence.IsExecutionNotFound(err))
	})

	t.Run("execution requires workflow", func(t *testing.T) {
		p := newPersistence(t)

		err := p.SaveExecution(context.Background(), testutil.CreateTestExecution("wf_missing"))
		assert.True(t, persistence.IsWorkflowNotFound(err))
	})

	t.Run("delete workflow removes executions", func(t *testing.T) {
		p := newPersistence(t)
		ctx := context.Background()

		workflow := testutil.CreateTestWorkflow()
		require.NoError(t, p.SaveWorkflow(ctx, workflow))

		execution := testutil.CreateTestExecution(workflow.ID)
		require.NoError(t, p.SaveExecution(ctx, execution))

		require.NoError(t, p.DeleteWorkflow(ctx, workflow.ID))

		_, err := p.WorkflowByID(ctx, workflow.ID)
		assert.True(t, persistence.IsWorkflowNotFound(err))

		list, err := p.Executions(ctx, workflow.ID, models.ExecutionListOptions{})
		require.NoError(t, err)
		assert.Empty(t, list.Executions)
	})

	t.Run("secrets", func(t *testing.T) {
		p := newPersistence(t)
		ctx := context.Background()

		for _, name := range []string{"zeta", "alpha"} {
			require.NoError(t, p.CreateSecret(ctx, &models.SecretRecord{
				Name:       name,
				Value:      "value-" + name,
				SecretType: models.SecretAPIKey,
				CreatedAt:  time.Now().UTC(),
			}))
		}

		err := p.CreateSecret(ctx, &models.SecretRecord{Name: "alpha", Value: "x", SecretType: models.SecretCustom})
		assert.ErrorIs(t, err, persistence.ErrSecretAlreadyExists)

		secrets, err := p.Secrets(ctx)
		require.NoError(t, err)
		require.Len(t, secrets, 2)
		assert.Equal(t, "alpha", secrets[0].Name)
		assert.Equal(t, "value-alpha", secrets[0].Value)

		secret, err := p.SecretByName(ctx, "zeta")
		require.NoError(t, err)
		assert.Equal(t, models.SecretAPIKey, secret.SecretType)

		require.NoError(t, p.DeleteSecret(ctx, "zeta"))

		_, err = p.SecretByName(ctx, "zeta")
		assert.True(t, persistence.IsSecretNotFound(err))

		err = p.DeleteSecret(ctx, "zeta")
		assert.True(t, persistence.IsSecretNotFound(err))
	})

	t.Run("health check", func(t *testing.T) {
		p := newPersistence(t)

		assert.NoError(t, p.HealthCheck(context.Background()))
	})
}
