package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/flowdash/pkg/channels/gochannel"
	"github.com/dukex/flowdash/pkg/eventbus"
	"github.com/dukex/flowdash/pkg/events"
	"github.com/dukex/flowdash/pkg/mocks"
	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/persistence"
	"github.com/dukex/flowdash/pkg/persistence/file"
	"github.com/dukex/flowdash/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func stepsWorkflow() *models.Workflow {
	return testutil.CreateTestWorkflow(testutil.WithSteps(
		models.Step{ID: "a", Name: "shape", Config: models.TransformConfig{Template: "{{trigger.payload}}", OutputKey: "order"}},
		models.Step{ID: "b", Name: "fetch", Config: models.HTTPRequestConfig{Method: models.MethodGet, URL: "https://example.com"}},
		models.Step{ID: "c", Name: "log", Config: models.LogConfig{Message: "done", Level: models.LevelWarn}},
	))
}

func setup(t *testing.T, workflow *models.Workflow, triggerData map[string]any) (*Executor, persistence.Persistence, *mocks.MockEventBus, *models.Execution) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	require.NoError(t, store.SaveWorkflow(t.Context(), workflow))

	queued := testutil.CreateTestExecution(workflow.ID, func(e *models.Execution) { e.TriggerData = triggerData })
	require.NoError(t, store.SaveExecution(t.Context(), queued))

	bus := &mocks.MockEventBus{}

	return NewExecutor(store, bus), store, bus, queued
}

func TestExecutor_RunDrySteps(t *testing.T) {
	executor, store, bus, queued := setup(t, stepsWorkflow(), map[string]any{})

	var finished events.ExecutionFinished

	bus.On("Publish", mock.Anything, queued.WorkflowID, mock.AnythingOfType("events.ExecutionFinished")).
		Run(func(args mock.Arguments) { finished = args.Get(2).(events.ExecutionFinished) }).
		Return(nil).Once()

	run, err := executor.Run(t.Context(), queued.WorkflowID, queued.ID)
	require.NoError(t, err)
	bus.AssertExpectations(t)

	assert.Equal(t, models.ExecutionSuccess, run.Status)
	assert.NotNil(t, run.FinishedAt)
	assert.Empty(t, run.Error)
	require.Len(t, run.Steps, 3)

	assert.Equal(t, models.StepSuccess, run.Steps[0].Status)
	assert.Equal(t, map[string]any{"result": "{{trigger.payload}}", "output_key": "order"}, run.Steps[0].Output)

	assert.Equal(t, models.StepSkipped, run.Steps[1].Status)
	assert.Nil(t, run.Steps[1].Output)
	assert.Nil(t, run.Steps[1].StartedAt)

	assert.Equal(t, models.StepSuccess, run.Steps[2].Status)
	assert.Equal(t, map[string]any{"message": "done", "level": "warn"}, run.Steps[2].Output)

	assert.Equal(t, queued.ID, finished.ExecutionID)
	assert.Equal(t, models.ExecutionSuccess, finished.Status)

	stored, err := store.ExecutionByID(t.Context(), queued.WorkflowID, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSuccess, stored.Status)
}

func TestExecutor_RunSimulatedFailure(t *testing.T) {
	executor, _, bus, queued := setup(t, stepsWorkflow(), map[string]any{SimulateFailureKey: true})

	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	run, err := executor.Run(t.Context(), queued.WorkflowID, queued.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionFailed, run.Status)
	assert.Equal(t, "step shape failed: simulated failure", run.Error)

	statuses := make([]models.StepStatus, len(run.Steps))
	for i, step := range run.Steps {
		statuses[i] = step.Status
	}

	assert.Equal(t, []models.StepStatus{models.StepFailed, models.StepSkipped, models.StepSkipped}, statuses)
	assert.Nil(t, run.Steps[0].Output)
	assert.Equal(t, SimulatedFailureMessage, run.Steps[0].Error)
}

func TestExecutor_RunIgnoresHandledExecutions(t *testing.T) {
	workflow := stepsWorkflow()
	executor, store, bus, queued := setup(t, workflow, map[string]any{})

	finishedAt := time.Now().UTC()
	queued.Status = models.ExecutionSuccess
	queued.FinishedAt = &finishedAt
	require.NoError(t, store.SaveExecution(t.Context(), queued))

	run, err := executor.Run(t.Context(), workflow.ID, queued.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionSuccess, run.Status)
	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecutor_RunMissingExecution(t *testing.T) {
	executor, _, _, queued := setup(t, stepsWorkflow(), nil)

	_, err := executor.Run(t.Context(), queued.WorkflowID, "ex_missing")

	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestExecutor_PublishFailureStillFinishes(t *testing.T) {
	executor, store, bus, queued := setup(t, stepsWorkflow(), map[string]any{})

	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)

	_, err := executor.Run(t.Context(), queued.WorkflowID, queued.ID)
	require.NoError(t, err)

	stored, err := store.ExecutionByID(t.Context(), queued.WorkflowID, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSuccess, stored.Status)
}

func TestExecutor_ConsumesQueuedEvents(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	workflow := stepsWorkflow()
	require.NoError(t, store.SaveWorkflow(t.Context(), workflow))

	queued := testutil.CreateTestExecution(workflow.ID)
	require.NoError(t, store.SaveExecution(t.Context(), queued))

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	executor := NewExecutor(store, bus)
	require.NoError(t, executor.Register(bus))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))
	require.NoError(t, bus.Publish(ctx, workflow.ID,
		events.NewExecutionQueued(workflow.ID, queued.ID, queued.TriggerType, queued.TriggerData)))

	assert.Eventually(t, func() bool {
		stored, err := store.ExecutionByID(t.Context(), workflow.ID, queued.ID)

		return err == nil && stored.Status == models.ExecutionSuccess
	}, 5*time.Second, 20*time.Millisecond)
}

func TestExecutor_DropsInvalidQueuedEvents(t *testing.T) {
	executor := NewExecutor(file.NewPersistence(t.TempDir()), &mocks.MockEventBus{})

	err := executor.handleQueued(t.Context(), &events.ExecutionQueued{})

	assert.NoError(t, err)
	assert.Error(t, executor.handleQueued(t.Context(), "not an event"))
}
