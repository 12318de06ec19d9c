package services

import (
	"regexp"
	"testing"
	"time"

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

func newExecutionService(t *testing.T, workflows ...*models.Workflow) (*Execution, persistence.Persistence, *mocks.MockEventBus) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	for _, w := range workflows {
		require.NoError(t, store.SaveWorkflow(t.Context(), w))
	}

	bus := &mocks.MockEventBus{}

	return NewExecution(store, bus), store, bus
}

func TestExecution_Execute(t *testing.T) {
	workflow := testutil.CreateTestWorkflow()
	service, store, bus := newExecutionService(t, workflow)

	var published events.ExecutionQueued

	bus.On("Publish", mock.Anything, workflow.ID, mock.AnythingOfType("events.ExecutionQueued")).
		Run(func(args mock.Arguments) { published = args.Get(2).(events.ExecutionQueued) }).
		Return(nil).Once()

	response, err := service.Execute(t.Context(), workflow.ID, map[string]any{"order": "A-1"})
	require.NoError(t, err)
	bus.AssertExpectations(t)

	assert.Equal(t, models.ExecuteQueued, response.Status)
	assert.Equal(t, workflow.ID, response.WorkflowID)
	assert.Equal(t, "Execution queued successfully", response.Message)
	assert.Regexp(t, regexp.MustCompile(`^ex_[0-9a-f]{12}_[0-9a-f]{12}$`), response.ExecutionID)

	assert.Equal(t, response.ExecutionID, published.ExecutionID)
	assert.Equal(t, string(models.TriggerManual), published.TriggerType)
	assert.Equal(t, map[string]any{"order": "A-1"}, published.TriggerData)

	stored, err := store.ExecutionByID(t.Context(), workflow.ID, response.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionPending, stored.Status)
	assert.Equal(t, models.TriggerManual, stored.TriggerType)
	require.Len(t, stored.Steps, 2)
	assert.Equal(t, "step-fetch", stored.Steps[0].StepID)
	assert.Equal(t, models.StepHTTPRequest, stored.Steps[0].Type)
	assert.Equal(t, models.StepPending, stored.Steps[1].Status)
}

func TestExecution_ExecuteRejects(t *testing.T) {
	disabled := testutil.CreateTestWorkflow(testutil.Disabled())
	service, _, bus := newExecutionService(t, disabled)

	_, err := service.Execute(t.Context(), disabled.ID, nil)
	require.ErrorIs(t, err, ErrWorkflowDisabled)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, "Workflow "+disabled.ID+" is disabled", Message(err))

	_, err = service.Execute(t.Context(), "wf_missing", nil)
	assert.True(t, IsNotFound(err))

	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecution_ExecuteFailsUnqueuedRun(t *testing.T) {
	workflow := testutil.CreateTestWorkflow()
	service, store, bus := newExecutionService(t, workflow)

	bus.On("Publish", mock.Anything, workflow.ID, mock.Anything).Return(assert.AnError)

	_, err := service.Execute(t.Context(), workflow.ID, nil)
	require.ErrorIs(t, err, assert.AnError)
	assert.False(t, IsValidationError(err))

	list, err := store.Executions(t.Context(), workflow.ID, models.ExecutionListOptions{})
	require.NoError(t, err)
	require.Len(t, list.Executions, 1)
	assert.Equal(t, models.ExecutionFailed, list.Executions[0].Status)
	assert.NotNil(t, list.Executions[0].FinishedAt)
	assert.Contains(t, list.Executions[0].Error, "failed to queue execution")
}

func TestExecution_ReceiveWebhook(t *testing.T) {
	workflow := testutil.CreateTestWorkflow()
	service, _, bus := newExecutionService(t, workflow)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	bus.On("Publish", mock.Anything, workflow.ID, mock.AnythingOfType("events.ExecutionQueued")).Return(nil)

	execution, err := service.ReceiveWebhook(t.Context(), workflow.ID, WebhookRequest{
		ContentType: "application/json; charset=utf-8",
		Body:        []byte(`{"id":"42"}`),
		Headers:     map[string]string{"X-Signature": "abc", "Host": "localhost", "Content-Length": "11"},
		Query:       map[string]string{"source": "shop"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.TriggerWebhook, execution.TriggerType)
	assert.Equal(t, map[string]any{
		"type":      "webhook",
		"payload":   map[string]any{"id": "42"},
		"headers":   map[string]any{"X-Signature": "abc"},
		"query":     map[string]any{"source": "shop"},
		"method":    "POST",
		"timestamp": "2026-03-01T12:00:00Z",
	}, execution.TriggerData)
}

func TestExecution_ReceiveWebhookRejects(t *testing.T) {
	manual := testutil.CreateTestWorkflow(testutil.WithTrigger(models.ManualConfig{}))
	disabled := testutil.CreateTestWorkflow(testutil.Disabled())
	service, _, _ := newExecutionService(t, manual, disabled)

	_, err := service.ReceiveWebhook(t.Context(), manual.ID, WebhookRequest{})
	require.ErrorIs(t, err, ErrNotWebhookWorkflow)

	_, err = service.ReceiveWebhook(t.Context(), disabled.ID, WebhookRequest{})
	require.ErrorIs(t, err, ErrWorkflowDisabled)

	_, err = service.ReceiveWebhook(t.Context(), "wf_missing", WebhookRequest{})
	assert.True(t, IsNotFound(err))
}

func TestParseWebhookBody(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		expected    any
	}{
		{name: "empty", contentType: "application/json", body: "", expected: map[string]any{}},
		{name: "json object", contentType: "application/json", body: `{"a":1}`, expected: map[string]any{"a": float64(1)}},
		{name: "json array", contentType: "application/json", body: `[1,2]`, expected: []any{float64(1), float64(2)}},
		{name: "broken json", contentType: "application/json", body: `{"a"`, expected: map[string]any{"raw": `{"a"`}},
		{
			name:        "form",
			contentType: "application/x-www-form-urlencoded",
			body:        "a=1&b=2&b=3&c=",
			expected:    map[string]any{"a": "1", "b": []string{"2", "3"}, "c": ""},
		},
		{name: "text", contentType: "text/plain", body: "hello", expected: map[string]any{"raw": "hello"}},
		{name: "no content type", contentType: "", body: "hello", expected: map[string]any{"raw": "hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseWebhookBody(tt.contentType, []byte(tt.body)))
		})
	}
}

func TestExecution_ListAndFetch(t *testing.T) {
	workflow := testutil.CreateTestWorkflow()
	service, store, _ := newExecutionService(t, workflow)

	for i := range 3 {
		execution := testutil.CreateTestExecution(workflow.ID, func(e *models.Execution) {
			e.ID = NewExecutionID(time.UnixMilli(int64(1000 + i)))
		})
		require.NoError(t, store.SaveExecution(t.Context(), execution))
	}

	page, err := service.List(t.Context(), workflow.ID, models.ExecutionListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Executions, 2)
	assert.NotEmpty(t, page.LastKey)
	assert.Greater(t, page.Executions[0].ID, page.Executions[1].ID)

	rest, err := service.List(t.Context(), workflow.ID, models.ExecutionListOptions{Limit: 2, LastKey: page.LastKey})
	require.NoError(t, err)
	require.Len(t, rest.Executions, 1)
	assert.Empty(t, rest.LastKey)

	fetched, err := service.FetchByID(t.Context(), workflow.ID, rest.Executions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, rest.Executions[0].ID, fetched.ID)

	_, err = service.FetchByID(t.Context(), workflow.ID, "ex_missing")
	assert.True(t, IsNotFound(err))

	_, err = service.List(t.Context(), "wf_missing", models.ExecutionListOptions{})
	assert.True(t, IsNotFound(err))
}

func TestNewExecutionID_SortsByTime(t *testing.T) {
	earlier := NewExecutionID(time.UnixMilli(1_700_000_000_000))
	later := NewExecutionID(time.UnixMilli(1_700_000_000_001))

	assert.Less(t, earlier, later)
	assert.Equal(t, "ex_018bcfe56800_", earlier[:16])
}
