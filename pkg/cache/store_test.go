package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/flowdash/pkg/execution"
	"github.com/dukex/flowdash/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryGateway is an in-memory backend that counts calls.
type memoryGateway struct {
	mu         sync.Mutex
	workflows  map[string]*models.Workflow
	executions map[string]*models.Execution
	secrets    map[string]*models.Secret
	calls      map[string]int
	nextID     int

	block   chan struct{}
	started chan struct{}
	fail    error
}

func newMemoryGateway() *memoryGateway {
	return &memoryGateway{
		workflows:  map[string]*models.Workflow{},
		executions: map[string]*models.Execution{},
		secrets:    map[string]*models.Secret{},
		calls:      map[string]int{},
	}
}

func (g *memoryGateway) record(op string) {
	g.mu.Lock()
	g.calls[op]++
	g.mu.Unlock()

	if g.started != nil {
		g.started <- struct{}{}
	}

	if g.block != nil {
		<-g.block
	}
}

func (g *memoryGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.calls[op]
}

func copyWorkflow(w *models.Workflow) *models.Workflow {
	c := *w

	return &c
}

func (g *memoryGateway) Workflows(context.Context) ([]*models.Workflow, error) {
	g.record("Workflows")

	g.mu.Lock()
	defer g.mu.Unlock()

	result := make([]*models.Workflow, 0, len(g.workflows))
	for _, w := range g.workflows {
		result = append(result, copyWorkflow(w))
	}

	return result, g.fail
}

func (g *memoryGateway) Workflow(_ context.Context, id string) (*models.Workflow, error) {
	g.record("Workflow")

	g.mu.Lock()
	defer g.mu.Unlock()

	w, ok := g.workflows[id]
	if !ok {
		return nil, errors.New("not found")
	}

	return copyWorkflow(w), nil
}

func (g *memoryGateway) CreateWorkflow(_ context.Context, req models.WorkflowRequest) (*models.Workflow, error) {
	g.record("CreateWorkflow")

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.fail != nil {
		return nil, g.fail
	}

	g.nextID++
	w := &models.Workflow{ID: fmt.Sprintf("wf_%d", g.nextID), Name: req.Name, Enabled: req.Enabled, Trigger: req.Trigger, Steps: req.Steps}
	g.workflows[w.ID] = w

	return copyWorkflow(w), nil
}

func (g *memoryGateway) UpdateWorkflow(_ context.Context, id string, req models.WorkflowRequest) (*models.Workflow, error) {
	g.record("UpdateWorkflow")

	g.mu.Lock()
	defer g.mu.Unlock()

	w := g.workflows[id]
	w.Name = req.Name

	return copyWorkflow(w), nil
}

func (g *memoryGateway) SetEnabled(_ context.Context, id string, enabled bool) (*models.EnabledResponse, error) {
	g.record("SetEnabled")

	g.mu.Lock()
	defer g.mu.Unlock()

	g.workflows[id].Enabled = enabled

	return &models.EnabledResponse{WorkflowID: id, Enabled: enabled}, nil
}

func (g *memoryGateway) DeleteWorkflow(_ context.Context, id string) error {
	g.record("DeleteWorkflow")

	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.workflows, id)

	return nil
}

func (g *memoryGateway) Execute(_ context.Context, workflowID string, triggerData map[string]any) (*models.ExecuteResponse, error) {
	g.record("Execute")

	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextID++
	id := fmt.Sprintf("ex_%d", g.nextID)
	g.executions[id] = &models.Execution{WorkflowID: workflowID, ID: id, Status: models.ExecutionPending, TriggerData: triggerData}

	return &models.ExecuteResponse{Status: models.ExecuteQueued, WorkflowID: workflowID, ExecutionID: id}, nil
}

func (g *memoryGateway) Executions(_ context.Context, workflowID string, _ models.ExecutionListOptions) (*models.ExecutionList, error) {
	g.record("Executions")

	g.mu.Lock()
	defer g.mu.Unlock()

	list := &models.ExecutionList{}
	for _, e := range g.executions {
		if e.WorkflowID == workflowID {
			c := *e
			list.Executions = append(list.Executions, &c)
		}
	}

	list.Count = len(list.Executions)

	return list, nil
}

func (g *memoryGateway) Execution(_ context.Context, _ string, executionID string) (*models.Execution, error) {
	g.record("Execution")

	g.mu.Lock()
	defer g.mu.Unlock()

	c := *g.executions[executionID]

	return &c, nil
}

func (g *memoryGateway) Secrets(context.Context) ([]*models.Secret, error) {
	g.record("Secrets")

	g.mu.Lock()
	defer g.mu.Unlock()

	result := []*models.Secret{}
	for _, s := range g.secrets {
		result = append(result, s)
	}

	return result, nil
}

func (g *memoryGateway) CreateSecret(_ context.Context, req models.SecretRequest) (*models.Secret, error) {
	g.record("CreateSecret")

	g.mu.Lock()
	defer g.mu.Unlock()

	s := &models.Secret{Name: req.Name, SecretType: req.SecretType, MaskedValue: models.MaskSecret(req.Value)}
	g.secrets[req.Name] = s

	return s, nil
}

func (g *memoryGateway) DeleteSecret(_ context.Context, name string) error {
	g.record("DeleteSecret")

	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.secrets, name)

	return nil
}

func seeded(t *testing.T) (*Store, *memoryGateway, string) {
	t.Helper()

	gateway := newMemoryGateway()
	store := New(gateway)

	w, err := store.CreateWorkflow(context.Background(), models.WorkflowRequest{Name: "first", Trigger: models.NewTrigger(models.ManualConfig{})})
	require.NoError(t, err)

	return store, gateway, w.ID
}

func TestStore_ReadsAreCached(t *testing.T) {
	store, gateway, id := seeded(t)
	ctx := context.Background()

	for range 3 {
		_, err := store.Workflows(ctx)
		require.NoError(t, err)

		_, err = store.Workflow(ctx, id)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, gateway.count("Workflows"))
	assert.Equal(t, 1, gateway.count("Workflow"))
	assert.True(t, store.Cached(WorkflowsKey()))
	assert.True(t, store.Cached(WorkflowKey(id)))
}

func TestStore_ToggleInvalidatesListAndDetail(t *testing.T) {
	store, gateway, id := seeded(t)
	ctx := context.Background()

	_, err := store.Workflows(ctx)
	require.NoError(t, err)

	before, err := store.Workflow(ctx, id)
	require.NoError(t, err)
	assert.False(t, before.Enabled)

	_, err = store.SetEnabled(ctx, id, true)
	require.NoError(t, err)

	assert.False(t, store.Cached(WorkflowsKey()))
	assert.False(t, store.Cached(WorkflowKey(id)))

	list, err := store.Workflows(ctx)
	require.NoError(t, err)
	assert.True(t, list[0].Enabled)

	after, err := store.Workflow(ctx, id)
	require.NoError(t, err)
	assert.True(t, after.Enabled)

	assert.Equal(t, 2, gateway.count("Workflows"))
	assert.Equal(t, 2, gateway.count("Workflow"))
}

func TestStore_WorkflowWritesInvalidate(t *testing.T) {
	store, _, id := seeded(t)
	ctx := context.Background()

	warm := func() {
		_, err := store.Workflows(ctx)
		require.NoError(t, err)
		_, err = store.Workflow(ctx, id)
		require.NoError(t, err)
	}

	warm()
	_, err := store.UpdateWorkflow(ctx, id, models.WorkflowRequest{Name: "renamed"})
	require.NoError(t, err)
	assert.False(t, store.Cached(WorkflowsKey()))
	assert.False(t, store.Cached(WorkflowKey(id)))

	warm()
	_, err = store.CreateWorkflow(ctx, models.WorkflowRequest{Name: "second"})
	require.NoError(t, err)
	assert.False(t, store.Cached(WorkflowsKey()))

	warm()
	_, err = store.Executions(ctx, id, models.ExecutionListOptions{})
	require.NoError(t, err)
	require.NoError(t, store.DeleteWorkflow(ctx, id))
	assert.False(t, store.Cached(WorkflowsKey()))
	assert.False(t, store.Cached(WorkflowKey(id)))
	assert.False(t, store.Cached(executionsPageKey(id, models.ExecutionListOptions{})))
}

func TestStore_ExecuteInvalidatesExecutions(t *testing.T) {
	store, gateway, id := seeded(t)
	ctx := context.Background()

	first, err := store.Executions(ctx, id, models.ExecutionListOptions{})
	require.NoError(t, err)
	assert.Empty(t, first.Executions)

	_, err = store.Executions(ctx, id, models.ExecutionListOptions{Limit: 50})
	require.NoError(t, err)

	response, err := store.Execute(ctx, id, map[string]any{"x": 1})
	require.NoError(t, err)
	assert.NotEmpty(t, response.ExecutionID)

	assert.False(t, store.Cached(executionsPageKey(id, models.ExecutionListOptions{})))
	assert.False(t, store.Cached(executionsPageKey(id, models.ExecutionListOptions{Limit: 50})))

	second, err := store.Executions(ctx, id, models.ExecutionListOptions{})
	require.NoError(t, err)
	assert.Len(t, second.Executions, 1)
	assert.Equal(t, 3, gateway.count("Executions"))
}

func TestStore_RetryCreatesNewExecution(t *testing.T) {
	store, gateway, id := seeded(t)
	ctx := context.Background()

	gateway.executions["ex_failed"] = &models.Execution{
		WorkflowID:  id,
		ID:          "ex_failed",
		Status:      models.ExecutionFailed,
		TriggerData: map[string]any{"payload": "p"},
	}

	original, err := store.Execution(ctx, id, "ex_failed")
	require.NoError(t, err)

	_, err = store.Executions(ctx, id, models.ExecutionListOptions{})
	require.NoError(t, err)

	response, err := store.Retry(ctx, original)
	require.NoError(t, err)

	assert.NotEqual(t, "ex_failed", response.ExecutionID)
	assert.False(t, store.Cached(executionsPageKey(id, models.ExecutionListOptions{})))
	assert.Equal(t, models.ExecutionFailed, gateway.executions["ex_failed"].Status)
	assert.Equal(t, map[string]any{"payload": "p"}, gateway.executions[response.ExecutionID].TriggerData)

	_, err = store.Retry(ctx, &models.Execution{WorkflowID: id, ID: "ok", Status: models.ExecutionSuccess})
	assert.ErrorIs(t, err, execution.ErrNotRetryable)
}

func TestStore_OnlyTerminalExecutionsCached(t *testing.T) {
	store, gateway, id := seeded(t)
	ctx := context.Background()

	gateway.executions["ex_run"] = &models.Execution{WorkflowID: id, ID: "ex_run", Status: models.ExecutionRunning}
	gateway.executions["ex_done"] = &models.Execution{WorkflowID: id, ID: "ex_done", Status: models.ExecutionSuccess}

	for range 2 {
		_, err := store.Execution(ctx, id, "ex_run")
		require.NoError(t, err)
		_, err = store.Execution(ctx, id, "ex_done")
		require.NoError(t, err)
	}

	assert.Equal(t, 3, gateway.count("Execution"))
	assert.False(t, store.Cached(ExecutionKey(id, "ex_run")))
	assert.True(t, store.Cached(ExecutionKey(id, "ex_done")))
}

func TestStore_SecretWritesInvalidate(t *testing.T) {
	store, gateway, _ := seeded(t)
	ctx := context.Background()

	_, err := store.Secrets(ctx)
	require.NoError(t, err)

	_, err = store.CreateSecret(ctx, models.SecretRequest{Name: "hook", Value: "https://hook/abcd", SecretType: models.SecretDiscordWebhook})
	require.NoError(t, err)

	secrets, err := store.Secrets(ctx)
	require.NoError(t, err)
	require.Len(t, secrets, 1)
	assert.Equal(t, "****abcd", secrets[0].MaskedValue)

	require.NoError(t, store.DeleteSecret(ctx, "hook"))

	secrets, err = store.Secrets(ctx)
	require.NoError(t, err)
	assert.Empty(t, secrets)
	assert.Equal(t, 3, gateway.count("Secrets"))
}

func TestStore_ConcurrentReadsShareOneFetch(t *testing.T) {
	gateway := newMemoryGateway()
	gateway.block = make(chan struct{})
	gateway.started = make(chan struct{}, 10)
	store := New(gateway)

	var wg sync.WaitGroup

	var ok atomic.Int32

	for range 5 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if _, err := store.Workflows(context.Background()); err == nil {
				ok.Add(1)
			}
		}()
	}

	<-gateway.started
	time.Sleep(20 * time.Millisecond)
	close(gateway.block)
	wg.Wait()

	assert.Equal(t, int32(5), ok.Load())
	assert.Equal(t, 1, gateway.count("Workflows"))
}

func TestStore_AbandonedReadStillCaches(t *testing.T) {
	gateway := newMemoryGateway()
	gateway.block = make(chan struct{})
	gateway.started = make(chan struct{}, 1)
	store := New(gateway)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)

	go func() {
		_, err := store.Workflows(ctx)
		done <- err
	}()

	<-gateway.started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(gateway.block)
	assert.Eventually(t, func() bool { return store.Cached(WorkflowsKey()) }, time.Second, 5*time.Millisecond)
}

func TestStore_SecondMutationRejectedWhilePending(t *testing.T) {
	gateway := newMemoryGateway()
	gateway.block = make(chan struct{})
	gateway.started = make(chan struct{}, 1)
	store := New(gateway)

	done := make(chan error)

	go func() {
		_, err := store.CreateWorkflow(context.Background(), models.WorkflowRequest{Name: "a"})
		done <- err
	}()

	<-gateway.started
	assert.True(t, store.Pending(ActionCreateWorkflow))

	_, err := store.CreateWorkflow(context.Background(), models.WorkflowRequest{Name: "b"})
	assert.ErrorIs(t, err, ErrMutationPending)

	close(gateway.block)
	require.NoError(t, <-done)
	assert.False(t, store.Pending(ActionCreateWorkflow))
	assert.Equal(t, 1, gateway.count("CreateWorkflow"))
}

func TestStore_MutationSurvivesCancel(t *testing.T) {
	gateway := newMemoryGateway()
	gateway.block = make(chan struct{})
	gateway.started = make(chan struct{}, 2)
	store := New(gateway)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)

	go func() {
		_, err := store.CreateWorkflow(ctx, models.WorkflowRequest{Name: "a"})
		done <- err
	}()

	<-gateway.started
	cancel()
	close(gateway.block)

	require.NoError(t, <-done)
	assert.Len(t, gateway.workflows, 1)
}

func TestStore_FailedWriteKeepsCache(t *testing.T) {
	store, gateway, _ := seeded(t)
	ctx := context.Background()

	_, err := store.Workflows(ctx)
	require.NoError(t, err)

	gateway.fail = errors.New("boom")

	_, err = store.CreateWorkflow(ctx, models.WorkflowRequest{Name: "x"})
	require.Error(t, err)
	assert.True(t, store.Cached(WorkflowsKey()))
}

func TestStore_InvalidateDuringFetchDiscardsResult(t *testing.T) {
	gateway := newMemoryGateway()
	gateway.block = make(chan struct{})
	gateway.started = make(chan struct{}, 1)
	store := New(gateway)

	done := make(chan error)

	go func() {
		_, err := store.Workflows(context.Background())
		done <- err
	}()

	<-gateway.started
	store.Invalidate(WorkflowsKey())
	close(gateway.block)

	require.NoError(t, <-done)
	assert.False(t, store.Cached(WorkflowsKey()))
}

func TestKey_String(t *testing.T) {
	assert.Equal(t, "workflows", WorkflowsKey().String())
	assert.Equal(t, "workflow/wf_1", WorkflowKey("wf_1").String())
	assert.Equal(t, "execution/wf_1/ex_1", ExecutionKey("wf_1", "ex_1").String())
	assert.Equal(t, "executions/wf_1/20:", executionsPageKey("wf_1", models.ExecutionListOptions{}).String())
}
