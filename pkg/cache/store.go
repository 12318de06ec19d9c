package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/dukex/flowdash/pkg/execution"
	"github.com/dukex/flowdash/pkg/log"
	"github.com/dukex/flowdash/pkg/models"
	"golang.org/x/sync/singleflight"
)

// ErrMutationPending is returned when the same action is started again before
// the first call has finished.
var ErrMutationPending = errors.New("action already in progress")

// Gateway is the subset of the API client the store reads and writes through.
type Gateway interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	Workflow(ctx context.Context, id string) (*models.Workflow, error)
	CreateWorkflow(ctx context.Context, req models.WorkflowRequest) (*models.Workflow, error)
	UpdateWorkflow(ctx context.Context, id string, req models.WorkflowRequest) (*models.Workflow, error)
	SetEnabled(ctx context.Context, id string, enabled bool) (*models.EnabledResponse, error)
	DeleteWorkflow(ctx context.Context, id string) error
	Execute(ctx context.Context, workflowID string, triggerData map[string]any) (*models.ExecuteResponse, error)
	Executions(ctx context.Context, workflowID string, opts models.ExecutionListOptions) (*models.ExecutionList, error)
	Execution(ctx context.Context, workflowID, executionID string) (*models.Execution, error)
	Secrets(ctx context.Context) ([]*models.Secret, error)
	CreateSecret(ctx context.Context, req models.SecretRequest) (*models.Secret, error)
	DeleteSecret(ctx context.Context, name string) error
}

// Store caches reads from a Gateway and invalidates them after writes.
// Cached values are shared between callers and must not be modified.
type Store struct {
	gateway Gateway
	logger  *slog.Logger
	flights singleflight.Group

	mu          sync.Mutex
	entries     map[Key]any
	generations map[Key]uint64
	pending     map[string]bool
}

// New returns an empty store in front of gateway.
func New(gateway Gateway) *Store {
	return &Store{
		gateway:     gateway,
		logger:      log.WithModule("cache"),
		entries:     make(map[Key]any),
		generations: make(map[Key]uint64),
		pending:     make(map[string]bool),
	}
}

// Cached reports whether key currently holds a value.
func (s *Store) Cached(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[key]

	return ok
}

// Invalidate drops the given entries. A key without Page drops every page of its kind and ID.
func (s *Store) Invalidate(keys ...Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		s.generations[key.group()]++

		for cached := range s.entries {
			if cached == key || (key.Page == "" && cached.group() == key) {
				delete(s.entries, cached)
			}
		}

		s.logger.Debug("invalidated cache entry", "key", key.String())
	}
}

// Mutation actions guarded by the store. Actions on one resource are scoped with ActionFor.
const (
	ActionCreateWorkflow = "workflows.create"
	ActionUpdateWorkflow = "workflow.update"
	ActionSetEnabled     = "workflow.enabled"
	ActionDeleteWorkflow = "workflow.delete"
	ActionExecute        = "workflow.execute"
	ActionRetry          = "execution.retry"
	ActionCreateSecret   = "secrets.create"
	ActionDeleteSecret   = "secret.delete"
)

// ActionFor scopes an action to one resource ID.
func ActionFor(action, id string) string {
	return action + ":" + id
}

// Pending reports whether a mutation for action is in flight.
func (s *Store) Pending(action string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending[action]
}

// load returns the cached value of key or fetches it once for all concurrent callers.
// A caller whose ctx ends stops waiting; the fetch itself carries on for the others.
func load[T any](ctx context.Context, s *Store, key Key, keep func(T) bool, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	s.mu.Lock()
	if value, ok := s.entries[key]; ok {
		s.mu.Unlock()

		return value.(T), nil
	}

	generation := s.generations[key.group()]
	s.mu.Unlock()

	results := s.flights.DoChan(key.String()+"#"+strconv.FormatUint(generation, 10), func() (any, error) {
		value, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		if s.generations[key.group()] == generation && (keep == nil || keep(value)) {
			s.entries[key] = value
		}
		s.mu.Unlock()

		return value, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return zero, result.Err
		}

		return result.Val.(T), nil
	}
}

// mutate runs a write once per action at a time. The write is not canceled with
// ctx; once started it completes and its invalidations apply.
func mutate[T any](ctx context.Context, s *Store, action string, write func(context.Context) (T, error), invalidates func(T) []Key) (T, error) {
	var zero T

	s.mu.Lock()
	if s.pending[action] {
		s.mu.Unlock()

		return zero, fmt.Errorf("%w: %s", ErrMutationPending, action)
	}

	s.pending[action] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, action)
		s.mu.Unlock()
	}()

	value, err := write(context.WithoutCancel(ctx))
	if err != nil {
		return zero, err
	}

	s.Invalidate(invalidates(value)...)

	return value, nil
}

// Workflows returns the list of all workflows.
func (s *Store) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	return load(ctx, s, WorkflowsKey(), nil, s.gateway.Workflows)
}

// Workflow returns one workflow.
func (s *Store) Workflow(ctx context.Context, id string) (*models.Workflow, error) {
	return load(ctx, s, WorkflowKey(id), nil, func(ctx context.Context) (*models.Workflow, error) {
		return s.gateway.Workflow(ctx, id)
	})
}

// Executions returns a page of executions of a workflow.
func (s *Store) Executions(ctx context.Context, workflowID string, opts models.ExecutionListOptions) (*models.ExecutionList, error) {
	return load(ctx, s, executionsPageKey(workflowID, opts), nil, func(ctx context.Context) (*models.ExecutionList, error) {
		return s.gateway.Executions(ctx, workflowID, opts)
	})
}

// Execution returns one execution. Only finished executions are kept, so a running
// one is fetched fresh on every call.
func (s *Store) Execution(ctx context.Context, workflowID, executionID string) (*models.Execution, error) {
	terminal := func(e *models.Execution) bool { return e.Status.Terminal() }

	return load(ctx, s, ExecutionKey(workflowID, executionID), terminal, func(ctx context.Context) (*models.Execution, error) {
		return s.gateway.Execution(ctx, workflowID, executionID)
	})
}

// Secrets returns secret metadata.
func (s *Store) Secrets(ctx context.Context) ([]*models.Secret, error) {
	return load(ctx, s, SecretsKey(), nil, s.gateway.Secrets)
}

func workflowKeys(id string) []Key {
	return []Key{WorkflowsKey(), WorkflowKey(id)}
}

// CreateWorkflow stores a new workflow.
func (s *Store) CreateWorkflow(ctx context.Context, req models.WorkflowRequest) (*models.Workflow, error) {
	return mutate(ctx, s, ActionCreateWorkflow, func(ctx context.Context) (*models.Workflow, error) {
		return s.gateway.CreateWorkflow(ctx, req)
	}, func(w *models.Workflow) []Key {
		return workflowKeys(w.ID)
	})
}

// UpdateWorkflow replaces a workflow.
func (s *Store) UpdateWorkflow(ctx context.Context, id string, req models.WorkflowRequest) (*models.Workflow, error) {
	return mutate(ctx, s, ActionFor(ActionUpdateWorkflow, id), func(ctx context.Context) (*models.Workflow, error) {
		return s.gateway.UpdateWorkflow(ctx, id, req)
	}, func(*models.Workflow) []Key {
		return workflowKeys(id)
	})
}

// SetEnabled toggles a workflow.
func (s *Store) SetEnabled(ctx context.Context, id string, enabled bool) (*models.EnabledResponse, error) {
	return mutate(ctx, s, ActionFor(ActionSetEnabled, id), func(ctx context.Context) (*models.EnabledResponse, error) {
		return s.gateway.SetEnabled(ctx, id, enabled)
	}, func(*models.EnabledResponse) []Key {
		return workflowKeys(id)
	})
}

// DeleteWorkflow removes a workflow and forgets its executions.
func (s *Store) DeleteWorkflow(ctx context.Context, id string) error {
	_, err := mutate(ctx, s, ActionFor(ActionDeleteWorkflow, id), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.gateway.DeleteWorkflow(ctx, id)
	}, func(struct{}) []Key {
		return append(workflowKeys(id), ExecutionsKey(id), ExecutionKey(id, ""))
	})

	return err
}

func executeKeys(workflowID string) []Key {
	return []Key{ExecutionsKey(workflowID), WorkflowsKey(), WorkflowKey(workflowID)}
}

// Execute starts a run of a workflow.
func (s *Store) Execute(ctx context.Context, workflowID string, triggerData map[string]any) (*models.ExecuteResponse, error) {
	return mutate(ctx, s, ActionFor(ActionExecute, workflowID), func(ctx context.Context) (*models.ExecuteResponse, error) {
		return s.gateway.Execute(ctx, workflowID, triggerData)
	}, func(*models.ExecuteResponse) []Key {
		return executeKeys(workflowID)
	})
}

// Retry starts a new run with the trigger data of a failed execution.
func (s *Store) Retry(ctx context.Context, e *models.Execution) (*models.ExecuteResponse, error) {
	return mutate(ctx, s, ActionFor(ActionRetry, e.ID), func(ctx context.Context) (*models.ExecuteResponse, error) {
		return execution.Retry(ctx, s.gateway, e)
	}, func(*models.ExecuteResponse) []Key {
		return executeKeys(e.WorkflowID)
	})
}

// CreateSecret stores a secret.
func (s *Store) CreateSecret(ctx context.Context, req models.SecretRequest) (*models.Secret, error) {
	return mutate(ctx, s, ActionCreateSecret, func(ctx context.Context) (*models.Secret, error) {
		return s.gateway.CreateSecret(ctx, req)
	}, func(*models.Secret) []Key {
		return []Key{SecretsKey()}
	})
}

// DeleteSecret removes a secret.
func (s *Store) DeleteSecret(ctx context.Context, name string) error {
	_, err := mutate(ctx, s, ActionFor(ActionDeleteSecret, name), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.gateway.DeleteSecret(ctx, name)
	}, func(struct{}) []Key {
		return []Key{SecretsKey()}
	})

	return err
}
