// Package redis provides Redis persistence for the development backend.
//
// Records are JSON values in three kinds of hashes:
//
//	<prefix>:workflows              workflow id -> workflow
//	<prefix>:executions:<workflow>  execution id -> execution
//	<prefix>:secrets                name -> secret
package redis

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/persistence"
	redis "github.com/redis/go-redis/v9"
)

const defaultPrefix = "flowdash"

// Persistence implements the persistence layer on a Redis server.
type Persistence struct {
	client redis.UniversalClient
	logger *slog.Logger
	prefix string
}

var _ persistence.Persistence = (*Persistence)(nil)

// NewPersistence connects to a redis:// URL.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	options, err := redis.ParseURL(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewPersistenceWithClient(client, logger, defaultPrefix), nil
}

// NewPersistenceWithClient wraps an existing client. Keys are namespaced under prefix.
func NewPersistenceWithClient(client redis.UniversalClient, logger *slog.Logger, prefix string) *Persistence {
	return &Persistence{client: client, logger: logger, prefix: prefix}
}

func (p *Persistence) key(parts ...string) string {
	return p.prefix + ":" + strings.Join(parts, ":")
}

// Close closes the client.
func (p *Persistence) Close(_ context.Context) error {
	err := p.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

// HealthCheck pings the server.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func decodeAll[T any](values map[string]string) ([]*T, error) {
	result := make([]*T, 0, len(values))

	for field, value := range values {
		var record T
		if err := json.Unmarshal([]byte(value), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", field, err)
		}

		result = append(result, &record)
	}

	return result, nil
}

// Workflows returns all workflows, newest first.
func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	values, err := p.client.HGetAll(ctx, p.key("workflows")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load workflows: %w", err)
	}

	workflows, err := decodeAll[models.Workflow](values)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(workflows, func(a, b *models.Workflow) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})

	return workflows, nil
}

// WorkflowByID returns a workflow by its ID.
func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	value, err := p.client.HGet(ctx, p.key("workflows"), id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	var workflow models.Workflow
	if err := json.Unmarshal([]byte(value), &workflow); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err)
	}

	return &workflow, nil
}

// SaveWorkflow inserts or replaces a workflow.
func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	stored := *workflow
	stored.LatestExecutionStatus = nil

	data, err := json.Marshal(&stored)
	if err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, err)
	}

	err = p.client.HSet(ctx, p.key("workflows"), workflow.ID, data).Err()
	if err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, err)
	}

	return nil
}

// DeleteWorkflow removes a workflow and its executions in one transaction.
func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	var removed *redis.IntCmd

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, p.key("workflows"), id)
		pipe.Del(ctx, p.key("executions", id))

		return nil
	})
	if err != nil {
		return persistence.NewWorkflowError("DeleteWorkflow", id, err)
	}

	if removed.Val() == 0 {
		return persistence.NewWorkflowError("DeleteWorkflow", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// SaveExecution inserts or replaces an execution. The workflow must exist.
func (p *Persistence) SaveExecution(ctx context.Context, execution *models.Execution) error {
	exists, err := p.client.HExists(ctx, p.key("workflows"), execution.WorkflowID).Result()
	if err != nil {
		return persistence.NewExecutionError("SaveExecution", execution.WorkflowID, execution.ID, err)
	}

	if !exists {
		return persistence.NewExecutionError("SaveExecution", execution.WorkflowID, execution.ID, persistence.ErrWorkflowNotFound)
	}

	data, err := json.Marshal(execution)
	if err != nil {
		return persistence.NewExecutionError("SaveExecution", execution.WorkflowID, execution.ID, err)
	}

	err = p.client.HSet(ctx, p.key("executions", execution.WorkflowID), execution.ID, data).Err()
	if err != nil {
		return persistence.NewExecutionError("SaveExecution", execution.WorkflowID, execution.ID, err)
	}

	return nil
}

// ExecutionByID returns one execution of a workflow.
func (p *Persistence) ExecutionByID(ctx context.Context, workflowID, executionID string) (*models.Execution, error) {
	value, err := p.client.HGet(ctx, p.key("executions", workflowID), executionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.NewExecutionError("ExecutionByID", workflowID, executionID, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, persistence.NewExecutionError("ExecutionByID", workflowID, executionID, err)
	}

	var execution models.Execution
	if err := json.Unmarshal([]byte(value), &execution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", executionID, err)
	}

	return &execution, nil
}

// Executions returns a page of executions of a workflow, newest first.
func (p *Persistence) Executions(ctx context.Context, workflowID string, opts models.ExecutionListOptions) (*models.ExecutionList, error) {
	values, err := p.client.HGetAll(ctx, p.key("executions", workflowID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load executions of workflow %s: %w", workflowID, err)
	}

	executions, err := decodeAll[models.Execution](values)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(executions, func(a, b *models.Execution) int {
		return strings.Compare(b.ID, a.ID)
	})

	return persistence.Page(executions, opts), nil
}

// Secrets returns every secret ordered by name.
func (p *Persistence) Secrets(ctx context.Context) ([]*models.SecretRecord, error) {
	values, err := p.client.HGetAll(ctx, p.key("secrets")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	secrets, err := decodeAll[models.SecretRecord](values)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(secrets, func(a, b *models.SecretRecord) int {
		return cmp.Compare(a.Name, b.Name)
	})

	return secrets, nil
}

// SecretByName returns one secret.
func (p *Persistence) SecretByName(ctx context.Context, name string) (*models.SecretRecord, error) {
	value, err := p.client.HGet(ctx, p.key("secrets"), name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.NewSecretError("SecretByName", name, persistence.ErrSecretNotFound)
	}

	if err != nil {
		return nil, persistence.NewSecretError("SecretByName", name, err)
	}

	var secret models.SecretRecord
	if err := json.Unmarshal([]byte(value), &secret); err != nil {
		return nil, persistence.NewSecretError("SecretByName", name, err)
	}

	return &secret, nil
}

// CreateSecret stores a secret unless the name is taken.
func (p *Persistence) CreateSecret(ctx context.Context, secret *models.SecretRecord) error {
	data, err := json.Marshal(secret)
	if err != nil {
		return persistence.NewSecretError("CreateSecret", secret.Name, err)
	}

	created, err := p.client.HSetNX(ctx, p.key("secrets"), secret.Name, data).Result()
	if err != nil {
		return persistence.NewSecretError("CreateSecret", secret.Name, err)
	}

	if !created {
		return persistence.NewSecretError("CreateSecret", secret.Name, persistence.ErrSecretAlreadyExists)
	}

	return nil
}

// DeleteSecret removes a secret.
func (p *Persistence) DeleteSecret(ctx context.Context, name string) error {
	removed, err := p.client.HDel(ctx, p.key("secrets"), name).Result()
	if err != nil {
		return persistence.NewSecretError("DeleteSecret", name, err)
	}

	if removed == 0 {
		return persistence.NewSecretError("DeleteSecret", name, persistence.ErrSecretNotFound)
	}

	return nil
}
