package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution was not found for the given workflow.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrSecretNotFound indicates a secret was not found by the given name.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrSecretAlreadyExists indicates a secret with the same name already exists.
	ErrSecretAlreadyExists = errors.New("secret already exists")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "WorkflowByID", "SaveWorkflow")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// ExecutionError wraps execution-related errors with additional context.
type ExecutionError struct {
	Op          string
	WorkflowID  string
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s in workflow %s: %v", e.Op, e.ExecutionID, e.WorkflowID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates a new execution error with context.
func NewExecutionError(op, workflowID, executionID string, err error) *ExecutionError {
	return &ExecutionError{
		Op:          op,
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		Err:         err,
	}
}

// SecretError wraps secret-related errors. It never carries the secret value.
type SecretError struct {
	Op   string
	Name string
	Err  error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("%s operation failed for secret %s: %v", e.Op, e.Name, e.Err)
}

func (e *SecretError) Unwrap() error {
	return e.Err
}

func (e *SecretError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewSecretError creates a new secret error with context.
func NewSecretError(op, name string, err error) *SecretError {
	return &SecretError{Op: op, Name: name, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsSecretNotFound checks if an error indicates a secret was not found.
func IsSecretNotFound(err error) bool {
	return errors.Is(err, ErrSecretNotFound)
}
