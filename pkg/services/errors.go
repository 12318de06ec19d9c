// Package services holds the business rules of the development backend between
// the HTTP handlers and persistence.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/flowdash/pkg/form"
	"github.com/dukex/flowdash/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest     = errors.New("invalid request")
	ErrWorkflowDisabled   = errors.New("workflow is disabled")
	ErrNotWebhookWorkflow = errors.New("workflow is not triggered by webhooks")
	ErrInvalidSecretName  = errors.New("invalid secret name")
	ErrInvalidSecretType  = errors.New("invalid secret type")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// InvalidWorkflowError lists the field problems of a rejected workflow.
type InvalidWorkflowError struct {
	Op       string
	Problems form.ValidationErrors
}

func (e *InvalidWorkflowError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Problems)
}

func (e *InvalidWorkflowError) Unwrap() error {
	return ErrInvalidRequest
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowDisabled) ||
		errors.Is(err, ErrNotWebhookWorkflow) ||
		errors.Is(err, ErrInvalidSecretName) ||
		errors.Is(err, ErrInvalidSecretType) ||
		errors.Is(err, persistence.ErrSecretAlreadyExists)
}

// IsNotFound checks if an error names a missing resource that should return HTTP 404.
func IsNotFound(err error) bool {
	return persistence.IsWorkflowNotFound(err) ||
		persistence.IsExecutionNotFound(err) ||
		persistence.IsSecretNotFound(err)
}

// Message returns the human-readable message carried by err, or its text.
func Message(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) && serviceErr.Message != "" {
		return serviceErr.Message
	}

	return err.Error()
}
