// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/dukex/flowdash/pkg/models"

// EnabledRequest is the body of PATCH /workflows/:id/enabled. Enabled is a
// pointer so a missing field is rejected instead of read as false.
type EnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// ExecuteRequest is the body of POST /workflows/:id/execute.
type ExecuteRequest struct {
	TriggerData map[string]any `json:"trigger_data"`
}

// CreateSecretResponse is the metadata of a new secret plus a confirmation.
type CreateSecretResponse struct {
	*models.Secret

	Message string `json:"message"`
}

// DeleteSecretResponse confirms a deleted secret.
type DeleteSecretResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

// WebhookResponse acknowledges a queued webhook run.
type WebhookResponse struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
	WorkflowID  string `json:"workflow_id"`
}

// HealthResponse reports the backend state.
type HealthResponse struct {
	Status      string `json:"status"`
	Persistence string `json:"persistence"`
}
