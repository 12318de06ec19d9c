// Package web provides HTTP handlers and REST API endpoints for workflow management.
package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflowService  *services.Workflow
	executionService *services.Execution
	secretService    *services.Secret
	validator        *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	executionService *services.Execution,
	secretService *services.Secret,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService:  workflowService,
		executionService: executionService,
		secretService:    secretService,
		validator:        validator,
	}
}

func workflowNotFound(id string) string {
	return fmt.Sprintf("Workflow %s not found", id)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, ok := h.workflowService.HealthCheck(c.Context())
	if !ok {
		return c.Status(http.StatusServiceUnavailable).JSON(HealthResponse{Status: "unhealthy", Persistence: message})
	}

	return c.JSON(HealthResponse{Status: "ok", Persistence: message})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflowService.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(models.WorkflowList{Workflows: workflows, Count: len(workflows)})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	workflow, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err, workflowNotFound(id))
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req models.WorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err, "")
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	var req models.WorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	updated, err := h.workflowService.Update(c.Context(), id, req)
	if err != nil {
		return handleServiceError(c, err, workflowNotFound(id))
	}

	return c.JSON(updated)
}

func (h *APIHandlers) SetWorkflowEnabled(c fiber.Ctx) error {
	id := c.Params("id")

	var req EnabledRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Field 'enabled' is required")
	}

	response, err := h.workflowService.SetEnabled(c.Context(), id, *req.Enabled)
	if err != nil {
		return handleServiceError(c, err, workflowNotFound(id))
	}

	return c.JSON(response)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	if err := h.workflowService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err, workflowNotFound(id))
	}

	return c.JSON(models.DeleteResponse{
		Message:    fmt.Sprintf("Workflow %s deleted", id),
		WorkflowID: id,
	})
}

func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	var req ExecuteRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	response, err := h.executionService.Execute(c.Context(), id, req.TriggerData)
	if err != nil {
		return handleServiceError(c, err, workflowNotFound(id))
	}

	return c.JSON(response)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	id := c.Params("id")

	opts := models.ExecutionListOptions{LastKey: c.Query("last_key")}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return badRequest(c, "limit must be a positive integer")
		}

		opts.Limit = limit
	}

	list, err := h.executionService.List(c.Context(), id, opts)
	if err != nil {
		return handleServiceError(c, err, workflowNotFound(id))
	}

	return c.JSON(list)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	executionID := c.Params("executionId")

	execution, err := h.executionService.FetchByID(c.Context(), id, executionID)
	if err != nil {
		return handleServiceError(c, err, fmt.Sprintf("Execution %s not found", executionID))
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetSecrets(c fiber.Ctx) error {
	secrets, err := h.secretService.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(models.SecretList{Secrets: secrets, Count: len(secrets)})
}

func (h *APIHandlers) CreateSecret(c fiber.Ctx) error {
	var req models.SecretRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Invalid request: "+err.Error())
	}

	secret, err := h.secretService.Create(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err, "")
	}

	return c.Status(fiber.StatusCreated).JSON(CreateSecretResponse{Secret: secret, Message: "Secret created successfully"})
}

func (h *APIHandlers) DeleteSecret(c fiber.Ctx) error {
	name := c.Params("name")

	if err := h.secretService.Delete(c.Context(), name); err != nil {
		return handleServiceError(c, err, fmt.Sprintf("Secret '%s' not found", name))
	}

	return c.JSON(DeleteSecretResponse{Message: fmt.Sprintf("Secret '%s' deleted", name), Name: name})
}

func (h *APIHandlers) ReceiveWebhook(c fiber.Ctx) error {
	id := c.Params("id")

	headers := make(map[string]string)
	for name, values := range c.GetReqHeaders() {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	execution, err := h.executionService.ReceiveWebhook(c.Context(), id, services.WebhookRequest{
		ContentType: c.Get(fiber.HeaderContentType),
		Body:        c.Body(),
		Headers:     headers,
		Query:       c.Queries(),
	})
	if err != nil {
		return handleServiceError(c, err, workflowNotFound(id))
	}

	return c.Status(fiber.StatusAccepted).JSON(WebhookResponse{
		ExecutionID: execution.ID,
		Status:      models.ExecuteQueued,
		WorkflowID:  id,
	})
}
