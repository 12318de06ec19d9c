package web

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukex/flowdash/pkg/mocks"
	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/persistence"
	"github.com/dukex/flowdash/pkg/persistence/file"
	"github.com/dukex/flowdash/pkg/services"
	"github.com/dukex/flowdash/pkg/testutil"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	app   *fiber.App
	store persistence.Persistence
	bus   *mocks.MockEventBus
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	handlers := NewAPIHandlers(
		services.NewWorkflow(store),
		services.NewExecution(store, bus),
		services.NewSecret(store),
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()
	app.Use(requestid.New())
	app.Use(RequestLogger(slog.Default()))
	Register(app, handlers)

	return &testServer{app: app, store: store, bus: bus}
}

func (s *testServer) request(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()

	resp, err := s.app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, body
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return s.request(t, req)
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(body, &v))

	return v
}

type problemBody struct {
	Type   string              `json:"type"`
	Status int                 `json:"status"`
	Detail string              `json:"detail"`
	Errors []map[string]string `json:"errors"`
}

func workflowRequest() models.WorkflowRequest {
	return models.WorkflowRequest{
		Name:    "Order alerts",
		Enabled: true,
		Trigger: models.NewTrigger(models.WebhookConfig{}),
		Steps: []models.Step{
			{ID: "s1", Name: "log", Config: models.LogConfig{Message: "{{trigger.payload}}", Level: models.LevelInfo}},
		},
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", decode[HealthResponse](t, body).Status)
}

func TestWorkflowLifecycle(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/workflows", workflowRequest())
	require.Equal(t, http.StatusCreated, status, string(body))

	created := decode[models.Workflow](t, body)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.TriggerWebhook, created.Trigger.Type())

	status, body = s.do(t, http.MethodGet, "/workflows", nil)
	require.Equal(t, http.StatusOK, status)

	list := decode[models.WorkflowList](t, body)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, created.ID, list.Workflows[0].ID)

	update := workflowRequest()
	update.Name = "Renamed"

	status, body = s.do(t, http.MethodPut, "/workflows/"+created.ID, update)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "Renamed", decode[models.Workflow](t, body).Name)

	status, body = s.do(t, http.MethodPatch, "/workflows/"+created.ID+"/enabled", map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.EnabledResponse{WorkflowID: created.ID, Enabled: false, Message: "Workflow disabled"},
		decode[models.EnabledResponse](t, body))

	status, body = s.do(t, http.MethodGet, "/workflows/"+created.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, decode[models.Workflow](t, body).Enabled)

	status, body = s.do(t, http.MethodDelete, "/workflows/"+created.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.DeleteResponse{Message: "Workflow " + created.ID + " deleted", WorkflowID: created.ID},
		decode[models.DeleteResponse](t, body))

	status, body = s.do(t, http.MethodGet, "/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Workflow "+created.ID+" not found", decode[problemBody](t, body).Detail)
}

func TestCreateWorkflow_Rejects(t *testing.T) {
	s := newTestServer(t)

	invalid := workflowRequest()
	invalid.Name = ""
	invalid.Trigger = models.NewTrigger(models.CronConfig{})

	status, body := s.do(t, http.MethodPost, "/workflows", invalid)
	require.Equal(t, http.StatusBadRequest, status)

	problem := decode[problemBody](t, body)
	assert.Equal(t, "validation_error", problem.Type)
	assert.Equal(t, "Invalid workflow", problem.Detail)
	assert.Equal(t, []map[string]string{
		{"field": "name", "message": "is required"},
		{"field": "trigger.config.schedule", "message": "is required"},
	}, problem.Errors)

	status, _ = s.do(t, http.MethodPost, "/workflows", "{not json")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/workflows", `{"name":"x","trigger":{"type":"email","config":{}},"steps":[]}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUpdateWorkflow_Missing(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPut, "/workflows/wf_missing", workflowRequest())

	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Workflow wf_missing not found", decode[problemBody](t, body).Detail)
}

func TestSetWorkflowEnabled_RequiresField(t *testing.T) {
	s := newTestServer(t)
	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, s.store.SaveWorkflow(t.Context(), workflow))

	status, body := s.do(t, http.MethodPatch, "/workflows/"+workflow.ID+"/enabled", map[string]any{})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Field 'enabled' is required", decode[problemBody](t, body).Detail)
}

func TestExecuteAndListExecutions(t *testing.T) {
	s := newTestServer(t)
	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, s.store.SaveWorkflow(t.Context(), workflow))

	status, body := s.do(t, http.MethodPost, "/workflows/"+workflow.ID+"/execute", models.ExecuteRequest{
		TriggerData: map[string]any{"id": "7"},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	response := decode[models.ExecuteResponse](t, body)
	assert.Equal(t, "queued", response.Status)
	assert.Equal(t, workflow.ID, response.WorkflowID)
	assert.Equal(t, "Execution queued successfully", response.Message)

	s.bus.AssertCalled(t, "Publish", mock.Anything, workflow.ID, mock.AnythingOfType("events.ExecutionQueued"))

	status, body = s.do(t, http.MethodGet, "/workflows/"+workflow.ID+"/executions?limit=5", nil)
	require.Equal(t, http.StatusOK, status)

	list := decode[models.ExecutionList](t, body)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, response.ExecutionID, list.Executions[0].ID)
	assert.Equal(t, map[string]any{"id": "7"}, list.Executions[0].TriggerData)

	status, body = s.do(t, http.MethodGet, "/workflows/"+workflow.ID+"/executions/"+response.ExecutionID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.ExecutionPending, decode[models.Execution](t, body).Status)

	status, _ = s.do(t, http.MethodGet, "/workflows/"+workflow.ID+"/executions?limit=lots", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodGet, "/workflows/"+workflow.ID+"/executions/ex_missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Execution ex_missing not found", decode[problemBody](t, body).Detail)

	status, _ = s.do(t, http.MethodGet, "/workflows/wf_missing/executions", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestExecuteWorkflow_Disabled(t *testing.T) {
	s := newTestServer(t)
	workflow := testutil.CreateTestWorkflow(testutil.Disabled())
	require.NoError(t, s.store.SaveWorkflow(t.Context(), workflow))

	status, body := s.do(t, http.MethodPost, "/workflows/"+workflow.ID+"/execute", nil)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Workflow "+workflow.ID+" is disabled", decode[problemBody](t, body).Detail)
}

func TestSecrets(t *testing.T) {
	s := newTestServer(t)

	req := models.SecretRequest{Name: "discord_main", Value: "https://discord.test/hook/9876", SecretType: models.SecretDiscordWebhook}

	status, body := s.do(t, http.MethodPost, "/secrets", req)
	require.Equal(t, http.StatusCreated, status, string(body))

	created := decode[map[string]any](t, body)
	assert.Equal(t, "discord_main", created["name"])
	assert.Equal(t, "****9876", created["masked_value"])
	assert.Equal(t, "Secret created successfully", created["message"])
	assert.NotContains(t, string(body), req.Value)

	status, body = s.do(t, http.MethodPost, "/secrets", req)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Secret 'discord_main' already exists", decode[problemBody](t, body).Detail)

	status, _ = s.do(t, http.MethodPost, "/secrets", models.SecretRequest{Name: "x", Value: "v", SecretType: "vault"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/secrets", models.SecretRequest{Name: "Bad", Value: "v", SecretType: models.SecretCustom})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodGet, "/secrets", nil)
	require.Equal(t, http.StatusOK, status)

	list := decode[models.SecretList](t, body)
	assert.Equal(t, 1, list.Count)
	assert.NotContains(t, string(body), req.Value)

	status, body = s.do(t, http.MethodDelete, "/secrets/discord_main", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, DeleteSecretResponse{Message: "Secret 'discord_main' deleted", Name: "discord_main"},
		decode[DeleteSecretResponse](t, body))

	status, _ = s.do(t, http.MethodDelete, "/secrets/discord_main", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestReceiveWebhook(t *testing.T) {
	s := newTestServer(t)
	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, s.store.SaveWorkflow(t.Context(), workflow))

	req := httptest.NewRequest(http.MethodPost, "/webhook/"+workflow.ID+"?source=shop", strings.NewReader("order=42&tag=a&tag=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Signature", "sig")

	status, body := s.request(t, req)
	require.Equal(t, http.StatusAccepted, status, string(body))

	response := decode[WebhookResponse](t, body)
	assert.Equal(t, "queued", response.Status)
	assert.Equal(t, workflow.ID, response.WorkflowID)

	execution, err := s.store.ExecutionByID(t.Context(), workflow.ID, response.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.TriggerWebhook, execution.TriggerType)
	assert.Equal(t, map[string]any{"order": "42", "tag": []any{"a", "b"}}, execution.TriggerData["payload"])
	assert.Equal(t, map[string]any{"source": "shop"}, execution.TriggerData["query"])
	assert.Equal(t, "sig", execution.TriggerData["headers"].(map[string]any)["X-Signature"])

	status, _ = s.do(t, http.MethodPost, "/webhook/wf_missing", "{}")
	assert.Equal(t, http.StatusNotFound, status)
}
