package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	body   string
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recorded
	status   int
	response string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, recorded{
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.RawQuery,
		auth:   r.Header.Get("Authorization"),
		body:   string(body),
	})
	status, response := f.status, f.response
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(response))
}

func (f *fakeAPI) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.requests[len(f.requests)-1]
}

func setup(t *testing.T, status int, response string) (*Client, *fakeAPI) {
	t.Helper()

	api := &fakeAPI{status: status, response: response}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	c, err := New(server.URL+"/", WithHTTPClient(server.Client()), WithTokenSource(StaticToken("secret-token")))
	require.NoError(t, err)

	return c, api
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)

	_, err = New("://bad")
	assert.Error(t, err)
}

func TestClient_Endpoints(t *testing.T) {
	tests := []struct {
		name   string
		call   func(context.Context, *Client) error
		method string
		path   string
		query  string
		body   string
	}{
		{
			name:   "list workflows",
			call:   func(ctx context.Context, c *Client) error { _, err := c.Workflows(ctx); return err },
			method: http.MethodGet,
			path:   "/workflows",
		},
		{
			name:   "get workflow",
			call:   func(ctx context.Context, c *Client) error { _, err := c.Workflow(ctx, "wf_1"); return err },
			method: http.MethodGet,
			path:   "/workflows/wf_1",
		},
		{
			name: "create workflow",
			call: func(ctx context.Context, c *Client) error {
				_, err := c.CreateWorkflow(ctx, models.WorkflowRequest{Name: "n", Trigger: models.NewTrigger(models.ManualConfig{}), Steps: []models.Step{}})
				return err
			},
			method: http.MethodPost,
			path:   "/workflows",
			body:   `{"name":"n","description":"","enabled":false,"trigger":{"type":"manual","config":{}},"steps":[]}`,
		},
		{
			name: "update workflow",
			call: func(ctx context.Context, c *Client) error {
				_, err := c.UpdateWorkflow(ctx, "wf_1", models.WorkflowRequest{Name: "n", Trigger: models.NewTrigger(models.WebhookConfig{}), Steps: []models.Step{}})
				return err
			},
			method: http.MethodPut,
			path:   "/workflows/wf_1",
			body:   `{"name":"n","description":"","enabled":false,"trigger":{"type":"webhook","config":{}},"steps":[]}`,
		},
		{
			name:   "toggle",
			call:   func(ctx context.Context, c *Client) error { _, err := c.SetEnabled(ctx, "wf_1", true); return err },
			method: http.MethodPatch,
			path:   "/workflows/wf_1/enabled",
			body:   `{"enabled":true}`,
		},
		{
			name:   "delete workflow",
			call:   func(ctx context.Context, c *Client) error { return c.DeleteWorkflow(ctx, "wf_1") },
			method: http.MethodDelete,
			path:   "/workflows/wf_1",
		},
		{
			name:   "execute",
			call:   func(ctx context.Context, c *Client) error { _, err := c.Execute(ctx, "wf_1", nil); return err },
			method: http.MethodPost,
			path:   "/workflows/wf_1/execute",
			body:   `{"trigger_data":{}}`,
		},
		{
			name: "list executions",
			call: func(ctx context.Context, c *Client) error {
				_, err := c.Executions(ctx, "wf_1", models.ExecutionListOptions{Limit: 5, LastKey: "k"})
				return err
			},
			method: http.MethodGet,
			path:   "/workflows/wf_1/executions",
			query:  "last_key=k&limit=5",
		},
		{
			name:   "get execution",
			call:   func(ctx context.Context, c *Client) error { _, err := c.Execution(ctx, "wf_1", "ex_1"); return err },
			method: http.MethodGet,
			path:   "/workflows/wf_1/executions/ex_1",
		},
		{
			name:   "list secrets",
			call:   func(ctx context.Context, c *Client) error { _, err := c.Secrets(ctx); return err },
			method: http.MethodGet,
			path:   "/secrets",
		},
		{
			name: "create secret",
			call: func(ctx context.Context, c *Client) error {
				_, err := c.CreateSecret(ctx, models.SecretRequest{Name: "hook", Value: "v", SecretType: models.SecretDiscordWebhook})
				return err
			},
			method: http.MethodPost,
			path:   "/secrets",
			body:   `{"name":"hook","value":"v","secret_type":"discord_webhook"}`,
		},
		{
			name:   "delete secret",
			call:   func(ctx context.Context, c *Client) error { return c.DeleteSecret(ctx, "hook") },
			method: http.MethodDelete,
			path:   "/secrets/hook",
		},
		{
			name:   "health",
			call:   func(ctx context.Context, c *Client) error { return c.Health(ctx) },
			method: http.MethodGet,
			path:   "/health",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, api := setup(t, http.StatusOK, `{}`)

			require.NoError(t, tt.call(context.Background(), c))

			got := api.last()
			assert.Equal(t, tt.method, got.method)
			assert.Equal(t, tt.path, got.path)
			assert.Equal(t, tt.query, got.query)
			assert.Equal(t, "Bearer secret-token", got.auth)

			if tt.body != "" {
				assert.JSONEq(t, tt.body, got.body)
			}
		})
	}
}

func TestClient_ExecutionsDefaultLimit(t *testing.T) {
	c, api := setup(t, http.StatusOK, `{"executions":null,"count":0}`)

	list, err := c.Executions(context.Background(), "wf_1", models.ExecutionListOptions{})
	require.NoError(t, err)

	assert.Equal(t, "limit=20", api.last().query)
	assert.NotNil(t, list.Executions)
}

func TestClient_ExecutionNormalizesOutput(t *testing.T) {
	c, _ := setup(t, http.StatusOK, `{
		"workflow_id": "wf_1",
		"execution_id": "ex_1",
		"status": "failed",
		"trigger_type": "manual",
		"trigger_data": {},
		"started_at": "2024-01-01T00:00:00Z",
		"steps": [
			{"step_id": "a", "status": "success", "output": {"result": 1}},
			{"step_id": "b", "status": "failed", "output": {"oops": true}, "error": "boom"}
		]
	}`)

	execution, err := c.Execution(context.Background(), "wf_1", "ex_1")
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionFailed, execution.Status)
	assert.NotNil(t, execution.Steps[0].Output)
	assert.Nil(t, execution.Steps[1].Output)
	assert.Nil(t, execution.FinishedAt)
}

func TestClient_DecodesWorkflows(t *testing.T) {
	c, _ := setup(t, http.StatusOK, `{"workflows":[{"workflow_id":"wf_1","name":"A","description":"","enabled":true,
		"trigger":{"type":"cron","config":{"schedule":"@daily"}},
		"steps":[{"step_id":"s","name":"L","type":"log","config":{"message":"m","level":"info"}}],
		"created_at":"2024-01-01T00:00:00Z","updated_at":"2024-01-01T00:00:00Z"}],"count":1}`)

	workflows, err := c.Workflows(context.Background())
	require.NoError(t, err)
	require.Len(t, workflows, 1)
	assert.Equal(t, models.CronConfig{Schedule: "@daily"}, workflows[0].Trigger.Config)
	assert.Equal(t, models.LogConfig{Message: "m", Level: models.LevelInfo}, workflows[0].Steps[0].Config)
}

func TestClient_APIErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{"body message", http.StatusBadRequest, `{"message":"Workflow name is required"}`, "Workflow name is required"},
		{"problem detail", http.StatusNotFound, `{"title":"Not Found","detail":"workflow not found"}`, "workflow not found"},
		{"nested error", http.StatusConflict, `{"error":{"message":"version mismatch"}}`, "version mismatch"},
		{"error string", http.StatusForbidden, `{"error":"nope"}`, "nope"},
		{"bad request", http.StatusBadRequest, `{}`, MessageBadRequest},
		{"unauthorized", http.StatusUnauthorized, ``, MessageUnauthorized},
		{"forbidden", http.StatusForbidden, `not json`, MessageForbidden},
		{"not found", http.StatusNotFound, `{}`, MessageNotFound},
		{"conflict", http.StatusConflict, `{}`, MessageConflict},
		{"server", http.StatusBadGateway, `<html>`, MessageServer},
		{"other", http.StatusTeapot, `{}`, MessageUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := setup(t, tt.status, tt.body)

			_, err := c.Workflow(context.Background(), "wf_1")

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.expected, UserMessage(err))
		})
	}
}

func TestClient_IsNotFound(t *testing.T) {
	c, _ := setup(t, http.StatusNotFound, `{}`)

	_, err := c.Workflow(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(errors.New("x")))
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c, err := New(url)
	require.NoError(t, err)

	_, err = c.Workflows(context.Background())

	var networkErr *NetworkError
	require.ErrorAs(t, err, &networkErr)
	assert.Equal(t, MessageNetwork, UserMessage(err))
}

func TestClient_Canceled(t *testing.T) {
	c, _ := setup(t, http.StatusOK, `{}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Workflows(ctx)
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
	assert.Empty(t, UserMessage(err))
}

func TestClient_DecodeFailureIsUnknown(t *testing.T) {
	c, _ := setup(t, http.StatusOK, `{"workflows": "nope"}`)

	_, err := c.Workflows(context.Background())

	var unknown *UnknownError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, MessageUnknown, UserMessage(err))
}

func TestClient_CreateSecretValidatesName(t *testing.T) {
	c, api := setup(t, http.StatusOK, `{}`)

	_, err := c.CreateSecret(context.Background(), models.SecretRequest{Name: "Bad-Name", Value: "v", SecretType: models.SecretCustom})

	assert.ErrorIs(t, err, ErrInvalidSecretName)
	assert.Equal(t, MessageSecretName, UserMessage(err))
	assert.Empty(t, api.requests)
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	api := &fakeAPI{response: `{"status":"ok"}`}
	server := httptest.NewServer(api)
	defer server.Close()

	c, err := New(server.URL, WithHTTPClient(server.Client()))
	require.NoError(t, err)

	require.NoError(t, c.Health(context.Background()))
	assert.Empty(t, api.last().auth)
}

func TestUserMessage_Truncates(t *testing.T) {
	long := strings.Repeat("x", 500)
	body, err := json.Marshal(map[string]string{"message": long})
	require.NoError(t, err)

	msg := UserMessage(&APIError{StatusCode: 400, Message: bodyMessage(body)})

	assert.Equal(t, MaxMessageLength, len([]rune(msg)))
	assert.True(t, strings.HasSuffix(msg, "…"))
}

func TestUserMessage_Unknown(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, MessageUnknown, UserMessage(errors.New("weird")))
	assert.Equal(t, MessageNetwork, UserMessage(context.DeadlineExceeded))
}

func TestWebhookURL(t *testing.T) {
	assert.Equal(t, "https://api.example.com/webhook/wf_0123456789ab", WebhookURL("https://api.example.com/", "wf_0123456789ab"))
}
