package client

import (
	"context"
	"net/http"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

func workflowAttr(id string) attribute.KeyValue {
	return attribute.String(otelhelper.WorkflowIDKey, id)
}

// Workflows lists every workflow.
func (c *Client) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	var list models.WorkflowList

	err := c.do(ctx, request{op: "Workflows", method: http.MethodGet, path: []string{"workflows"}}, &list)
	if err != nil {
		return nil, err
	}

	if list.Workflows == nil {
		list.Workflows = []*models.Workflow{}
	}

	return list.Workflows, nil
}

// Workflow fetches one workflow.
func (c *Client) Workflow(ctx context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow

	err := c.do(ctx, request{
		op:     "Workflow",
		method: http.MethodGet,
		path:   []string{"workflows", id},
		attrs:  []attribute.KeyValue{workflowAttr(id)},
	}, &workflow)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}

// CreateWorkflow stores a new workflow and returns it with its assigned ID.
func (c *Client) CreateWorkflow(ctx context.Context, req models.WorkflowRequest) (*models.Workflow, error) {
	var workflow models.Workflow

	err := c.do(ctx, request{
		op:     "CreateWorkflow",
		method: http.MethodPost,
		path:   []string{"workflows"},
		body:   req,
	}, &workflow)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}

// UpdateWorkflow replaces a workflow.
func (c *Client) UpdateWorkflow(ctx context.Context, id string, req models.WorkflowRequest) (*models.Workflow, error) {
	var workflow models.Workflow

	err := c.do(ctx, request{
		op:     "UpdateWorkflow",
		method: http.MethodPut,
		path:   []string{"workflows", id},
		body:   req,
		attrs:  []attribute.KeyValue{workflowAttr(id)},
	}, &workflow)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}

// SetEnabled turns a workflow on or off.
func (c *Client) SetEnabled(ctx context.Context, id string, enabled bool) (*models.EnabledResponse, error) {
	var response models.EnabledResponse

	err := c.do(ctx, request{
		op:     "SetEnabled",
		method: http.MethodPatch,
		path:   []string{"workflows", id, "enabled"},
		body:   models.EnabledRequest{Enabled: enabled},
		attrs:  []attribute.KeyValue{workflowAttr(id), attribute.Bool("flowdash.workflow.enabled", enabled)},
	}, &response)
	if err != nil {
		return nil, err
	}

	return &response, nil
}

// DeleteWorkflow removes a workflow.
func (c *Client) DeleteWorkflow(ctx context.Context, id string) error {
	return c.do(ctx, request{
		op:     "DeleteWorkflow",
		method: http.MethodDelete,
		path:   []string{"workflows", id},
		attrs:  []attribute.KeyValue{workflowAttr(id)},
	}, nil)
}
