package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// Execute starts a run of a workflow with the given trigger data.
func (c *Client) Execute(ctx context.Context, workflowID string, triggerData map[string]any) (*models.ExecuteResponse, error) {
	if triggerData == nil {
		triggerData = map[string]any{}
	}

	var response models.ExecuteResponse

	err := c.do(ctx, request{
		op:     "Execute",
		method: http.MethodPost,
		path:   []string{"workflows", workflowID, "execute"},
		body:   models.ExecuteRequest{TriggerData: triggerData},
		attrs:  []attribute.KeyValue{workflowAttr(workflowID)},
	}, &response)
	if err != nil {
		return nil, err
	}

	return &response, nil
}

// Executions lists runs of a workflow, newest first.
func (c *Client) Executions(ctx context.Context, workflowID string, opts models.ExecutionListOptions) (*models.ExecutionList, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(opts.EffectiveLimit()))

	if opts.LastKey != "" {
		query.Set("last_key", opts.LastKey)
	}

	var list models.ExecutionList

	err := c.do(ctx, request{
		op:     "Executions",
		method: http.MethodGet,
		path:   []string{"workflows", workflowID, "executions"},
		query:  query,
		attrs:  []attribute.KeyValue{workflowAttr(workflowID)},
	}, &list)
	if err != nil {
		return nil, err
	}

	if list.Executions == nil {
		list.Executions = []*models.Execution{}
	}

	for _, execution := range list.Executions {
		execution.Normalize()
	}

	return &list, nil
}

// Execution fetches one run.
func (c *Client) Execution(ctx context.Context, workflowID, executionID string) (*models.Execution, error) {
	var execution models.Execution

	err := c.do(ctx, request{
		op:     "Execution",
		method: http.MethodGet,
		path:   []string{"workflows", workflowID, "executions", executionID},
		attrs: []attribute.KeyValue{
			workflowAttr(workflowID),
			attribute.String(otelhelper.ExecutionIDKey, executionID),
		},
	}, &execution)
	if err != nil {
		return nil, err
	}

	execution.Normalize()

	return &execution, nil
}
