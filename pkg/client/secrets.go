package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// Secrets lists secret metadata. Values are never returned.
func (c *Client) Secrets(ctx context.Context) ([]*models.Secret, error) {
	var list models.SecretList

	err := c.do(ctx, request{op: "Secrets", method: http.MethodGet, path: []string{"secrets"}}, &list)
	if err != nil {
		return nil, err
	}

	if list.Secrets == nil {
		list.Secrets = []*models.Secret{}
	}

	return list.Secrets, nil
}

// CreateSecret stores a secret. The name is checked locally first.
func (c *Client) CreateSecret(ctx context.Context, req models.SecretRequest) (*models.Secret, error) {
	if !models.ValidSecretName(req.Name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSecretName, req.Name)
	}

	var secret models.Secret

	err := c.do(ctx, request{
		op:     "CreateSecret",
		method: http.MethodPost,
		path:   []string{"secrets"},
		body:   req,
		attrs:  []attribute.KeyValue{attribute.String(otelhelper.SecretNameKey, req.Name)},
	}, &secret)
	if err != nil {
		return nil, err
	}

	return &secret, nil
}

// DeleteSecret removes a secret.
func (c *Client) DeleteSecret(ctx context.Context, name string) error {
	return c.do(ctx, request{
		op:     "DeleteSecret",
		method: http.MethodDelete,
		path:   []string{"secrets", name},
		attrs:  []attribute.KeyValue{attribute.String(otelhelper.SecretNameKey, name)},
	}, nil)
}
