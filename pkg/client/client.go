// Package client is the gateway to the automation API. It is the only package that
// performs network I/O; everything it returns is plain data from pkg/models.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukex/flowdash/pkg/log"
	"github.com/dukex/flowdash/pkg/otelhelper"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

// TokenSource supplies the bearer token for each request. An empty token sends
// the request unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// Client calls the automation API. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New returns a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API URL %q: %w", baseURL, err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid API URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: parsed,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens: StaticToken(""),
		logger: log.WithModule("client"),
		tracer: otelhelper.Tracer("github.com/dukex/flowdash/pkg/client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

type request struct {
	op     string
	method string
	path   []string
	query  url.Values
	body   any
	attrs  []attribute.KeyValue
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "client."+req.op, req.attrs...)
	defer span.End()

	err := c.roundTrip(ctx, req, out)
	if err != nil {
		otelhelper.SetError(span, err)

		if !IsCanceled(err) {
			c.logger.DebugContext(ctx, "API call failed", "op", req.op, "error", err)
		}
	}

	return err
}

func (c *Client) roundTrip(ctx context.Context, req request, out any) error {
	endpoint := c.baseURL.JoinPath(req.path...)
	if len(req.query) > 0 {
		endpoint.RawQuery = req.query.Encode()
	}

	var body io.Reader

	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return &UnknownError{Op: req.op, Err: fmt.Errorf("failed to encode request: %w", err)}
		}

		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint.String(), body)
	if err != nil {
		return &UnknownError{Op: req.op, Err: err}
	}

	httpReq.Header.Set("Accept", "application/json")

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return &UnknownError{Op: req.op, Err: fmt.Errorf("failed to get token: %w", err)}
	}

	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", req.op, ctxErr)
		}

		return &NetworkError{Op: req.op, Err: err}
	}
	defer resp.Body.Close()

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int(otelhelper.HTTPStatusKey, resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return &APIError{
			Op:         req.op,
			StatusCode: resp.StatusCode,
			Body:       data,
			Message:    bodyMessage(data),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", req.op, ctxErr)
		}

		if errors.Is(err, io.EOF) {
			return &UnknownError{Op: req.op, Err: errors.New("empty response body")}
		}

		return &UnknownError{Op: req.op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return nil
}

// Health checks that the API is reachable.
func (c *Client) Health(ctx context.Context) error {
	var status struct {
		Status string `json:"status"`
	}

	return c.do(ctx, request{op: "Health", method: http.MethodGet, path: []string{"health"}}, &status)
}

// WebhookURL returns the intake URL of a webhook-triggered workflow.
func WebhookURL(baseURL, workflowID string) string {
	return strings.TrimRight(baseURL, "/") + "/webhook/" + url.PathEscape(workflowID)
}
