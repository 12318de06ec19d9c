package web

import (
	"log/slog"
	"net/http"

	"github.com/dukex/flowdash/pkg/log"
	"github.com/dukex/flowdash/pkg/otelhelper"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// Register mounts every endpoint of the API on router.
func Register(router fiber.Router, h *APIHandlers) {
	router.Get("/health", h.HealthCheck)

	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Put("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Patch("/:id/enabled", h.SetWorkflowEnabled)
	w.Post("/:id/execute", h.ExecuteWorkflow)
	w.Get("/:id/executions", h.GetExecutions)
	w.Get("/:id/executions/:executionId", h.GetExecution)

	s := router.Group("/secrets")
	s.Get("/", h.GetSecrets)
	s.Post("/", h.CreateSecret)
	s.Delete("/:name", h.DeleteSecret)

	router.Post("/webhook/:id", h.ReceiveWebhook)
}

// RequestLogger puts a logger tagged with the request ID into the request context.
// It must run after the requestid middleware.
func RequestLogger(logger *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		requestLogger := logger.With("request_id", requestid.FromContext(c), "method", c.Method(), "path", c.Path())
		c.SetContext(log.WithContext(c.Context(), requestLogger))

		return c.Next()
	}
}

// Tracing runs each request in a server span that continues the caller's trace.
func Tracing() fiber.Handler {
	tracer := otelhelper.Tracer("flowdash/web")

	return func(c fiber.Ctx) error {
		carrier := propagation.HeaderCarrier(http.Header(c.GetReqHeaders()))
		ctx := otel.GetTextMapPropagator().Extract(c.Context(), carrier)

		ctx, span := otelhelper.StartSpan(ctx, tracer, c.Method()+" "+c.Path(),
			attribute.String("http.request.method", c.Method()))
		defer span.End()

		c.SetContext(ctx)

		err := c.Next()

		span.SetAttributes(attribute.Int(otelhelper.HTTPStatusKey, c.Response().StatusCode()))

		if err != nil {
			otelhelper.SetError(span, err)
		}

		return err
	}
}
