// Package main provides the development backend: the workflow API, webhook
// intake and a dry-run executor in one process.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/flowdash/pkg/eventbus"
	"github.com/dukex/flowdash/pkg/persistence"
	"github.com/dukex/flowdash/pkg/services"
	"github.com/dukex/flowdash/pkg/web"
	"github.com/dukex/flowdash/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		services.NewWorkflow(a.persistence),
		services.NewExecution(a.persistence, a.eventBus),
		services.NewSecret(a.persistence),
		a.validate,
	)

	app := fiber.New()
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))
	app.Use(web.Tracing())
	app.Use(web.RequestLogger(a.logger))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("flowdash development API")
	})

	web.Register(app, handlers)

	return app
}

// StartExecutor runs queued executions until ctx ends.
func (a *API) StartExecutor(ctx context.Context) error {
	executor := workflow.NewExecutor(a.persistence, a.eventBus)
	if err := executor.Register(a.eventBus); err != nil {
		return err
	}

	return a.eventBus.Subscribe(ctx)
}

// Start serves the API until ctx ends, then shuts the server down.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	go func() {
		<-ctx.Done()

		if err := app.ShutdownWithContext(context.WithoutCancel(ctx)); err != nil {
			a.logger.Error("Failed to shut down API server", "error", err)
		}
	}()

	return app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}
