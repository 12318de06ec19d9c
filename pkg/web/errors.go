package web

import (
	"errors"

	"github.com/dukex/flowdash/pkg/form"
	"github.com/dukex/flowdash/pkg/log"
	"github.com/dukex/flowdash/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// validationProblem is a 400 problem that lists the rejected fields.
type validationProblem struct {
	*problems.DefaultProblem

	Errors form.ValidationErrors `json:"errors"`
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func invalidFields(c fiber.Ctx, detail string, fields form.ValidationErrors) error {
	problem := validationProblem{
		DefaultProblem: problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("validation_error").
			WithDetail(detail),
		Errors: fields,
	}

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	log.FromContext(c.Context()).ErrorContext(c.Context(), "request failed", "path", c.Path(), "error", err)

	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithDetail("internal server error")

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
// notFoundDetail is the detail of a 404 for the resource the route names.
func handleServiceError(c fiber.Ctx, err error, notFoundDetail string) error {
	var invalid *services.InvalidWorkflowError

	switch {
	case errors.As(err, &invalid):
		return invalidFields(c, "Invalid workflow", invalid.Problems)
	case services.IsValidationError(err):
		return badRequest(c, services.Message(err))
	case services.IsNotFound(err):
		return notFound(c, notFoundDetail)
	default:
		return internalError(c, err)
	}
}
