// Package form holds the editable workflow draft, its validation and the
// controller that mutates the ordered step list.
package form

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/go-playground/validator/v10"
)

// Data is the editable form of a workflow.
type Data struct {
	Name        string         `json:"name"        validate:"notblank,max=100"`
	Description string         `json:"description" validate:"max=500"`
	Enabled     bool           `json:"enabled"`
	Trigger     models.Trigger `json:"trigger"     validate:"-"`
	Steps       []models.Step  `json:"steps"       validate:"-"`
}

// FromWorkflow copies the fields the form edits out of a workflow.
func FromWorkflow(w *models.Workflow) Data {
	request := w.Request()

	return Data{
		Name:        request.Name,
		Description: request.Description,
		Enabled:     request.Enabled,
		Trigger:     request.Trigger,
		Steps:       request.Steps,
	}
}

// Clone returns a copy that shares no step configuration maps with d.
func (d Data) Clone() Data {
	steps := make([]models.Step, len(d.Steps))
	for i, step := range d.Steps {
		steps[i] = step.Clone()
	}

	d.Steps = steps
	d.Trigger = d.Trigger.Clone()

	return d
}

// Request builds the create/update payload.
func (d Data) Request() models.WorkflowRequest {
	c := d.Clone()

	return models.WorkflowRequest{
		Name:        c.Name,
		Description: c.Description,
		Enabled:     c.Enabled,
		Trigger:     c.Trigger,
		Steps:       c.Steps,
	}
}

// ValidationError is a user-facing problem with one form field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + " " + e.Message
}

// ValidationErrors collects every problem found in a draft.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, v := range e {
		parts[i] = v.Error()
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the invalid field paths in report order.
func (e ValidationErrors) Fields() []string {
	fields := make([]string, len(e))
	for i, v := range e {
		fields[i] = v.Field
	}

	return fields
}

// ErrStepID is wrapped by step identity errors.
var ErrStepID = errors.New("invalid step id")

// DuplicateStepIDError reports a draft whose step identities are not unique.
// It signals a bug in ID generation rather than bad user input.
type DuplicateStepIDError struct {
	ID      string
	Indexes []int
}

func (e *DuplicateStepIDError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("steps at %v have no id", e.Indexes)
	}

	return fmt.Sprintf("step id %q is used by steps %v", e.ID, e.Indexes)
}

func (e *DuplicateStepIDError) Unwrap() error {
	return ErrStepID
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	// Names made only of whitespace count as missing.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return v
}

type stepFields struct {
	Name string `json:"name" validate:"notblank"`
}

// Validate checks a draft and returns the workflow it describes. All user-facing
// problems are collected into ValidationErrors. Missing or repeated step IDs are
// reported first as a *DuplicateStepIDError.
func Validate(d Data) (*models.Workflow, error) {
	if err := checkStepIDs(d.Steps); err != nil {
		return nil, err
	}

	var problems ValidationErrors

	problems = append(problems, structErrors("", d)...)

	if d.Trigger.Config == nil {
		problems = append(problems, ValidationError{Field: "trigger.type", Message: "is required"})
	} else {
		problems = append(problems, structErrors("trigger.config.", d.Trigger.Config)...)
	}

	for i, step := range d.Steps {
		prefix := fmt.Sprintf("steps[%d].", i)

		problems = append(problems, structErrors(prefix, stepFields{Name: step.Name})...)

		if step.Config == nil {
			problems = append(problems, ValidationError{Field: prefix + "type", Message: "is required"})

			continue
		}

		problems = append(problems, structErrors(prefix+"config.", step.Config)...)
	}

	if len(problems) > 0 {
		return nil, problems
	}

	request := d.Request()

	return &models.Workflow{
		Name:        request.Name,
		Description: request.Description,
		Enabled:     request.Enabled,
		Trigger:     request.Trigger,
		Steps:       request.Steps,
	}, nil
}

func checkStepIDs(steps []models.Step) error {
	seen := make(map[string][]int, len(steps))
	order := make([]string, 0, len(steps))

	for i, step := range steps {
		if _, ok := seen[step.ID]; !ok {
			order = append(order, step.ID)
		}

		seen[step.ID] = append(seen[step.ID], i)
	}

	for _, id := range order {
		if id == "" || len(seen[id]) > 1 {
			return &DuplicateStepIDError{ID: id, Indexes: seen[id]}
		}
	}

	return nil
}

func structErrors(prefix string, value any) ValidationErrors {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return ValidationErrors{{Field: strings.TrimSuffix(prefix, "."), Message: err.Error()}}
	}

	result := make(ValidationErrors, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		result = append(result, ValidationError{Field: prefix + fe.Field(), Message: message(fe)})
	}

	return result
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}

		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	}

	return fmt.Sprintf("failed the %s check", fe.Tag())
}
