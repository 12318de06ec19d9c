package form

import (
	"errors"
	"fmt"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/registry"
)

// Check runs Validate and, when the draft passes, the checks the backend
// applies on save: every configuration against its type schema and the cron
// schedule against the cron grammar.
func Check(d Data) (*models.Workflow, error) {
	workflow, err := Validate(d)
	if err != nil {
		return nil, err
	}

	var problems ValidationErrors

	problems = append(problems, schemaErrors("trigger.config", registry.ValidateTriggerConfig(workflow.Trigger.Config))...)

	if cfg, ok := workflow.Trigger.Config.(models.CronConfig); ok {
		if _, err := models.ParseCronSchedule(cfg.Schedule); err != nil {
			problems = append(problems, ValidationError{Field: "trigger.config.schedule", Message: err.Error()})
		}
	}

	for i, step := range workflow.Steps {
		prefix := fmt.Sprintf("steps[%d].config", i)
		problems = append(problems, schemaErrors(prefix, registry.ValidateStepConfig(step.Config))...)
	}

	if len(problems) > 0 {
		return nil, problems
	}

	return workflow, nil
}

func schemaErrors(prefix string, err error) ValidationErrors {
	if err == nil {
		return nil
	}

	var configErr *registry.ConfigError
	if !errors.As(err, &configErr) {
		return ValidationErrors{{Field: prefix, Message: err.Error()}}
	}

	result := make(ValidationErrors, 0, len(configErr.Violations))
	for _, v := range configErr.Violations {
		field := prefix
		if v.Field != "" && v.Field != "(root)" {
			field += "." + v.Field
		}

		result = append(result, ValidationError{Field: field, Message: v.Message})
	}

	return result
}
