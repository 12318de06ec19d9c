package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

const schemaDraft = "http://json-schema.org/draft-07/schema#"

// ErrNoConfig is returned when validating a missing configuration.
var ErrNoConfig = errors.New("no config")

// Violation is one failed schema rule.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ConfigError reports a configuration that does not satisfy its type schema.
type ConfigError struct {
	Type       string
	Violations []Violation
}

func (e *ConfigError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Message
	}

	return fmt.Sprintf("invalid %s config: %s", e.Type, strings.Join(parts, "; "))
}

type compiledSchemas struct {
	steps    map[models.StepType]*gojsonschema.Schema
	triggers map[models.TriggerType]*gojsonschema.Schema
}

var compiled = sync.OnceValues(func() (*compiledSchemas, error) {
	result := &compiledSchemas{
		steps:    make(map[models.StepType]*gojsonschema.Schema),
		triggers: make(map[models.TriggerType]*gojsonschema.Schema),
	}

	for _, t := range models.StepTypes() {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(StepSchema(t)))
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s step schema: %w", t, err)
		}

		result.steps[t] = schema
	}

	for _, t := range models.TriggerTypes() {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(TriggerSchema(t)))
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s trigger schema: %w", t, err)
		}

		result.triggers[t] = schema
	}

	return result, nil
})

func reflectSchema(value any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
		Anonymous:      true,
	}

	schema := reflector.Reflect(value)
	schema.Version = schemaDraft

	return schema
}

// StepSchema returns the JSON schema of the configuration of a step type.
func StepSchema(t models.StepType) *jsonschema.Schema {
	return reflectSchema(DefaultStepConfig(t))
}

// TriggerSchema returns the JSON schema of the configuration of a trigger type.
func TriggerSchema(t models.TriggerType) *jsonschema.Schema {
	return reflectSchema(DefaultTriggerConfig(t))
}

// ValidateStepConfig checks a step configuration against its type schema.
func ValidateStepConfig(config models.StepConfig) error {
	if config == nil {
		return ErrNoConfig
	}

	schemas, err := compiled()
	if err != nil {
		return err
	}

	return validate(schemas.steps[config.StepType()], string(config.StepType()), models.CloneStepConfig(config))
}

// ValidateTriggerConfig checks a trigger configuration against its type schema.
func ValidateTriggerConfig(config models.TriggerConfig) error {
	if config == nil {
		return ErrNoConfig
	}

	schemas, err := compiled()
	if err != nil {
		return err
	}

	return validate(schemas.triggers[config.TriggerType()], string(config.TriggerType()), config)
}

func validate(schema *gojsonschema.Schema, tag string, config any) error {
	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal %s config: %w", tag, err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("failed to validate %s config: %w", tag, err)
	}

	if result.Valid() {
		return nil
	}

	violations := make([]Violation, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, Violation{Field: e.Field(), Message: e.Description()})
	}

	return &ConfigError{Type: tag, Violations: violations}
}
