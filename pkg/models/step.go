package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
)

// StepType tags the action a step performs.
type StepType string

const (
	StepHTTPRequest StepType = "http_request"
	StepTransform   StepType = "transform"
	StepLog         StepType = "log"
	StepNotify      StepType = "notify"
)

// StepTypes returns every step type in catalog order.
func StepTypes() []StepType {
	return []StepType{StepHTTPRequest, StepTransform, StepLog, StepNotify}
}

// Valid reports whether t is a known step type.
func (t StepType) Valid() bool {
	switch t {
	case StepHTTPRequest, StepTransform, StepLog, StepNotify:
		return true
	}

	return false
}

type HTTPMethod string

const (
	MethodGet    HTTPMethod = "GET"
	MethodPost   HTTPMethod = "POST"
	MethodPut    HTTPMethod = "PUT"
	MethodDelete HTTPMethod = "DELETE"
)

type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// NotifyChannel is the delivery channel of a notify step.
type NotifyChannel string

const (
	ChannelDiscord NotifyChannel = "discord"
)

// ErrUnknownStepType is returned when decoding a step with an unrecognised tag.
var ErrUnknownStepType = errors.New("unknown step type")

// StepConfig is the closed set of per-type step configurations.
type StepConfig interface {
	StepType() StepType
	isStepConfig()
}

// HTTPRequestConfig performs an outbound HTTP call.
type HTTPRequestConfig struct {
	Method  HTTPMethod        `json:"method"         validate:"required,oneof=GET POST PUT DELETE" jsonschema:"enum=GET,enum=POST,enum=PUT,enum=DELETE"`
	URL     string            `json:"url"            validate:"required"                           jsonschema:"minLength=1"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body,omitempty"`
}

// TransformConfig renders a template into the step output.
type TransformConfig struct {
	Template  string `json:"template"             validate:"required" jsonschema:"minLength=1"`
	OutputKey string `json:"output_key,omitempty"`
}

// LogConfig writes a message to the execution log.
type LogConfig struct {
	Message string   `json:"message" validate:"required"                  jsonschema:"minLength=1"`
	Level   LogLevel `json:"level"   validate:"required,oneof=info warn error" jsonschema:"enum=info,enum=warn,enum=error"`
}

// NotifyConfig sends a message to an outbound notification channel.
type NotifyConfig struct {
	Channel    NotifyChannel `json:"channel"         validate:"required,oneof=discord" jsonschema:"enum=discord"`
	WebhookURL string        `json:"webhook_url"     validate:"required"               jsonschema:"minLength=1"`
	Message    string        `json:"message"         validate:"required"               jsonschema:"minLength=1"`
	Embed      bool          `json:"embed,omitempty"`
}

func (HTTPRequestConfig) StepType() StepType { return StepHTTPRequest }
func (TransformConfig) StepType() StepType   { return StepTransform }
func (LogConfig) StepType() StepType         { return StepLog }
func (NotifyConfig) StepType() StepType      { return StepNotify }

func (HTTPRequestConfig) isStepConfig() {}
func (TransformConfig) isStepConfig()   {}
func (LogConfig) isStepConfig()         {}
func (NotifyConfig) isStepConfig()      {}

// NewStepConfig returns the zero configuration for a step type.
func NewStepConfig(t StepType) (StepConfig, error) {
	switch t {
	case StepHTTPRequest:
		return HTTPRequestConfig{}, nil
	case StepTransform:
		return TransformConfig{}, nil
	case StepLog:
		return LogConfig{}, nil
	case StepNotify:
		return NotifyConfig{}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownStepType, t)
}

// Step is one action of a workflow. ID is stable across reorders and Name
// is the key used by steps.<name>.* template references.
type Step struct {
	ID     string
	Name   string
	Config StepConfig
}

// Type returns the step tag, or the empty string when no configuration is set.
func (s Step) Type() StepType {
	if s.Config == nil {
		return ""
	}

	return s.Config.StepType()
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	s.Config = CloneStepConfig(s.Config)

	return s
}

// CloneStepConfig copies a configuration so the result shares no maps with c.
// A nil header map is normalised to an empty one.
func CloneStepConfig(c StepConfig) StepConfig {
	if http, ok := c.(HTTPRequestConfig); ok {
		headers := make(map[string]string, len(http.Headers))
		maps.Copy(headers, http.Headers)
		http.Headers = headers

		return http
	}

	return c
}

type stepJSON struct {
	ID     string          `json:"step_id"`
	Name   string          `json:"name"`
	Type   StepType        `json:"type"`
	Config json.RawMessage `json:"config"`
}

// MarshalJSON encodes the step as {"step_id", "name", "type", "config"}.
func (s Step) MarshalJSON() ([]byte, error) {
	if s.Config == nil {
		return nil, fmt.Errorf("step %q has no config", s.ID)
	}

	raw, err := json.Marshal(CloneStepConfig(s.Config))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s step config: %w", s.Type(), err)
	}

	return json.Marshal(stepJSON{ID: s.ID, Name: s.Name, Type: s.Type(), Config: raw})
}

// UnmarshalJSON decodes the step, picking the configuration shape from the type tag.
func (s *Step) UnmarshalJSON(data []byte) error {
	var envelope stepJSON

	err := json.Unmarshal(data, &envelope)
	if err != nil {
		return fmt.Errorf("failed to unmarshal step: %w", err)
	}

	config, err := NewStepConfig(envelope.Type)
	if err != nil {
		return err
	}

	trimmed := bytes.TrimSpace(envelope.Config)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		config, err = decodeStepConfig(envelope.Type, trimmed)
		if err != nil {
			return err
		}
	}

	s.ID = envelope.ID
	s.Name = envelope.Name
	s.Config = CloneStepConfig(config)

	return nil
}

func decodeStepConfig(stepType StepType, raw []byte) (StepConfig, error) {
	var (
		config StepConfig
		err    error
	)

	switch stepType {
	case StepHTTPRequest:
		var c HTTPRequestConfig
		err = json.Unmarshal(raw, &c)
		config = c
	case StepTransform:
		var c TransformConfig
		err = json.Unmarshal(raw, &c)
		config = c
	case StepLog:
		var c LogConfig
		err = json.Unmarshal(raw, &c)
		config = c
	case StepNotify:
		var c NotifyConfig
		err = json.Unmarshal(raw, &c)
		config = c
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStepType, stepType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s step config: %w", stepType, err)
	}

	return config, nil
}
