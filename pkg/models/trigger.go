package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// TriggerType tags the event source that starts a workflow.
type TriggerType string

const (
	TriggerManual  TriggerType = "manual"
	TriggerWebhook TriggerType = "webhook"
	TriggerCron    TriggerType = "cron"
	TriggerPoll    TriggerType = "poll"
)

// TriggerTypes returns every trigger type in catalog order.
func TriggerTypes() []TriggerType {
	return []TriggerType{TriggerManual, TriggerWebhook, TriggerCron, TriggerPoll}
}

// Valid reports whether t is a known trigger type.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerManual, TriggerWebhook, TriggerCron, TriggerPoll:
		return true
	}

	return false
}

// PollContentType selects how a poll trigger detects changes.
type PollContentType string

const (
	PollRSS  PollContentType = "rss"
	PollAtom PollContentType = "atom"
	PollHTTP PollContentType = "http"
)

const (
	// DefaultPollInterval is the poll interval, in minutes, used when none is configured.
	DefaultPollInterval = 15
	// MinPollInterval is the smallest accepted poll interval in minutes.
	MinPollInterval = 5
)

// ErrUnknownTriggerType is returned when decoding a trigger with an unrecognised tag.
var ErrUnknownTriggerType = errors.New("unknown trigger type")

// TriggerConfig is the closed set of per-type trigger configurations.
type TriggerConfig interface {
	TriggerType() TriggerType
	isTriggerConfig()
}

// ManualConfig configures a trigger started on demand. It has no fields.
type ManualConfig struct{}

// WebhookConfig configures an inbound webhook trigger. The intake URL is derived from the workflow ID.
type WebhookConfig struct{}

// CronConfig configures a schedule trigger. The expression grammar is checked by the backend.
type CronConfig struct {
	Schedule string `json:"schedule" validate:"required" jsonschema:"minLength=1"`
}

// PollConfig configures a trigger that polls a URL for new feed items or changed content.
type PollConfig struct {
	URL             string          `json:"url"                    validate:"required"                       jsonschema:"minLength=1"`
	ContentType     PollContentType `json:"content_type,omitempty" validate:"omitempty,oneof=rss atom http" jsonschema:"enum=rss,enum=atom,enum=http"`
	IntervalMinutes int             `json:"interval_minutes"       validate:"min=5"                          jsonschema:"minimum=5"`
}

// EffectiveContentType returns the configured content type, or rss when unset.
func (c PollConfig) EffectiveContentType() PollContentType {
	if c.ContentType == "" {
		return PollRSS
	}

	return c.ContentType
}

func (ManualConfig) TriggerType() TriggerType  { return TriggerManual }
func (WebhookConfig) TriggerType() TriggerType { return TriggerWebhook }
func (CronConfig) TriggerType() TriggerType    { return TriggerCron }
func (PollConfig) TriggerType() TriggerType    { return TriggerPoll }

func (ManualConfig) isTriggerConfig()  {}
func (WebhookConfig) isTriggerConfig() {}
func (CronConfig) isTriggerConfig()    {}
func (PollConfig) isTriggerConfig()    {}

// NewTriggerConfig returns the zero configuration for a trigger type.
func NewTriggerConfig(t TriggerType) (TriggerConfig, error) {
	switch t {
	case TriggerManual:
		return ManualConfig{}, nil
	case TriggerWebhook:
		return WebhookConfig{}, nil
	case TriggerCron:
		return CronConfig{}, nil
	case TriggerPoll:
		return PollConfig{}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownTriggerType, t)
}

// Trigger is a tagged union keyed by its configuration type.
type Trigger struct {
	Config TriggerConfig
}

// NewTrigger wraps a trigger configuration.
func NewTrigger(config TriggerConfig) Trigger {
	return Trigger{Config: config}
}

// Type returns the trigger tag, or the empty string when no configuration is set.
func (t Trigger) Type() TriggerType {
	if t.Config == nil {
		return ""
	}

	return t.Config.TriggerType()
}

// Clone returns a copy of the trigger. Configurations are plain values.
func (t Trigger) Clone() Trigger {
	return Trigger{Config: t.Config}
}

type triggerJSON struct {
	Type   TriggerType     `json:"type"`
	Config json.RawMessage `json:"config"`
}

// MarshalJSON encodes the trigger as {"type": ..., "config": {...}}.
func (t Trigger) MarshalJSON() ([]byte, error) {
	config := t.Config
	if config == nil {
		config = ManualConfig{}
	}

	raw, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s trigger config: %w", config.TriggerType(), err)
	}

	return json.Marshal(triggerJSON{Type: config.TriggerType(), Config: raw})
}

// UnmarshalJSON decodes the trigger, picking the configuration shape from the type tag.
func (t *Trigger) UnmarshalJSON(data []byte) error {
	var envelope triggerJSON

	err := json.Unmarshal(data, &envelope)
	if err != nil {
		return fmt.Errorf("failed to unmarshal trigger: %w", err)
	}

	if envelope.Type == "" {
		envelope.Type = TriggerManual
	}

	config, err := decodeTriggerConfig(envelope.Type, envelope.Config)
	if err != nil {
		return err
	}

	t.Config = config

	return nil
}

func decodeTriggerConfig(triggerType TriggerType, raw json.RawMessage) (TriggerConfig, error) {
	empty := len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))

	switch triggerType {
	case TriggerManual:
		return ManualConfig{}, nil
	case TriggerWebhook:
		return WebhookConfig{}, nil
	case TriggerCron:
		var config CronConfig
		if !empty {
			if err := json.Unmarshal(raw, &config); err != nil {
				return nil, fmt.Errorf("failed to unmarshal cron trigger config: %w", err)
			}
		}

		return config, nil
	case TriggerPoll:
		config := PollConfig{IntervalMinutes: DefaultPollInterval}
		if !empty {
			if err := json.Unmarshal(raw, &config); err != nil {
				return nil, fmt.Errorf("failed to unmarshal poll trigger config: %w", err)
			}
		}

		return config, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownTriggerType, triggerType)
}
