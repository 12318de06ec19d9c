// Package registry is the catalog of trigger and step types: their default
// configurations, display labels and configuration schemas.
package registry

import (
	"fmt"
	"strings"

	"github.com/dukex/flowdash/pkg/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultStepConfig returns a fully populated default configuration for a step type.
// It panics on a type outside models.StepTypes.
func DefaultStepConfig(t models.StepType) models.StepConfig {
	switch t {
	case models.StepHTTPRequest:
		return models.HTTPRequestConfig{
			Method:  models.MethodGet,
			Headers: map[string]string{},
		}
	case models.StepTransform:
		return models.TransformConfig{}
	case models.StepLog:
		return models.LogConfig{Level: models.LevelInfo}
	case models.StepNotify:
		return models.NotifyConfig{Channel: models.ChannelDiscord}
	}

	panic(fmt.Sprintf("registry: no default config for step type %q", t))
}

// DefaultTriggerConfig returns a fully populated default configuration for a trigger type.
// It panics on a type outside models.TriggerTypes.
func DefaultTriggerConfig(t models.TriggerType) models.TriggerConfig {
	switch t {
	case models.TriggerManual:
		return models.ManualConfig{}
	case models.TriggerWebhook:
		return models.WebhookConfig{}
	case models.TriggerCron:
		return models.CronConfig{}
	case models.TriggerPoll:
		return models.PollConfig{
			ContentType:     models.PollRSS,
			IntervalMinutes: models.DefaultPollInterval,
		}
	}

	panic(fmt.Sprintf("registry: no default config for trigger type %q", t))
}

var labels = map[string]string{
	string(models.TriggerManual):  "Manual",
	string(models.TriggerWebhook): "Webhook",
	string(models.TriggerCron):    "Schedule",
	string(models.TriggerPoll):    "Poll",

	string(models.StepHTTPRequest): "HTTP Request",
	string(models.StepTransform):   "Transform",
	string(models.StepLog):         "Log",
	string(models.StepNotify):      "Notify",

	string(models.PollRSS):  "RSS feed",
	string(models.PollAtom): "Atom feed",
	string(models.PollHTTP): "Web page",

	string(models.ChannelDiscord): "Discord",

	string(models.SecretDiscordWebhook): "Discord webhook",
	string(models.SecretSlackWebhook):   "Slack webhook",
	string(models.SecretAPIKey):         "API key",
	string(models.SecretCustom):         "Custom",
}

// Label returns the display string for a type tag. Unknown tags are title-cased
// with underscores turned into spaces.
func Label[T ~string](tag T) string {
	if label, ok := labels[string(tag)]; ok {
		return label
	}

	return cases.Title(language.English).String(strings.ReplaceAll(string(tag), "_", " "))
}

func init() {
	for _, t := range models.StepTypes() {
		config := DefaultStepConfig(t)
		if config.StepType() != t {
			panic(fmt.Sprintf("registry: default config for %q reports type %q", t, config.StepType()))
		}

		if _, ok := labels[string(t)]; !ok {
			panic(fmt.Sprintf("registry: no label for step type %q", t))
		}
	}

	for _, t := range models.TriggerTypes() {
		config := DefaultTriggerConfig(t)
		if config.TriggerType() != t {
			panic(fmt.Sprintf("registry: default config for %q reports type %q", t, config.TriggerType()))
		}

		if _, ok := labels[string(t)]; !ok {
			panic(fmt.Sprintf("registry: no label for trigger type %q", t))
		}
	}
}
