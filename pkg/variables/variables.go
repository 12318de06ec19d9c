// Package variables lists the template variables that can be referenced at a
// given point of a workflow and scans text for {{...}} references.
package variables

import (
	"fmt"
	"strings"

	"github.com/dukex/flowdash/pkg/models"
)

// Variable is one row of the catalog. Syntax is the full placeholder including braces.
type Variable struct {
	Syntax      string `json:"syntax"`
	Description string `json:"description"`
}

// Path returns the placeholder path without braces.
func (v Variable) Path() string {
	return strings.TrimSuffix(strings.TrimPrefix(v.Syntax, "{{"), "}}")
}

// StepRef is the part of a step the catalog needs: its addressing name and type.
type StepRef struct {
	Name string
	Type models.StepType
}

// Refs converts steps into catalog references, preserving order.
func Refs(steps []models.Step) []StepRef {
	refs := make([]StepRef, len(steps))
	for i, step := range steps {
		refs[i] = StepRef{Name: step.Name, Type: step.Type()}
	}

	return refs
}

type hint struct {
	path        string
	description string
}

func placeholder(path string) string {
	return "{{" + path + "}}"
}

var feedVariables = []hint{
	{"trigger.content_type", "Detected content type (rss or atom)"},
	{"trigger.items", "New feed items since the last poll"},
	{"trigger.items[0].title", "Title of the first new item"},
	{"trigger.items[0].link", "Link of the first new item"},
	{"trigger.items[0].guid", "Unique identifier of the first new item"},
	{"trigger.items[0].published", "Publication date of the first new item"},
	{"trigger.items[0].summary", "Summary of the first new item"},
}

var pageVariables = []hint{
	{"trigger.content_type", "Content type (http)"},
	{"trigger.content", "Current page content"},
	{"trigger.content_hash", "Hash of the current page content"},
}

func triggerHints(t models.TriggerType, contentType models.PollContentType) []hint {
	switch t {
	case models.TriggerManual:
		return []hint{
			{"trigger", "Data passed when the workflow is run manually"},
		}
	case models.TriggerWebhook:
		return []hint{
			{"trigger.payload", "JSON body of the webhook request"},
			{"trigger.headers", "HTTP headers of the webhook request"},
			{"trigger.query", "Query string parameters of the webhook request"},
		}
	case models.TriggerCron:
		return []hint{
			{"trigger.schedule", "Cron expression that fired"},
			{"trigger.scheduled_time", "Time the run was scheduled for"},
			{"trigger.actual_time", "Time the run actually started"},
		}
	case models.TriggerPoll:
		if contentType == models.PollHTTP {
			return pageVariables
		}

		return feedVariables
	}

	panic(fmt.Sprintf("variables: no hints for trigger type %q", t))
}

func stepHints(t models.StepType) []hint {
	switch t {
	case models.StepHTTPRequest:
		return []hint{
			{"output.status", "HTTP status code"},
			{"output.body", "Response body"},
			{"output.headers", "Response headers"},
		}
	case models.StepTransform:
		return []hint{
			{"output.result", "Rendered template"},
		}
	case models.StepLog:
		return nil
	case models.StepNotify:
		return []hint{
			{"output.status_code", "Status code returned by the channel"},
			{"output.success", "Whether the notification was delivered"},
		}
	}

	panic(fmt.Sprintf("variables: no hints for step type %q", t))
}

// SecretsVariable is always the last row of the catalog.
var SecretsVariable = Variable{
	Syntax:      placeholder("secrets.<name>"),
	Description: "Value of a stored secret",
}

// For returns the variables available to a step whose predecessors are preceding,
// in a workflow started by trigger type t. Poll triggers use the feed variables.
//
// Rows are ordered: trigger variables, then each preceding step's outputs in
// step order, then the secrets entry.
func For(t models.TriggerType, preceding []StepRef) []Variable {
	return build(triggerHints(t, models.PollRSS), preceding)
}

// ForTrigger is For with poll variables chosen from the trigger's content type.
func ForTrigger(trigger models.Trigger, preceding []StepRef) []Variable {
	contentType := models.PollRSS
	if poll, ok := trigger.Config.(models.PollConfig); ok {
		contentType = poll.EffectiveContentType()
	}

	triggerType := trigger.Type()
	if triggerType == "" {
		triggerType = models.TriggerManual
	}

	return build(triggerHints(triggerType, contentType), preceding)
}

func build(trigger []hint, preceding []StepRef) []Variable {
	result := make([]Variable, 0, len(trigger)+len(preceding)*3+1)

	for _, h := range trigger {
		result = append(result, Variable{Syntax: placeholder(h.path), Description: h.description})
	}

	for _, step := range preceding {
		for _, h := range stepHints(step.Type) {
			result = append(result, Variable{
				Syntax:      placeholder(StepPath(step.Name, h.path)),
				Description: fmt.Sprintf("%s from step %q", h.description, step.Name),
			})
		}
	}

	return append(result, SecretsVariable)
}

// StepPath returns the addressing path of a step output.
func StepPath(name, output string) string {
	return "steps." + name + "." + output
}

func init() {
	for _, t := range models.TriggerTypes() {
		if len(triggerHints(t, models.PollRSS)) == 0 {
			panic(fmt.Sprintf("variables: trigger type %q exposes no variables", t))
		}
	}

	for _, t := range models.StepTypes() {
		stepHints(t)
	}
}
