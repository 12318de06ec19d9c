package variables

import (
	"testing"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntaxes(vars []Variable) []string {
	result := make([]string, len(vars))
	for i, v := range vars {
		result[i] = v.Syntax
	}

	return result
}

func TestFor_Ordering(t *testing.T) {
	vars := For(models.TriggerWebhook, []StepRef{
		{Name: "Fetch", Type: models.StepHTTPRequest},
		{Name: "Shape", Type: models.StepTransform},
	})

	assert.Equal(t, []string{
		"{{trigger.payload}}",
		"{{trigger.headers}}",
		"{{trigger.query}}",
		"{{steps.Fetch.output.status}}",
		"{{steps.Fetch.output.body}}",
		"{{steps.Fetch.output.headers}}",
		"{{steps.Shape.output.result}}",
		"{{secrets.<name>}}",
	}, syntaxes(vars))
}

func TestFor_LogContributesNothing(t *testing.T) {
	withLog := For(models.TriggerManual, []StepRef{{Name: "Log", Type: models.StepLog}})
	without := For(models.TriggerManual, nil)

	assert.Equal(t, without, withLog)
	assert.Equal(t, []string{"{{trigger}}", "{{secrets.<name>}}"}, syntaxes(withLog))
}

func TestFor_EveryTriggerEndsWithSecrets(t *testing.T) {
	for _, tt := range models.TriggerTypes() {
		for _, st := range models.StepTypes() {
			vars := For(tt, []StepRef{{Name: "a", Type: st}})

			require.NotEmpty(t, vars)
			assert.Equal(t, SecretsVariable, vars[len(vars)-1])
			assert.Contains(t, vars[0].Syntax, "trigger", tt)
		}
	}
}

func TestFor_TriggerTables(t *testing.T) {
	tests := []struct {
		triggerType models.TriggerType
		expected    []string
	}{
		{models.TriggerManual, []string{"{{trigger}}"}},
		{models.TriggerCron, []string{"{{trigger.schedule}}", "{{trigger.scheduled_time}}", "{{trigger.actual_time}}"}},
		{models.TriggerPoll, []string{
			"{{trigger.content_type}}",
			"{{trigger.items}}",
			"{{trigger.items[0].title}}",
			"{{trigger.items[0].link}}",
			"{{trigger.items[0].guid}}",
			"{{trigger.items[0].published}}",
			"{{trigger.items[0].summary}}",
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.triggerType), func(t *testing.T) {
			vars := For(tt.triggerType, nil)
			assert.Equal(t, append(tt.expected, "{{secrets.<name>}}"), syntaxes(vars))
		})
	}
}

func TestForTrigger_PollContentType(t *testing.T) {
	page := ForTrigger(models.NewTrigger(models.PollConfig{URL: "https://x", ContentType: models.PollHTTP}), nil)
	assert.Equal(t, []string{
		"{{trigger.content_type}}",
		"{{trigger.content}}",
		"{{trigger.content_hash}}",
		"{{secrets.<name>}}",
	}, syntaxes(page))

	atom := ForTrigger(models.NewTrigger(models.PollConfig{URL: "https://x", ContentType: models.PollAtom}), nil)
	assert.Equal(t, For(models.TriggerPoll, nil), atom)
}

func TestForTrigger_EmptyTriggerIsManual(t *testing.T) {
	assert.Equal(t, For(models.TriggerManual, nil), ForTrigger(models.Trigger{}, nil))
}

func TestRefs(t *testing.T) {
	steps := []models.Step{
		{ID: "1", Name: "A", Config: models.LogConfig{}},
		{ID: "2", Name: "B", Config: models.NotifyConfig{}},
	}

	assert.Equal(t, []StepRef{{"A", models.StepLog}, {"B", models.StepNotify}}, Refs(steps))
}

func TestVariable_Path(t *testing.T) {
	assert.Equal(t, "steps.A.output.body", Variable{Syntax: "{{steps.A.output.body}}"}.Path())
}

func TestReferences(t *testing.T) {
	refs := References("Hello {{ trigger.payload.name }}, status {{steps.Fetch.output.status|json}} {{secrets.token}} {{ }")

	assert.Equal(t, []Reference{
		{Path: "trigger.payload.name"},
		{Path: "steps.Fetch.output.status", Filter: "json"},
		{Path: "secrets.token"},
	}, refs)
	assert.Equal(t, "steps", refs[1].Namespace())

	name, ok := refs[1].StepName()
	assert.True(t, ok)
	assert.Equal(t, "Fetch", name)

	_, ok = refs[0].StepName()
	assert.False(t, ok)

	assert.Nil(t, References("no placeholders"))
}

func TestUnresolvedReferences(t *testing.T) {
	steps := []models.Step{
		{ID: "s1", Name: "Fetch", Config: models.HTTPRequestConfig{
			Method:  models.MethodGet,
			URL:     "https://x/{{steps.Later.output.result}}",
			Headers: map[string]string{"Authorization": "Bearer {{secrets.token}}"},
		}},
		{ID: "s2", Name: "Later", Config: models.TransformConfig{Template: "{{steps.Fetch.output.body}}"}},
		{ID: "s3", Name: "Log", Config: models.LogConfig{Message: "{{steps.Old name.output.result}} {{steps.Later.output.result}}", Level: models.LevelInfo}},
	}

	unresolved := UnresolvedReferences(steps)

	require.Len(t, unresolved, 2)
	assert.Equal(t, "s1", unresolved[0].StepID)
	assert.Equal(t, 0, unresolved[0].StepIndex)
	assert.Equal(t, "steps.Later.output.result", unresolved[0].Reference.Path)
	assert.Equal(t, "s3", unresolved[1].StepID)
	assert.Equal(t, "steps.Old name.output.result", unresolved[1].Reference.Path)
}
