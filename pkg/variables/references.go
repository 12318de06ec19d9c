package variables

import (
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/dukex/flowdash/pkg/models"
)

// referencePattern matches {{path}} and {{path | filter}}.
var referencePattern = regexp.MustCompile(`\{\{\s*([^}|]+?)(?:\s*\|\s*([^}]+?))?\s*\}\}`)

// Reference is one placeholder found in text.
type Reference struct {
	Path   string
	Filter string
}

// Namespace returns the first path segment (trigger, steps or secrets).
func (r Reference) Namespace() string {
	namespace, _, _ := strings.Cut(r.Path, ".")

	return namespace
}

// StepName returns the addressed step name of a steps.<name>.* reference.
func (r Reference) StepName() (string, bool) {
	rest, ok := strings.CutPrefix(r.Path, "steps.")
	if !ok {
		return "", false
	}

	name, _, _ := strings.Cut(rest, ".")

	return name, name != ""
}

// References returns every placeholder in text, in order of appearance.
func References(text string) []Reference {
	matches := referencePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	refs := make([]Reference, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, Reference{Path: strings.TrimSpace(m[1]), Filter: strings.TrimSpace(m[2])})
	}

	return refs
}

// ConfigText returns the string fields of a step configuration that may hold placeholders.
func ConfigText(config models.StepConfig) []string {
	switch c := config.(type) {
	case models.HTTPRequestConfig:
		text := []string{c.URL, c.Body}
		for _, key := range slices.Sorted(maps.Keys(c.Headers)) {
			text = append(text, c.Headers[key])
		}

		return text
	case models.TransformConfig:
		return []string{c.Template}
	case models.LogConfig:
		return []string{c.Message}
	case models.NotifyConfig:
		return []string{c.WebhookURL, c.Message}
	}

	return nil
}

// Unresolved is a steps.<name>.* reference that does not name a preceding step.
type Unresolved struct {
	StepIndex int
	StepID    string
	Reference Reference
}

// UnresolvedReferences scans each step for references to steps that are not
// before it, such as references left behind by a rename or a reorder.
func UnresolvedReferences(steps []models.Step) []Unresolved {
	var result []Unresolved

	known := make(map[string]bool, len(steps))

	for i, step := range steps {
		for _, text := range ConfigText(step.Config) {
			for _, ref := range References(text) {
				name, ok := ref.StepName()
				if ok && !known[name] {
					result = append(result, Unresolved{StepIndex: i, StepID: step.ID, Reference: ref})
				}
			}
		}

		known[step.Name] = true
	}

	return result
}
