package execution

import (
	"slices"

	"github.com/dukex/flowdash/pkg/models"
)

// Tone is the visual emphasis of a status.
type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneActive  Tone = "active"
	ToneSuccess Tone = "success"
	ToneDanger  Tone = "danger"
	ToneMuted   Tone = "muted"
)

// Presentation is how a status is shown.
type Presentation struct {
	Label  string
	Symbol string
	Tone   Tone
}

var presentations = map[models.StepStatus]Presentation{
	models.StepPending: {Label: "Pending", Symbol: "○", Tone: ToneNeutral},
	models.StepRunning: {Label: "Running", Symbol: "◐", Tone: ToneActive},
	models.StepSuccess: {Label: "Success", Symbol: "✓", Tone: ToneSuccess},
	models.StepFailed:  {Label: "Failed", Symbol: "✗", Tone: ToneDanger},
	models.StepSkipped: {Label: "Skipped", Symbol: "−", Tone: ToneMuted},
}

// Present maps any execution or step status to its presentation. Unrecognised
// values use the pending presentation.
func Present[S ~string](status S) Presentation {
	if p, ok := presentations[models.StepStatus(status)]; ok {
		return p
	}

	return presentations[models.StepPending]
}

var executionTransitions = map[models.ExecutionStatus][]models.ExecutionStatus{
	models.ExecutionPending: {models.ExecutionRunning, models.ExecutionFailed},
	models.ExecutionRunning: {models.ExecutionSuccess, models.ExecutionFailed},
}

var stepTransitions = map[models.StepStatus][]models.StepStatus{
	models.StepPending: {models.StepRunning, models.StepSkipped},
	models.StepRunning: {models.StepSuccess, models.StepFailed},
}

// CanTransition reports whether an execution may move from one status to another.
// Terminal statuses never move.
func CanTransition(from, to models.ExecutionStatus) bool {
	return slices.Contains(executionTransitions[from], to)
}

// CanTransitionStep is CanTransition for step statuses.
func CanTransitionStep(from, to models.StepStatus) bool {
	return slices.Contains(stepTransitions[from], to)
}
