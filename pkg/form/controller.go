package form

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/registry"
	"github.com/dukex/flowdash/pkg/variables"
	"github.com/lithammer/shortuuid/v3"
)

var (
	ErrIndexOutOfRange = errors.New("step index out of range")
	ErrTypeMismatch    = errors.New("config type does not match step type")
	ErrIDExhausted     = errors.New("could not generate a unique step id")
)

const idAttempts = 8

// Controller owns the draft of one workflow while it is being edited.
// It is not safe for concurrent use.
type Controller struct {
	workflowID string
	draft      Data
	saved      Data
	newID      func() string
}

// Option configures a Controller.
type Option func(*Controller)

// WithIDGenerator replaces the step ID generator.
func WithIDGenerator(generate func() string) Option {
	return func(c *Controller) {
		c.newID = generate
	}
}

// NewController returns a controller holding an empty draft with a manual trigger.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		newID: shortuuid.New,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.reset(Data{Trigger: models.NewTrigger(registry.DefaultTriggerConfig(models.TriggerManual))})

	return c
}

func (c *Controller) reset(d Data) {
	c.draft = d.Clone()
	c.saved = d.Clone()
}

// Load replaces the draft with a fetched workflow and takes it as the saved snapshot.
func (c *Controller) Load(w *models.Workflow) {
	c.workflowID = w.ID
	c.reset(FromWorkflow(w))
}

// MarkSaved records a successful create or update. The draft becomes the new snapshot.
func (c *Controller) MarkSaved(w *models.Workflow) {
	if w != nil && w.ID != "" {
		c.workflowID = w.ID
	}

	c.saved = c.draft.Clone()
}

// WorkflowID returns the ID of the workflow being edited, or "" for a new one.
func (c *Controller) WorkflowID() string {
	return c.workflowID
}

// Data returns a copy of the current draft.
func (c *Controller) Data() Data {
	return c.draft.Clone()
}

// Steps returns a copy of the current step list.
func (c *Controller) Steps() []models.Step {
	return c.draft.Clone().Steps
}

// Len returns the number of steps in the draft.
func (c *Controller) Len() int {
	return len(c.draft.Steps)
}

// Dirty reports whether the draft differs from the last loaded or saved snapshot.
func (c *Controller) Dirty() bool {
	return !reflect.DeepEqual(c.draft, c.saved)
}

func (c *Controller) SetName(name string)               { c.draft.Name = name }
func (c *Controller) SetDescription(description string) { c.draft.Description = description }
func (c *Controller) SetEnabled(enabled bool)           { c.draft.Enabled = enabled }

// ChangeTriggerType replaces the trigger with the default configuration of t.
// Choosing the current type keeps the configuration.
func (c *Controller) ChangeTriggerType(t models.TriggerType) {
	if c.draft.Trigger.Type() == t {
		return
	}

	c.draft.Trigger = models.NewTrigger(registry.DefaultTriggerConfig(t))
}

// SetTriggerConfig replaces the trigger configuration, which may change the trigger type.
func (c *Controller) SetTriggerConfig(config models.TriggerConfig) {
	c.draft.Trigger = models.NewTrigger(config)
}

// Append adds a step of type t at the end of the draft, named after its position.
func (c *Controller) Append(t models.StepType) (models.Step, error) {
	id, err := c.uniqueID()
	if err != nil {
		return models.Step{}, err
	}

	step := models.Step{
		ID:     id,
		Name:   fmt.Sprintf("Step %d", len(c.draft.Steps)+1),
		Config: registry.DefaultStepConfig(t),
	}

	c.draft.Steps = append(c.draft.Steps, step)

	return step.Clone(), nil
}

func (c *Controller) uniqueID() (string, error) {
	for range idAttempts {
		id := c.newID()
		if id != "" && !c.hasID(id) {
			return id, nil
		}
	}

	return "", ErrIDExhausted
}

func (c *Controller) hasID(id string) bool {
	return slices.ContainsFunc(c.draft.Steps, func(s models.Step) bool { return s.ID == id })
}

func (c *Controller) checkIndex(i int) error {
	if i < 0 || i >= len(c.draft.Steps) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(c.draft.Steps))
	}

	return nil
}

// Remove deletes the step at index i. Other steps keep their IDs.
func (c *Controller) Remove(i int) error {
	if err := c.checkIndex(i); err != nil {
		return err
	}

	c.draft.Steps = slices.Delete(c.draft.Steps, i, i+1)

	return nil
}

// Move relocates the step at from so that it ends up at index to.
func (c *Controller) Move(from, to int) error {
	if err := c.checkIndex(from); err != nil {
		return err
	}

	if err := c.checkIndex(to); err != nil {
		return err
	}

	step := c.draft.Steps[from]
	c.draft.Steps = slices.Insert(slices.Delete(c.draft.Steps, from, from+1), to, step)

	return nil
}

// ChangeType replaces the configuration of step i with the default of t.
// No fields are carried over. Choosing the current type keeps the configuration.
func (c *Controller) ChangeType(i int, t models.StepType) error {
	if err := c.checkIndex(i); err != nil {
		return err
	}

	if c.draft.Steps[i].Type() == t {
		return nil
	}

	c.draft.Steps[i].Config = registry.DefaultStepConfig(t)

	return nil
}

// Rename sets the name of step i. References to the old name are left untouched;
// see OrphanedReferences.
func (c *Controller) Rename(i int, name string) error {
	if err := c.checkIndex(i); err != nil {
		return err
	}

	c.draft.Steps[i].Name = name

	return nil
}

// SetStepConfig edits the configuration of step i. The config must keep the step type;
// use ChangeType to switch types.
func (c *Controller) SetStepConfig(i int, config models.StepConfig) error {
	if err := c.checkIndex(i); err != nil {
		return err
	}

	if config == nil || config.StepType() != c.draft.Steps[i].Type() {
		return fmt.Errorf("%w: step %d is %s", ErrTypeMismatch, i, c.draft.Steps[i].Type())
	}

	c.draft.Steps[i].Config = models.CloneStepConfig(config)

	return nil
}

// PrecedingSteps returns the steps before index i in the live draft.
// Indexes past the end return every step, which is what a new step would see.
func (c *Controller) PrecedingSteps(i int) []variables.StepRef {
	i = max(0, min(i, len(c.draft.Steps)))

	return variables.Refs(c.draft.Steps[:i])
}

// Variables returns the template variables available to the step at index i.
func (c *Controller) Variables(i int) []variables.Variable {
	return variables.ForTrigger(c.draft.Trigger, c.PrecedingSteps(i))
}

// OrphanedReferences lists steps.<name>.* references that no longer point at a
// preceding step, typically after a rename or move.
func (c *Controller) OrphanedReferences() []variables.Unresolved {
	return variables.UnresolvedReferences(c.draft.Steps)
}

// Submit validates the draft and returns the payload to send. Nothing is sent when
// validation fails.
func (c *Controller) Submit() (models.WorkflowRequest, error) {
	workflow, err := Validate(c.draft)
	if err != nil {
		return models.WorkflowRequest{}, err
	}

	return workflow.Request(), nil
}
