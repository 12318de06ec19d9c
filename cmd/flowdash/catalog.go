package main

import (
	"context"
	"fmt"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/registry"
	"github.com/dukex/flowdash/pkg/variables"
	cli "github.com/urfave/cli/v3"
)

func (a *app) typesCommand() *cli.Command {
	return &cli.Command{
		Name:      "types",
		Usage:     "List trigger and step types, or print the config schema of one",
		ArgsUsage: "[type]",
		Action:    a.listTypes,
	}
}

func (a *app) listTypes(_ context.Context, cmd *cli.Command) error {
	if name := cmd.Args().First(); name != "" {
		return a.printSchema(name)
	}

	if a.json {
		return a.printJSON(map[string]any{
			"triggers": models.TriggerTypes(),
			"steps":    models.StepTypes(),
		})
	}

	t := a.styles.table("KIND", "TYPE", "LABEL")
	for _, trigger := range models.TriggerTypes() {
		t.Row("trigger", string(trigger), registry.Label(trigger))
	}

	for _, step := range models.StepTypes() {
		t.Row("step", string(step), registry.Label(step))
	}

	a.println(t.Render())

	return nil
}

func (a *app) printSchema(name string) error {
	if t := models.StepType(name); t.Valid() {
		return a.printJSON(registry.StepSchema(t))
	}

	if t := models.TriggerType(name); t.Valid() {
		return a.printJSON(registry.TriggerSchema(t))
	}

	return fmt.Errorf("%w: unknown type %q", errUsage, name)
}

func (a *app) varsCommand() *cli.Command {
	return &cli.Command{
		Name:      "vars",
		Usage:     "List the template variables available to a step of a workflow",
		ArgsUsage: "<workflow-id>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "step",
				Usage: "1-based position of the step; 0 lists what a new last step would see",
			},
		},
		Action: a.listVariables,
	}
}

func (a *app) listVariables(ctx context.Context, cmd *cli.Command) error {
	id, err := arg(cmd, 0, "workflow-id")
	if err != nil {
		return err
	}

	workflow, err := a.store.Workflow(ctx, id)
	if err != nil {
		return err
	}

	preceding := workflow.Steps

	if position := cmd.Int("step"); position != 0 {
		if position < 1 || position > len(workflow.Steps) {
			return fmt.Errorf("%w: --step must be between 1 and %d", errUsage, len(workflow.Steps))
		}

		preceding = workflow.Steps[:position-1]
	}

	catalog := variables.ForTrigger(workflow.Trigger, variables.Refs(preceding))

	if a.json {
		return a.printJSON(catalog)
	}

	t := a.styles.table("VARIABLE", "DESCRIPTION")
	for _, v := range catalog {
		t.Row(v.Syntax, v.Description)
	}

	a.println(t.Render())

	return nil
}
