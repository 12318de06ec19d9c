package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/flowdash/pkg/client"
	"github.com/dukex/flowdash/pkg/execution"
	"github.com/dukex/flowdash/pkg/form"
	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/registry"
	"github.com/dukex/flowdash/pkg/variables"
	cli "github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const recentExecutions = 5

func (a *app) workflowsCommand() *cli.Command {
	return &cli.Command{
		Name:    "workflows",
		Aliases: []string{"wf"},
		Usage:   "Manage workflows",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List workflows with their latest execution status",
				Action:  a.listWorkflows,
			},
			{
				Name:      "show",
				Usage:     "Show a workflow, its steps and recent executions",
				ArgsUsage: "<workflow-id>",
				Action:    a.showWorkflow,
			},
			{
				Name:      "export",
				Usage:     "Print a workflow as YAML ready for apply",
				ArgsUsage: "<workflow-id>",
				Action:    a.exportWorkflow,
			},
			{
				Name:  "apply",
				Usage: "Create or update workflows from YAML files",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Workflow file; repeat for several",
						Required: true,
					},
				},
				Action: a.applyWorkflows,
			},
			{
				Name:      "lint",
				Usage:     "Validate workflow files without sending them",
				ArgsUsage: "<file>...",
				Action:    a.lintWorkflows,
			},
			{
				Name:      "enable",
				Usage:     "Enable a workflow",
				ArgsUsage: "<workflow-id>",
				Action:    a.setEnabled(true),
			},
			{
				Name:      "disable",
				Usage:     "Disable a workflow",
				ArgsUsage: "<workflow-id>",
				Action:    a.setEnabled(false),
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a workflow and its executions",
				ArgsUsage: "<workflow-id>",
				Action:    a.deleteWorkflow,
			},
			{
				Name:      "run",
				Usage:     "Execute a workflow",
				ArgsUsage: "<workflow-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "data",
						Usage: "Trigger data as a JSON object",
						Value: "{}",
					},
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Wait for the execution to finish",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long --wait waits",
						Value: time.Minute,
					},
				},
				Action: a.runWorkflow,
			},
		},
	}
}

func (a *app) listWorkflows(ctx context.Context, _ *cli.Command) error {
	workflows, err := a.store.Workflows(ctx)
	if err != nil {
		return err
	}

	if a.json {
		return a.printJSON(workflows)
	}

	if len(workflows) == 0 {
		a.println(a.styles.muted.Render("No workflows yet. Create one with: flowdash workflows apply -f <file>"))

		return nil
	}

	t := a.styles.table("ID", "NAME", "TRIGGER", "STATE", "LAST RUN")
	for _, w := range workflows {
		last := a.styles.muted.Render("never")
		if w.LatestExecutionStatus != nil {
			last = status(a.styles, *w.LatestExecutionStatus)
		}

		t.Row(w.ID, w.Name, registry.Label(w.Trigger.Type()), a.styles.enabled(w.Enabled), last)
	}

	a.println(t.Render())

	return nil
}

func (a *app) showWorkflow(ctx context.Context, cmd *cli.Command) error {
	id, err := arg(cmd, 0, "workflow-id")
	if err != nil {
		return err
	}

	var (
		workflow *models.Workflow
		recent   *models.ExecutionList
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w, err := a.store.Workflow(gctx, id)
		if err != nil {
			return err
		}

		workflow = w

		return nil
	})

	g.Go(func() error {
		list, err := a.store.Executions(gctx, id, models.ExecutionListOptions{Limit: recentExecutions})
		if err != nil {
			return err
		}

		recent = list

		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if a.json {
		return a.printJSON(struct {
			*models.Workflow
			Executions []*models.Execution `json:"executions"`
		}{workflow, recent.Executions})
	}

	a.printWorkflow(workflow)

	if len(recent.Executions) == 0 {
		a.println(a.styles.muted.Render("No executions yet."))

		return nil
	}

	a.println(a.styles.label.Render("Recent executions"))
	a.println(a.executionsTable(recent.Executions).Render())

	return nil
}

func (a *app) printWorkflow(w *models.Workflow) {
	a.println(a.styles.title.Render(w.Name), a.styles.muted.Render(w.ID), a.styles.enabled(w.Enabled))

	if w.Description != "" {
		a.println(w.Description)
	}

	a.println()
	a.printf("%s %s\n", a.styles.label.Render("Trigger:"), registry.Label(w.Trigger.Type()))

	switch config := w.Trigger.Config.(type) {
	case models.CronConfig:
		a.printf("  schedule %s", config.Schedule)

		if next, err := models.NextRun(config.Schedule, time.Now()); err == nil {
			a.printf(", next run %s", next.Format(time.RFC3339))
		}

		a.println()
	case models.WebhookConfig:
		a.printf("  POST %s\n", client.WebhookURL(a.client.BaseURL(), w.ID))
	case models.PollConfig:
		a.printf("  %s %s every %d min\n", registry.Label(config.EffectiveContentType()), config.URL, config.IntervalMinutes)
	}

	a.println()
	a.println(a.styles.label.Render("Steps"))

	if len(w.Steps) == 0 {
		a.println(a.styles.muted.Render("  none"))
	}

	for i, step := range w.Steps {
		a.printf("  %d. %s %s\n", i+1, step.Name, a.styles.muted.Render("("+registry.Label(step.Type())+")"))
	}

	for _, orphan := range variables.UnresolvedReferences(w.Steps) {
		a.println(a.styles.warning.Render(fmt.Sprintf(
			"  ! step %d references %s, which is not an earlier step",
			orphan.StepIndex+1, orphan.Reference.Path,
		)))
	}

	a.println()
}

func (a *app) exportWorkflow(ctx context.Context, cmd *cli.Command) error {
	id, err := arg(cmd, 0, "workflow-id")
	if err != nil {
		return err
	}

	workflow, err := a.store.Workflow(ctx, id)
	if err != nil {
		return err
	}

	data, err := marshalWorkflowFile(workflow)
	if err != nil {
		return err
	}

	_, err = a.out.Write(data)

	return err
}

func (a *app) applyWorkflows(ctx context.Context, cmd *cli.Command) error {
	for _, path := range cmd.StringSlice("file") {
		file, err := loadWorkflowFile(path)
		if err != nil {
			return err
		}

		workflow, err := form.Check(file.Data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		var saved *models.Workflow

		if file.ID != "" {
			saved, err = a.store.UpdateWorkflow(ctx, file.ID, workflow.Request())
		} else {
			saved, err = a.store.CreateWorkflow(ctx, workflow.Request())
		}

		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		verb := "created"
		if file.ID != "" {
			verb = "updated"
		}

		a.printf("%s %s %s\n", saved.ID, saved.Name, verb)
	}

	return nil
}

type lintResult struct {
	path     string
	err      error
	warnings []variables.Unresolved
}

func (a *app) lintWorkflows(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("%w: missing <file>", errUsage)
	}

	results := make([]lintResult, len(paths))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, path := range paths {
		g.Go(func() error {
			results[i] = lint(path)

			return nil
		})
	}

	_ = g.Wait()

	failed := 0

	for _, result := range results {
		if result.err == nil {
			a.printf("%s %s\n", status(a.styles, models.StepSuccess), result.path)
		} else {
			failed++

			a.printf("%s %s\n", status(a.styles, models.StepFailed), result.path)

			var problems form.ValidationErrors
			if errors.As(result.err, &problems) {
				for _, problem := range problems {
					a.printf("    %s: %s\n", problem.Field, problem.Message)
				}
			} else {
				a.printf("    %v\n", result.err)
			}
		}

		for _, warning := range result.warnings {
			a.println(a.styles.warning.Render(fmt.Sprintf(
				"    ! step %d references %s, which is not an earlier step",
				warning.StepIndex+1, warning.Reference.Path,
			)))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d workflow files are invalid", failed, len(paths))
	}

	return nil
}

func lint(path string) lintResult {
	file, err := loadWorkflowFile(path)
	if err != nil {
		return lintResult{path: path, err: err}
	}

	_, err = form.Check(file.Data)

	return lintResult{path: path, err: err, warnings: variables.UnresolvedReferences(file.Steps)}
}

func (a *app) setEnabled(enabled bool) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		id, err := arg(cmd, 0, "workflow-id")
		if err != nil {
			return err
		}

		response, err := a.store.SetEnabled(ctx, id, enabled)
		if err != nil {
			return err
		}

		if a.json {
			return a.printJSON(response)
		}

		a.println(response.Message)

		return nil
	}
}

func (a *app) deleteWorkflow(ctx context.Context, cmd *cli.Command) error {
	id, err := arg(cmd, 0, "workflow-id")
	if err != nil {
		return err
	}

	err = a.store.DeleteWorkflow(ctx, id)
	if err != nil {
		return err
	}

	a.printf("Workflow %s deleted\n", id)

	return nil
}

func (a *app) runWorkflow(ctx context.Context, cmd *cli.Command) error {
	id, err := arg(cmd, 0, "workflow-id")
	if err != nil {
		return err
	}

	var triggerData map[string]any

	err = json.NewDecoder(strings.NewReader(cmd.String("data"))).Decode(&triggerData)
	if err != nil {
		return fmt.Errorf("%w: --data must be a JSON object: %w", errUsage, err)
	}

	response, err := a.store.Execute(ctx, id, triggerData)
	if err != nil {
		return err
	}

	if !cmd.Bool("wait") || response.ExecutionID == "" {
		if a.json {
			return a.printJSON(response)
		}

		a.printf("%s %s\n", response.Message, a.styles.muted.Render(response.ExecutionID))

		return nil
	}

	run, err := a.wait(ctx, id, response.ExecutionID, cmd.Duration("timeout"))
	if err != nil {
		return err
	}

	return a.printExecution(run)
}

// wait polls an execution until it reaches a terminal status.
func (a *app) wait(ctx context.Context, workflowID, executionID string, timeout time.Duration) (*models.Execution, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		run, err := a.store.Execution(ctx, workflowID, executionID)
		if err != nil && ctx.Err() == nil && !client.IsNotFound(err) {
			return nil, err
		}

		if run != nil && run.Status.Terminal() {
			return run, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("execution %s still running after %s: %w",
				executionID, execution.FormatDuration(timeout), ctx.Err())
		case <-ticker.C:
		}
	}
}
