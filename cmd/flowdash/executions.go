package main

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/dukex/flowdash/pkg/client"
	"github.com/dukex/flowdash/pkg/execution"
	"github.com/dukex/flowdash/pkg/models"
	cli "github.com/urfave/cli/v3"
)

func (a *app) executionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "executions",
		Aliases: []string{"ex"},
		Usage:   "Inspect and retry workflow executions",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Aliases:   []string{"ls"},
				Usage:     "List executions of a workflow, newest first",
				ArgsUsage: "<workflow-id>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Page size (at most 100)",
						Value: models.DefaultExecutionLimit,
					},
					&cli.StringFlag{
						Name:  "last-key",
						Usage: "Cursor printed at the end of the previous page",
					},
				},
				Action: a.listExecutions,
			},
			{
				Name:      "show",
				Usage:     "Show an execution step by step",
				ArgsUsage: "<workflow-id> <execution-id>",
				Action:    a.showExecution,
			},
			{
				Name:      "retry",
				Usage:     "Run a failed execution again with the same trigger data",
				ArgsUsage: "<workflow-id> <execution-id>",
				Action:    a.retryExecution,
			},
		},
	}
}

func (a *app) listExecutions(ctx context.Context, cmd *cli.Command) error {
	workflowID, err := arg(cmd, 0, "workflow-id")
	if err != nil {
		return err
	}

	list, err := a.store.Executions(ctx, workflowID, models.ExecutionListOptions{
		Limit:   cmd.Int("limit"),
		LastKey: cmd.String("last-key"),
	})
	if err != nil {
		return err
	}

	if a.json {
		return a.printJSON(list)
	}

	if list.Count == 0 {
		a.println(a.styles.muted.Render("No executions."))

		return nil
	}

	a.println(a.executionsTable(list.Executions).Render())

	if list.LastKey != "" {
		a.println(a.styles.muted.Render("More: --last-key " + list.LastKey))
	}

	return nil
}

func (a *app) executionsTable(executions []*models.Execution) *table.Table {
	t := a.styles.table("ID", "STATUS", "TRIGGER", "STARTED", "DURATION")

	now := time.Now()
	for _, e := range executions {
		t.Row(
			e.ID,
			status(a.styles, e.Status),
			string(e.TriggerType),
			e.StartedAt.Local().Format(time.DateTime),
			execution.DurationAt(e.StartedAt, e.FinishedAt, now),
		)
	}

	return t
}

func (a *app) showExecution(ctx context.Context, cmd *cli.Command) error {
	run, err := a.execution(ctx, cmd)
	if err != nil {
		return err
	}

	return a.printExecution(run)
}

func (a *app) execution(ctx context.Context, cmd *cli.Command) (*models.Execution, error) {
	workflowID, err := arg(cmd, 0, "workflow-id")
	if err != nil {
		return nil, err
	}

	executionID, err := arg(cmd, 1, "execution-id")
	if err != nil {
		return nil, err
	}

	return a.store.Execution(ctx, workflowID, executionID)
}

func (a *app) printExecution(run *models.Execution) error {
	if a.json {
		return a.printJSON(run)
	}

	a.println(a.styles.title.Render(run.ID), status(a.styles, run.Status))
	a.printf("%s %s\n", a.styles.label.Render("Workflow:"), run.WorkflowID)
	a.printf("%s %s\n", a.styles.label.Render("Trigger:"), run.TriggerType)
	a.printf("%s %s\n", a.styles.label.Render("Started:"), run.StartedAt.Local().Format(time.DateTime))
	a.printf("%s %s\n", a.styles.label.Render("Duration:"), execution.DurationAt(run.StartedAt, run.FinishedAt, time.Now()))

	if run.Error != "" {
		a.printf("%s %s\n", a.styles.label.Render("Error:"), run.Error)
	}

	if len(run.Steps) == 0 {
		return nil
	}

	t := a.styles.table("#", "STEP", "STATUS", "DURATION", "DETAIL")

	for i, step := range run.Steps {
		duration := ""
		if step.StartedAt != nil {
			duration = execution.DurationOf(*step.StartedAt, step.FinishedAt)
		}

		t.Row(strconv.Itoa(i+1), stepName(step), status(a.styles, step.Status), duration, stepDetail(step))
	}

	a.println(t.Render())

	if execution.IsRetryable(run) {
		a.println(a.styles.muted.Render("Retry with: flowdash executions retry " + run.WorkflowID + " " + run.ID))
	}

	return nil
}

func stepName(step models.ExecutionStep) string {
	if step.Name != "" {
		return step.Name
	}

	return step.StepID
}

// stepDetail is the error of a failed step or the compact output of a successful one.
func stepDetail(step models.ExecutionStep) string {
	if step.Error != "" {
		return step.Error
	}

	if step.Output == nil {
		return ""
	}

	data, err := json.Marshal(step.Output)
	if err != nil {
		return ""
	}

	return client.Truncate(string(data), 60)
}

func (a *app) retryExecution(ctx context.Context, cmd *cli.Command) error {
	run, err := a.execution(ctx, cmd)
	if err != nil {
		return err
	}

	response, err := a.store.Retry(ctx, run)
	if err != nil {
		return err
	}

	if a.json {
		return a.printJSON(response)
	}

	a.printf("%s %s\n", response.Message, a.styles.muted.Render(response.ExecutionID))

	return nil
}
