// Command flowdash is a terminal dashboard for an automation API: it lists,
// edits, runs and inspects workflows and manages secrets.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/flowdash/pkg/client"
	"github.com/dukex/flowdash/pkg/form"
	cli "github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newCommand(os.Stdout).Run(ctx, os.Args)
	if err != nil {
		report(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newCommand(out io.Writer) *cli.Command {
	a := &app{out: out}

	return &cli.Command{
		Name:                  "flowdash",
		Usage:                 "Build, run and inspect automation workflows",
		EnableShellCompletion: true,
		Writer:                out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "Base URL of the automation API",
				Value:   "http://localhost:9091",
				Sources: cli.EnvVars("FLOWDASH_API_URL"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token sent with every request",
				Sources: cli.EnvVars("FLOWDASH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "otel",
				Usage:   "Export traces of API calls over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print results as JSON",
			},
		},
		Before: a.before,
		After:  a.after,
		Commands: []*cli.Command{
			a.workflowsCommand(),
			a.executionsCommand(),
			a.secretsCommand(),
			a.typesCommand(),
			a.varsCommand(),
		},
	}
}

// report prints err for a person. Field problems are listed one per line.
func report(w io.Writer, err error) {
	var problems form.ValidationErrors
	if errors.As(err, &problems) {
		_, _ = fmt.Fprintln(w, "Workflow is invalid:")

		for _, problem := range problems {
			_, _ = fmt.Fprintf(w, "  %s: %s\n", problem.Field, problem.Message)
		}

		return
	}

	message := client.UserMessage(err)
	if message == "" || message == client.MessageUnknown {
		message = client.Truncate(err.Error(), client.MaxMessageLength)
	}

	_, _ = fmt.Fprintln(w, "Error:", message)
}
