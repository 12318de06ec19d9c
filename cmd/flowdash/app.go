package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dukex/flowdash/pkg/cache"
	"github.com/dukex/flowdash/pkg/client"
	"github.com/dukex/flowdash/pkg/log"
	"github.com/dukex/flowdash/pkg/otelhelper"
	cli "github.com/urfave/cli/v3"
)

var errUsage = errors.New("invalid usage")

// app is the state shared by every subcommand. It is filled in by before.
type app struct {
	out    io.Writer
	logger *slog.Logger
	client *client.Client
	store  *cache.Store
	styles styles
	json   bool

	shutdownTracer func(context.Context) error
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	log.Setup(cmd.String("log-level"), "text")

	a.logger = log.WithModule("flowdash")
	a.styles = newStyles(a.out)
	a.json = cmd.Bool("json")

	if cmd.Bool("otel") {
		shutdown, err := otelhelper.Setup(ctx, "flowdash")
		if err != nil {
			return ctx, fmt.Errorf("failed to initialize tracer: %w", err)
		}

		a.shutdownTracer = shutdown
	}

	c, err := client.New(
		cmd.String("api-url"),
		client.WithTokenSource(client.StaticToken(cmd.String("token"))),
		client.WithLogger(a.logger),
	)
	if err != nil {
		return ctx, err
	}

	a.client = c
	a.store = cache.New(c)

	return ctx, nil
}

func (a *app) after(ctx context.Context, _ *cli.Command) error {
	if a.shutdownTracer == nil {
		return nil
	}

	err := a.shutdownTracer(context.WithoutCancel(ctx))
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to shutdown tracer provider", "error", err)
	}

	return nil
}

// printJSON writes v indented. It is used for every command under --json.
func (a *app) printJSON(v any) error {
	encoder := json.NewEncoder(a.out)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}

func (a *app) println(args ...any) {
	_, _ = fmt.Fprintln(a.out, args...)
}

func (a *app) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

// arg returns the i-th positional argument or a usage error naming it.
func arg(cmd *cli.Command, i int, name string) (string, error) {
	value := cmd.Args().Get(i)
	if value == "" {
		return "", fmt.Errorf("%w: missing <%s>", errUsage, name)
	}

	return value, nil
}
