package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/registry"
	cli "github.com/urfave/cli/v3"
)

func (a *app) secretsCommand() *cli.Command {
	return &cli.Command{
		Name:  "secrets",
		Usage: "Manage stored secrets",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List secrets with masked values",
				Action:  a.listSecrets,
			},
			{
				Name:      "create",
				Usage:     "Store a secret",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "Secret type (discord_webhook, slack_webhook, api_key, custom)",
						Value: string(models.SecretCustom),
					},
					&cli.StringFlag{
						Name:  "value",
						Usage: "Secret value; read from stdin when omitted",
					},
				},
				Action: a.createSecret,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a secret",
				ArgsUsage: "<name>",
				Action:    a.deleteSecret,
			},
		},
	}
}

func (a *app) listSecrets(ctx context.Context, _ *cli.Command) error {
	secrets, err := a.store.Secrets(ctx)
	if err != nil {
		return err
	}

	if a.json {
		return a.printJSON(secrets)
	}

	if len(secrets) == 0 {
		a.println(a.styles.muted.Render("No secrets."))

		return nil
	}

	t := a.styles.table("NAME", "TYPE", "VALUE", "CREATED")
	for _, secret := range secrets {
		t.Row(secret.Name, registry.Label(secret.SecretType), secret.MaskedValue, secret.CreatedAt.Local().Format(time.DateTime))
	}

	a.println(t.Render())

	return nil
}

func (a *app) createSecret(ctx context.Context, cmd *cli.Command) error {
	name, err := arg(cmd, 0, "name")
	if err != nil {
		return err
	}

	secretType := models.SecretType(cmd.String("type"))
	if !secretType.Valid() {
		return fmt.Errorf("%w: unknown secret type %q", errUsage, secretType)
	}

	value := cmd.String("value")
	if value == "" {
		value, err = readValue(cmd.Root().Reader)
		if err != nil {
			return err
		}
	}

	secret, err := a.store.CreateSecret(ctx, models.SecretRequest{
		Name:       name,
		Value:      value,
		SecretType: secretType,
	})
	if err != nil {
		return err
	}

	if a.json {
		return a.printJSON(secret)
	}

	a.printf("Secret %s created %s\n", secret.Name, a.styles.muted.Render(secret.MaskedValue))

	return nil
}

func readValue(r io.Reader) (string, error) {
	if r == nil {
		r = os.Stdin
	}

	data, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read secret value: %w", err)
	}

	value := strings.TrimRight(string(data), "\r\n")
	if value == "" {
		return "", fmt.Errorf("%w: secret value is empty", errUsage)
	}

	return value, nil
}

func (a *app) deleteSecret(ctx context.Context, cmd *cli.Command) error {
	name, err := arg(cmd, 0, "name")
	if err != nil {
		return err
	}

	err = a.store.DeleteSecret(ctx, name)
	if err != nil {
		return err
	}

	a.printf("Secret %s deleted\n", name)

	return nil
}
