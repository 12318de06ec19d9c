package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/persistence"
	"github.com/lib/pq"
)

func scanSecret(row scanner) (*models.SecretRecord, error) {
	var secret models.SecretRecord

	err := row.Scan(&secret.Name, &secret.Value, &secret.SecretType, &secret.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &secret, nil
}

// Secrets returns every secret ordered by name.
func (p *Persistence) Secrets(ctx context.Context) ([]*models.SecretRecord, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT name, value, secret_type, created_at FROM secrets ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query secrets: %w", err)
	}
	defer p.closeRows(ctx, rows)

	secrets := make([]*models.SecretRecord, 0)

	for rows.Next() {
		secret, err := scanSecret(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan secret: %w", err)
		}

		secrets = append(secrets, secret)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating secrets: %w", err)
	}

	return secrets, nil
}

// SecretByName returns one secret.
func (p *Persistence) SecretByName(ctx context.Context, name string) (*models.SecretRecord, error) {
	row := p.db.QueryRowContext(ctx, "SELECT name, value, secret_type, created_at FROM secrets WHERE name = $1", name)

	secret, err := scanSecret(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewSecretError("SecretByName", name, persistence.ErrSecretNotFound)
	}

	if err != nil {
		return nil, persistence.NewSecretError("SecretByName", name, err)
	}

	return secret, nil
}

// CreateSecret inserts a secret.
func (p *Persistence) CreateSecret(ctx context.Context, secret *models.SecretRecord) error {
	_, err := p.db.ExecContext(ctx,
		"INSERT INTO secrets (name, value, secret_type, created_at) VALUES ($1, $2, $3, $4)",
		secret.Name, secret.Value, secret.SecretType, secret.CreatedAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		err = persistence.ErrSecretAlreadyExists
	}

	if err != nil {
		return persistence.NewSecretError("CreateSecret", secret.Name, err)
	}

	return nil
}

// DeleteSecret removes a secret.
func (p *Persistence) DeleteSecret(ctx context.Context, name string) error {
	result, err := p.db.ExecContext(ctx, "DELETE FROM secrets WHERE name = $1", name)
	if err != nil {
		return persistence.NewSecretError("DeleteSecret", name, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewSecretError("DeleteSecret", name, err)
	}

	if affected == 0 {
		return persistence.NewSecretError("DeleteSecret", name, persistence.ErrSecretNotFound)
	}

	return nil
}
