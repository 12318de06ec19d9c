package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukex/flowdash/pkg/log"
	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/persistence"
)

type Secret struct {
	persistence persistence.Persistence
	logger      *slog.Logger
	now         func() time.Time
}

// NewSecret creates a new secret service.
func NewSecret(persistence persistence.Persistence) *Secret {
	return &Secret{
		persistence: persistence,
		logger:      log.WithModule("services.secret"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns the metadata of every secret sorted by name.
func (s *Secret) List(ctx context.Context) ([]*models.Secret, error) {
	records, err := s.persistence.Secrets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}

	secrets := make([]*models.Secret, len(records))
	for i, record := range records {
		secrets[i] = record.Metadata()
	}

	slices.SortFunc(secrets, func(a, b *models.Secret) int {
		return strings.Compare(a.Name, b.Name)
	})

	return secrets, nil
}

// Create stores a new secret and returns its metadata.
func (s *Secret) Create(ctx context.Context, req models.SecretRequest) (*models.Secret, error) {
	if !models.ValidSecretName(req.Name) {
		return nil, NewValidationError("CreateSecret", "invalid_secret_name",
			"Secret name must match "+models.SecretNamePattern.String(), ErrInvalidSecretName)
	}

	if !req.SecretType.Valid() {
		return nil, NewValidationError("CreateSecret", "invalid_secret_type",
			fmt.Sprintf("Unknown secret type %q", req.SecretType), ErrInvalidSecretType)
	}

	if req.Value == "" {
		return nil, NewValidationError("CreateSecret", "invalid_request", "Secret value is required", ErrInvalidRequest)
	}

	record := &models.SecretRecord{
		Name:       req.Name,
		Value:      req.Value,
		SecretType: req.SecretType,
		CreatedAt:  s.now(),
	}

	if err := s.persistence.CreateSecret(ctx, record); err != nil {
		if errors.Is(err, persistence.ErrSecretAlreadyExists) {
			return nil, NewValidationError("CreateSecret", "secret_exists",
				fmt.Sprintf("Secret '%s' already exists", req.Name), err)
		}

		return nil, fmt.Errorf("failed to create secret: %w", err)
	}

	s.logger.InfoContext(ctx, "secret created", "name", req.Name, "secret_type", req.SecretType)

	return record.Metadata(), nil
}

// Delete removes a secret.
func (s *Secret) Delete(ctx context.Context, name string) error {
	if err := s.persistence.DeleteSecret(ctx, name); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "secret deleted", "name", name)

	return nil
}
