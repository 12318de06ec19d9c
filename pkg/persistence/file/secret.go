package file

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/dukex/flowdash/pkg/models"
	"github.com/dukex/flowdash/pkg/persistence"
)

// Secrets returns every stored secret ordered by name.
func (fp *Persistence) Secrets(_ context.Context) ([]*models.SecretRecord, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	secrets := make([]*models.SecretRecord, 0)

	err := readDir(fp.path("secrets"), func(path string) error {
		var secret models.SecretRecord
		if err := readJSON(path, &secret); err != nil {
			return err
		}

		secrets = append(secrets, &secret)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}

	slices.SortFunc(secrets, func(a, b *models.SecretRecord) int {
		return cmp.Compare(a.Name, b.Name)
	})

	return secrets, nil
}

// SecretByName retrieves one secret.
func (fp *Persistence) SecretByName(_ context.Context, name string) (*models.SecretRecord, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	var secret models.SecretRecord

	err := readJSON(fp.path("secrets", name+".json"), &secret)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, persistence.NewSecretError("SecretByName", name, persistence.ErrSecretNotFound)
	}

	if err != nil {
		return nil, persistence.NewSecretError("SecretByName", name, err)
	}

	return &secret, nil
}

// CreateSecret stores a new secret.
func (fp *Persistence) CreateSecret(_ context.Context, secret *models.SecretRecord) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	path := fp.path("secrets", secret.Name+".json")

	if _, err := os.Stat(path); err == nil {
		return persistence.NewSecretError("CreateSecret", secret.Name, persistence.ErrSecretAlreadyExists)
	}

	if err := writeJSON(path, secret); err != nil {
		return persistence.NewSecretError("CreateSecret", secret.Name, err)
	}

	return nil
}

// DeleteSecret removes a secret.
func (fp *Persistence) DeleteSecret(_ context.Context, name string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	err := os.Remove(fp.path("secrets", name+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return persistence.NewSecretError("DeleteSecret", name, persistence.ErrSecretNotFound)
	}

	if err != nil {
		return persistence.NewSecretError("DeleteSecret", name, err)
	}

	return nil
}
