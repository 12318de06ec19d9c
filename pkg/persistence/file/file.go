// Package file provides file-based persistence for the development backend.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/flowdash/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
//
// Layout under root:
//
//	workflows/<id>.json
//	executions/<workflow id>/<execution id>.json
//	secrets/<name>.json
type Persistence struct {
	root string
	mu   sync.RWMutex
}

var _ persistence.Persistence = (*Persistence)(nil)

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.Replace(root, "file://", "", 1)}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) path(parts ...string) string {
	return filepath.Clean(filepath.Join(append([]string{fp.root}, parts...)...))
}

// readJSON decodes the file at path into v. A missing file is reported as fs.ErrNotExist.
func readJSON(path string, v any) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}

	return nil
}

func writeJSON(path string, v any) error {
	err := os.MkdirAll(filepath.Dir(path), 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

// readDir decodes every json file of dir with decode. A missing dir yields nothing.
func readDir(dir string, decode func(path string) error) error {
	files, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}

	for _, name := range files {
		if err := decode(filepath.Join(dir, name)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return err
		}
	}

	return nil
}
