package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	domrepo "MacroPulse/internal/domain/repository"
	"MacroPulse/pkg/util"
)

// ModelFileStore keeps classifier artifacts as JSON files in a directory.
type ModelFileStore struct {
	dir string
}

func NewModelFileStore(dir string) *ModelFileStore {
	return &ModelFileStore{dir: dir}
}

func (s *ModelFileStore) path(key string) string {
	return filepath.Join(s.dir, "model_"+util.SanitizeKey(key)+".json")
}

// Load returns the artifact stored under key or ErrNotFound.
func (s *ModelFileStore) Load(_ context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("model %s: %w", key, domrepo.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", key, err)
	}
	return b, nil
}

// Save writes the artifact atomically via a temp file rename.
func (s *ModelFileStore) Save(_ context.Context, key string, artifact []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".model-*")
	if err != nil {
		return fmt.Errorf("create temp model: %w", err)
	}
	if _, err := tmp.Write(artifact); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write model %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close model %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename model %s: %w", key, err)
	}
	return nil
}

var _ domrepo.ModelStore = (*ModelFileStore)(nil)
