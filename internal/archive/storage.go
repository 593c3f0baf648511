// Package archive writes scenario sets and analysis results as JSON blobs
// to local disk, S3 or GCS, and records each blob in the store.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrBlobNotFound is returned by Storage.Get for a missing blob.
var ErrBlobNotFound = errors.New("blob not found")

// Storage abstracts blob storage for archived results.
type Storage interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Key is the storage key of a blob: "<model>/<kind>/<id>.json".
func Key(modelID, kind, id string) string {
	return modelID + "/" + kind + "/" + id + ".json"
}

// LocalStorage implements Storage on the local filesystem.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a LocalStorage rooted at the given directory.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

func (s *LocalStorage) path(key string) string {
	return filepath.Join(s.BaseDir, filepath.FromSlash(key))
}

// Put stores a blob, creating parent directories.
func (s *LocalStorage) Put(ctx context.Context, key string, data []byte) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Get retrieves a blob.
func (s *LocalStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("local get %s: %w", key, ErrBlobNotFound)
	}
	return data, err
}
