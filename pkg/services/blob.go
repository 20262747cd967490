package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalBlobStore writes document content under a root directory. It stands
// in for object storage in single-node deployments and tests.
type LocalBlobStore struct {
	root string
}

// NewLocalBlobStore creates the root directory if needed.
func NewLocalBlobStore(root string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", root, err)
	}
	return &LocalBlobStore{root: root}, nil
}

var _ BlobStore = (*LocalBlobStore)(nil)

func (s *LocalBlobStore) Put(_ context.Context, path string, content []byte) error {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create blob directory: %w", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return fmt.Errorf("write blob %s: %w", path, err)
	}
	return nil
}
