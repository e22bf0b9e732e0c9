package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
)

const (
	storeDirMode  = 0o700
	storeFileMode = 0o600
)

// FileStore keeps one file per key under a root directory.
type FileStore struct {
	root string
	mu   sync.RWMutex
}

var _ KV = (*FileStore)(nil)

// NewFileStore returns a store rooted at root. The directory is created on
// first write.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: filepath.Clean(root)}
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.pathForKey(key)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	return data, nil
}

// Put writes value through a pending file that is synced and renamed into
// place.
func (s *FileStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.pathForKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), storeDirMode); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(storeFileMode))
	if err != nil {
		return fmt.Errorf("create pending file for %q: %w", key, err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(value); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit %q: %w", key, err)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.pathForKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) pathForKey(key string) (string, error) {
	cleaned, err := ValidateKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}
