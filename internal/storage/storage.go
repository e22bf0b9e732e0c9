// Package storage is the durable key-value layer behind the swap secret store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("key not found")

// KV is a small durable key-value store. A successful Put is on disk before
// it returns.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Open returns the store for backend rooted at dir. An empty backend means
// file.
func Open(backend, dir string) (KV, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		if dir == "" {
			return nil, errors.New("file storage requires a directory")
		}
		return NewFileStore(dir), nil
	case BackendBadger:
		if dir == "" {
			return nil, errors.New("badger storage requires a directory")
		}
		return OpenBadger(filepath.Join(dir, "badger"))
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (supported: file, badger, memory)", backend)
	}
}

// ValidateKey rejects keys that could escape the store root.
func ValidateKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", errors.New("storage key is empty")
	}
	cleaned := filepath.ToSlash(filepath.Clean(trimmed))
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") || cleaned == "." {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return cleaned, nil
}
