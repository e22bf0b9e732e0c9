// Package secrets loads or creates the per-wallet swap secret.
package secrets

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jsarenik/btcpos/internal/storage"
)

const (
	keyPrefix   = "swap-secret/"
	secretBytes = 32
)

// Store hands out one stable secret per wallet identifier. A new secret is
// written to the underlying KV before it is returned, so a secret is never
// used without being durable first.
type Store struct {
	kv   storage.KV
	rand io.Reader
	mu   sync.Mutex
}

// New returns a Store backed by kv.
func New(kv storage.KV) *Store {
	return &Store{kv: kv, rand: rand.Reader}
}

// Key returns the storage key for a wallet identifier.
func Key(walletID string) string { return keyPrefix + walletID }

// GetOrCreate returns the secret for walletID, creating and persisting one
// if none exists.
func (s *Store) GetOrCreate(ctx context.Context, walletID string) (string, error) {
	if strings.TrimSpace(walletID) == "" {
		return "", errors.New("wallet identifier is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.kv.Get(ctx, Key(walletID))
	switch {
	case err == nil:
		secret := strings.TrimSpace(string(raw))
		if secret != "" {
			return secret, nil
		}
	case !errors.Is(err, storage.ErrNotFound):
		return "", fmt.Errorf("load swap secret: %w", err)
	}

	buf := make([]byte, secretBytes)
	if _, err := io.ReadFull(s.rand, buf); err != nil {
		return "", fmt.Errorf("generate swap secret: %w", err)
	}
	secret := hex.EncodeToString(buf)
	if err := s.kv.Put(ctx, Key(walletID), []byte(secret)); err != nil {
		return "", fmt.Errorf("persist swap secret: %w", err)
	}
	return secret, nil
}
