package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsarenik/btcpos/internal/storage"
)

type failingKV struct {
	storage.KV
	putErr error
}

func (f failingKV) Put(context.Context, string, []byte) error { return f.putErr }

func TestGetOrCreateIsStablePerWallet(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	s := New(kv)

	first, err := s.GetOrCreate(ctx, "w1")
	require.NoError(t, err)
	assert.Len(t, first, 64)

	again, err := s.GetOrCreate(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	other, err := s.GetOrCreate(ctx, "w2")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	stored, err := kv.Get(ctx, Key("w1"))
	require.NoError(t, err)
	assert.Equal(t, first, string(stored))
}

func TestGetOrCreateSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := New(storage.NewFileStore(dir)).GetOrCreate(ctx, "w1")
	require.NoError(t, err)
	second, err := New(storage.NewFileStore(dir)).GetOrCreate(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGetOrCreateFailsWhenNotPersisted(t *testing.T) {
	boom := errors.New("disk full")
	s := New(failingKV{KV: storage.NewMemoryStore(), putErr: boom})

	secret, err := s.GetOrCreate(context.Background(), "w1")
	require.ErrorIs(t, err, boom)
	assert.Empty(t, secret)
}

func TestGetOrCreateRejectsEmptyWallet(t *testing.T) {
	_, err := New(storage.NewMemoryStore()).GetOrCreate(context.Background(), " ")
	assert.Error(t, err)
}
