package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/jsarenik/btcpos/internal/backend"
)

type fakeBackend struct {
	mu       sync.Mutex
	scanErr  map[string]error
	block    map[string]chan struct{}
	started  chan string
	secrets  []string
	scans    atomic.Int64
	builds   atomic.Int64
	mismatch bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		scanErr: make(map[string]error),
		block:   make(map[string]chan struct{}),
		started: make(chan string, 16),
	}
}

func (b *fakeBackend) NewChainClient(network backend.Network, esploraURL string) (backend.ChainClient, error) {
	if esploraURL == "" {
		return nil, errors.New("no endpoint")
	}
	return &fakeChain{b: b}, nil
}

func (b *fakeBackend) NewWallet(network backend.Network, descriptor string) (backend.Wallet, error) {
	if b.mismatch {
		return nil, backend.ErrNetworkMismatch
	}
	return &fakeWallet{id: "w-" + descriptor[:12], network: network}, nil
}

func (b *fakeBackend) NewSwapSessionBuilder(network backend.Network, chain backend.ChainClient) backend.SwapSessionBuilder {
	return &fakeBuilder{b: b}
}

func (b *fakeBackend) usedSecrets() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.secrets...)
}

type fakeChain struct{ b *fakeBackend }

func (c *fakeChain) FullScan(ctx context.Context, w backend.Wallet) (backend.Update, error) {
	c.b.scans.Add(1)
	c.b.started <- w.Identifier()
	c.b.mu.Lock()
	gate := c.b.block[w.Identifier()]
	err := c.b.scanErr[w.Identifier()]
	c.b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return backend.Update{}, ctx.Err()
		}
	}
	return backend.Update{Tip: 1}, err
}

type fakeWallet struct {
	id      string
	network backend.Network
	applied atomic.Bool
}

func (w *fakeWallet) Identifier() string       { return w.id }
func (w *fakeWallet) Network() backend.Network { return w.network }
func (w *fakeWallet) ApplyUpdate(backend.Update) error {
	w.applied.Store(true)
	return nil
}
func (w *fakeWallet) DeriveAddress() (string, error) { return "addr-" + w.id, nil }

type fakeBuilder struct {
	b      *fakeBackend
	secret string
}

func (f *fakeBuilder) WithSecret(secret string) backend.SwapSessionBuilder {
	f.secret = secret
	return f
}

func (f *fakeBuilder) WithReferral(string) backend.SwapSessionBuilder { return f }

func (f *fakeBuilder) Build(context.Context) (backend.SwapSession, error) {
	f.b.builds.Add(1)
	f.b.mu.Lock()
	f.b.secrets = append(f.b.secrets, f.secret)
	f.b.mu.Unlock()
	return fakeSwap{}, nil
}

type fakeSwap struct{}

func (fakeSwap) CreateInvoice(context.Context, int64, string, string) (backend.Invoice, error) {
	return nil, errors.New("not used")
}

type fakeFetcher struct {
	rate  decimal.Decimal
	err   error
	calls atomic.Int64
}

func (f *fakeFetcher) Rates(ctx context.Context, currency backend.CurrencyCode) (backend.Rates, error) {
	f.calls.Add(1)
	if f.err != nil {
		return backend.Rates{}, f.err
	}
	return backend.Rates{Currency: currency, Samples: []backend.Sample{{Source: "fake", Price: f.rate}}}, nil
}
