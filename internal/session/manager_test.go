package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jsarenik/btcpos/internal/backend"
	"github.com/jsarenik/btcpos/internal/posconfig"
	"github.com/jsarenik/btcpos/internal/secrets"
	"github.com/jsarenik/btcpos/internal/state"
	"github.com/jsarenik/btcpos/internal/storage"
)

var (
	descA = "ct(slip77(aaaa),elwpkh(tpubA/<0;1>/*))"
	descB = "ct(slip77(bbbb),elwpkh(tpubB/<0;1>/*))"
)

type harness struct {
	manager   *Manager
	store     *state.Store
	backend   *fakeBackend
	kv        *storage.MemoryStore
	fetcher   *fakeFetcher
	factories atomic.Int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		store:   &state.Store{},
		backend: newFakeBackend(),
		kv:      storage.NewMemoryStore(),
		fetcher: &fakeFetcher{rate: decimal.NewFromInt(50000)},
	}
	m, err := NewManager(Options{
		Settings: Settings{
			Network:         backend.NetworkRegtest,
			EsploraURL:      "http://localhost:3000",
			ReferralTag:     "btcpos",
			RefreshInterval: time.Hour,
		},
		Backend: h.backend,
		Secrets: secrets.New(h.kv),
		NewPriceFetcher: func() (backend.PriceFetcher, error) {
			h.factories.Add(1)
			return h.fetcher, nil
		},
		Store:   h.store,
		Context: ctx,
	})
	require.NoError(t, err)
	h.manager = m
	t.Cleanup(func() {
		m.StopRateRefresh()
		cancel()
	})
	return h
}

func cfg(desc, currency string) posconfig.Config {
	return posconfig.Config{Descriptor: desc, Currency: currency, ShowDescription: true}
}

func TestEnsureSession_BringUpPublishesEverything(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t)

	var readyEvents []bool
	h.store.Ready.Subscribe(func(ready, _ bool) { readyEvents = append(readyEvents, ready) })

	require.NoError(t, h.manager.EnsureSession(context.Background(), cfg(descA, "USD")))

	snap := h.store.Snapshot()
	assert.True(t, snap.Ready)
	assert.True(t, snap.HasSession)
	assert.Equal(t, backend.CurrencyCode("USD"), snap.Currency)
	assert.EqualValues(t, 1, h.backend.scans.Load())
	assert.Equal(t, []bool{true}, readyEvents)

	w, _ := h.store.Wallet.Get()
	assert.True(t, w.(*fakeWallet).applied.Load(), "update applied to wallet")

	require.Eventually(t, func() bool {
		_, ok := h.store.Rate()
		return ok
	}, time.Second, 5*time.Millisecond, "refresh fetches immediately")
	assert.True(t, h.manager.RefreshRunning())

	h.manager.StopRateRefresh()
}

func TestEnsureSession_ReusesSameWalletWithoutNetwork(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.manager.EnsureSession(ctx, cfg(descA, "USD")))
	h.manager.StopRateRefresh()
	walletBefore, _ := h.store.Wallet.Get()
	swapBefore, _ := h.store.SwapSession.Get()

	require.NoError(t, h.manager.EnsureSession(ctx, cfg(descA, "EUR")))

	assert.EqualValues(t, 1, h.backend.scans.Load(), "no second full scan")
	assert.EqualValues(t, 1, h.backend.builds.Load(), "no second swap session")
	walletAfter, _ := h.store.Wallet.Get()
	swapAfter, _ := h.store.SwapSession.Get()
	assert.Same(t, walletBefore, walletAfter)
	assert.Equal(t, swapBefore, swapAfter)

	code, _ := h.store.CurrencyCode.Get()
	assert.Equal(t, backend.CurrencyCode("EUR"), code)
	assert.EqualValues(t, 2, h.factories.Load(), "currency change rebuilds the fetcher")
	assert.True(t, h.store.IsReady())
	assert.True(t, h.manager.RefreshRunning(), "reuse resumes refresh")

	require.NoError(t, h.manager.EnsureSession(ctx, cfg(descA, "EUR")))
	assert.EqualValues(t, 2, h.factories.Load(), "same currency keeps the fetcher")

	h.manager.StopRateRefresh()
}

func TestEnsureSession_DifferentWalletReplacesSession(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.manager.EnsureSession(ctx, cfg(descA, "USD")))
	idA := h.store.Snapshot().WalletID

	require.NoError(t, h.manager.EnsureSession(ctx, cfg(descB, "USD")))
	idB := h.store.Snapshot().WalletID

	assert.NotEqual(t, idA, idB)
	assert.EqualValues(t, 2, h.backend.scans.Load())
	assert.EqualValues(t, 2, h.backend.builds.Load())

	used := h.backend.usedSecrets()
	require.Len(t, used, 2)
	assert.NotEqual(t, used[0], used[1], "each wallet has its own swap secret")

	for i, id := range []string{idA, idB} {
		stored, err := h.kv.Get(ctx, secrets.Key(id))
		require.NoError(t, err)
		assert.Equal(t, used[i], string(stored), "secret persisted before use")
	}

	h.manager.StopRateRefresh()
}

func TestEnsureSession_FailureLeavesStoreNotReady(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.manager.EnsureSession(ctx, cfg(descA, "USD")))

	boom := errors.New("esplora unreachable")
	h.backend.scanErr["w-"+descB[:12]] = boom

	var sawReadyFalse bool
	h.store.Ready.Subscribe(func(ready, _ bool) {
		if !ready {
			sawReadyFalse = true
		}
	})

	err := h.manager.EnsureSession(ctx, cfg(descB, "USD"))
	require.ErrorIs(t, err, boom)
	assert.True(t, sawReadyFalse)
	assert.False(t, h.store.IsReady())
	assert.False(t, h.store.HasSession(), "replaced session is not left behind")
	assert.False(t, h.manager.RefreshRunning())
}

func TestEnsureSession_NetworkMismatch(t *testing.T) {
	h := newHarness(t)
	h.backend.mismatch = true

	err := h.manager.EnsureSession(context.Background(), cfg(descA, "USD"))
	require.ErrorIs(t, err, backend.ErrNetworkMismatch)
	assert.False(t, h.store.IsReady())
	assert.EqualValues(t, 0, h.backend.scans.Load())
}

func TestCheckDescriptor(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.manager.CheckDescriptor(descA))
	assert.False(t, h.store.HasSession())

	h.backend.mismatch = true
	require.ErrorIs(t, h.manager.CheckDescriptor(descA), backend.ErrNetworkMismatch)
}

func TestEnsureSession_InvalidCurrency(t *testing.T) {
	h := newHarness(t)
	err := h.manager.EnsureSession(context.Background(), cfg(descA, "U$D"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "currency"))
	assert.False(t, h.store.HasSession())
}

func TestEnsureSession_LatestRequestWins(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t)
	ctx := context.Background()

	gate := make(chan struct{})
	h.backend.block["w-"+descA[:12]] = gate

	errA := make(chan error, 1)
	go func() { errA <- h.manager.EnsureSession(ctx, cfg(descA, "USD")) }()
	require.Equal(t, "w-"+descA[:12], <-h.backend.started)

	require.NoError(t, h.manager.EnsureSession(ctx, cfg(descB, "EUR")))
	<-h.backend.started

	close(gate)
	require.ErrorIs(t, <-errA, ErrSuperseded)

	snap := h.store.Snapshot()
	assert.Equal(t, "w-"+descB[:12], snap.WalletID)
	assert.Equal(t, backend.CurrencyCode("EUR"), snap.Currency)
	assert.True(t, snap.Ready)

	h.manager.StopRateRefresh()
}

func TestEnsureSession_ConcurrentCallsShareBringUp(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t)
	ctx := context.Background()

	gate := make(chan struct{})
	h.backend.block["w-"+descA[:12]] = gate

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.manager.EnsureSession(ctx, cfg(descA, "USD"))
		}(i)
	}
	<-h.backend.started
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, h.backend.scans.Load())
	assert.True(t, h.store.IsReady())

	h.manager.StopRateRefresh()
}

func TestEnsureSession_UnbuildableConfigDropsHeldSession(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(h *harness)
		next    posconfig.Config
		wantErr error
	}{
		{
			name:    "wallet construction fails",
			prepare: func(h *harness) { h.backend.mismatch = true },
			next:    cfg(descB, "USD"),
			wantErr: backend.ErrNetworkMismatch,
		},
		{
			name:    "currency is invalid",
			prepare: func(*harness) {},
			next:    cfg(descB, "1$x"),
		},
		{
			name:    "same wallet with invalid currency",
			prepare: func(*harness) {},
			next:    cfg(descA, "1$x"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
			h := newHarness(t)
			ctx := context.Background()

			held := cfg(descA, "USD")
			require.NoError(t, h.manager.EnsureSession(ctx, held))
			require.True(t, h.manager.ReadyFor(held))

			tt.prepare(h)
			err := h.manager.EnsureSession(ctx, tt.next)
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}

			assert.False(t, h.store.IsReady())
			assert.False(t, h.store.HasSession(), "held wallet must not stay usable")
			assert.False(t, h.manager.RefreshRunning())
			assert.False(t, h.manager.ReadyFor(tt.next))
			assert.False(t, h.manager.ReadyFor(held), "only the latest request can be ready")
		})
	}
}

func TestReadyFor(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t)
	ctx := context.Background()

	a := cfg(descA, "USD")
	b := cfg(descB, "USD")
	assert.False(t, h.manager.ReadyFor(a), "nothing requested yet")

	require.NoError(t, h.manager.EnsureSession(ctx, a))
	assert.True(t, h.manager.ReadyFor(a))
	assert.False(t, h.manager.ReadyFor(b), "held wallet is not b")

	changed := a
	changed.ShowSettingsGear = true
	assert.False(t, h.manager.ReadyFor(changed), "not the requested configuration")

	gate := make(chan struct{})
	h.backend.block["w-"+descB[:12]] = gate
	errB := make(chan error, 1)
	go func() { errB <- h.manager.EnsureSession(ctx, b) }()
	require.Equal(t, "w-"+descB[:12], <-h.backend.started)

	assert.False(t, h.manager.ReadyFor(a), "a was replaced by a newer request")
	assert.False(t, h.manager.ReadyFor(b), "b is still being built")

	close(gate)
	require.NoError(t, <-errB)
	assert.True(t, h.manager.ReadyFor(b))

	h.manager.StopRateRefresh()
}

func TestEnsureSession_SharedBringUpTakesLatestCurrency(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t)
	ctx := context.Background()

	gate := make(chan struct{})
	h.backend.block["w-"+descA[:12]] = gate

	errUSD := make(chan error, 1)
	go func() { errUSD <- h.manager.EnsureSession(ctx, cfg(descA, "USD")) }()
	require.Equal(t, "w-"+descA[:12], <-h.backend.started)

	errEUR := make(chan error, 1)
	go func() { errEUR <- h.manager.EnsureSession(ctx, cfg(descA, "EUR")) }()
	time.Sleep(20 * time.Millisecond)
	close(gate)

	require.NoError(t, <-errUSD)
	require.NoError(t, <-errEUR)

	assert.EqualValues(t, 1, h.backend.scans.Load())
	code, ok := h.store.CurrencyCode.Get()
	require.True(t, ok)
	assert.Equal(t, backend.CurrencyCode("EUR"), code)
	assert.True(t, h.manager.ReadyFor(cfg(descA, "EUR")))
	assert.False(t, h.manager.ReadyFor(cfg(descA, "USD")))

	h.manager.StopRateRefresh()
}

func TestNewManagerRequiresCollaborators(t *testing.T) {
	_, err := NewManager(Options{})
	assert.Error(t, err)
}
