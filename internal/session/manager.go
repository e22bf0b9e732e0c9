// Package session brings up, reuses and replaces the POS session held in the
// state store.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jsarenik/btcpos/internal/backend"
	"github.com/jsarenik/btcpos/internal/logging"
	"github.com/jsarenik/btcpos/internal/posconfig"
	"github.com/jsarenik/btcpos/internal/state"
)

// ErrSuperseded is returned by a bring-up whose wallet is no longer the one
// most recently requested. Nothing is published in that case.
var ErrSuperseded = errors.New("session bring-up superseded by a newer configuration")

// SecretStore loads or creates the swap secret for a wallet identifier. The
// secret must be durable before it is returned.
type SecretStore interface {
	GetOrCreate(ctx context.Context, walletID string) (string, error)
}

// Settings are the terminal-wide parameters of every session.
type Settings struct {
	Network         backend.Network
	EsploraURL      string
	ReferralTag     string
	RefreshInterval time.Duration
}

// Options wire a Manager to its collaborators.
type Options struct {
	Settings Settings
	Backend  backend.Backend
	Secrets  SecretStore
	// NewPriceFetcher builds the fetcher for a session. It is called on
	// bring-up and when the currency changes.
	NewPriceFetcher func() (backend.PriceFetcher, error)
	Store           *state.Store
	// Context bounds the rate refresh loops. Nil uses context.Background.
	Context context.Context
}

// Manager decides whether a configuration can reuse the held session or
// needs a new one, and publishes the result into the store.
type Manager struct {
	settings   Settings
	backend    backend.Backend
	secrets    SecretStore
	newFetcher func() (backend.PriceFetcher, error)
	store      *state.Store
	refresher  *RateRefresher
	log        zerolog.Logger

	group singleflight.Group

	// mu guards the latest request and serializes publication into the
	// store. wanted is the wallet id of requested, empty when requested
	// could not be served.
	mu             sync.Mutex
	requested      posconfig.Config
	wanted         string
	wantedCurrency backend.CurrencyCode
}

// NewManager validates opts and returns a Manager.
func NewManager(opts Options) (*Manager, error) {
	switch {
	case opts.Backend == nil:
		return nil, errors.New("session: backend is required")
	case opts.Secrets == nil:
		return nil, errors.New("session: secret store is required")
	case opts.NewPriceFetcher == nil:
		return nil, errors.New("session: price fetcher factory is required")
	case opts.Store == nil:
		return nil, errors.New("session: store is required")
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return &Manager{
		settings:   opts.Settings,
		backend:    opts.Backend,
		secrets:    opts.Secrets,
		newFetcher: opts.NewPriceFetcher,
		store:      opts.Store,
		refresher:  NewRateRefresher(ctx, opts.Store, opts.Settings.RefreshInterval),
		log:        logging.WithComponent("session"),
	}, nil
}

// Store returns the store the manager publishes into.
func (m *Manager) Store() *state.Store { return m.store }

// StopRateRefresh freezes the exchange rate.
func (m *Manager) StopRateRefresh() { m.refresher.Stop() }

// RefreshRunning reports whether the rate refresh loop is active.
func (m *Manager) RefreshRunning() bool { return m.refresher.Running() }

// Network returns the network sessions are built for.
func (m *Manager) Network() backend.Network { return m.settings.Network }

// CheckDescriptor constructs a wallet for descriptor without touching the
// store. It reports backend.ErrNetworkMismatch for a descriptor of another
// network.
func (m *Manager) CheckDescriptor(descriptor string) error {
	if _, err := m.backend.NewWallet(m.settings.Network, descriptor); err != nil {
		return fmt.Errorf("construct wallet: %w", err)
	}
	return nil
}

// EnsureSession makes the store hold a ready session for cfg.
//
// When the held wallet has the same identifier as cfg's descriptor, the
// wallet, chain client and swap session are reused without any network
// call; only the currency is updated if it changed. Otherwise the session is
// rebuilt and replaces the held one entirely. Concurrent calls for one
// wallet share a single bring-up.
func (m *Manager) EnsureSession(ctx context.Context, cfg posconfig.Config) error {
	currency, err := backend.ParseCurrencyCode(cfg.Currency)
	if err != nil {
		m.abandon(cfg)
		return fmt.Errorf("currency: %w", err)
	}
	wallet, err := m.backend.NewWallet(m.settings.Network, cfg.Descriptor)
	if err != nil {
		m.abandon(cfg)
		return fmt.Errorf("construct wallet: %w", err)
	}
	id := wallet.Identifier()

	m.mu.Lock()
	m.requested = cfg
	m.wanted = id
	m.wantedCurrency = currency
	reused, err := m.reuseLocked(id, currency)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if reused {
		m.log.Debug().Str("wallet", id).Str("currency", string(currency)).Msg("session reused")
		m.refresher.Start()
		return nil
	}

	_, err, shared := m.group.Do(id, func() (any, error) {
		return nil, m.bringUp(ctx, wallet)
	})
	if err != nil {
		return err
	}
	if shared {
		// Another caller built the session; align the currency with the
		// latest request.
		m.mu.Lock()
		if m.wanted != id {
			m.mu.Unlock()
			return ErrSuperseded
		}
		_, err = m.reuseLocked(id, m.wantedCurrency)
		m.mu.Unlock()
		if err != nil {
			return err
		}
		m.refresher.Start()
	}
	return nil
}

// reuseLocked reports whether the held session belongs to walletID and, if
// so, brings its currency in line. Callers hold m.mu.
func (m *Manager) reuseLocked(walletID string, currency backend.CurrencyCode) (bool, error) {
	if !m.store.HasSession() {
		return false, nil
	}
	held, _ := m.store.Wallet.Get()
	if held == nil || held.Identifier() != walletID {
		return false, nil
	}
	if code, ok := m.store.CurrencyCode.Get(); !ok || code != currency {
		fetcher, err := m.newFetcher()
		if err != nil {
			return false, fmt.Errorf("construct price fetcher: %w", err)
		}
		m.store.ExchangeRate.Clear()
		m.store.PricesFetcher.Set(fetcher)
		m.store.CurrencyCode.Set(currency)
	}
	if !m.store.IsReady() {
		m.store.Ready.Set(true)
	}
	return true, nil
}

// ReadyFor reports whether the store holds a ready session for cfg. Only the
// latest configuration passed to EnsureSession can be ready.
func (m *Manager) ReadyFor(cfg posconfig.Config) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wanted == "" || m.requested != cfg || !m.store.IsReady() {
		return false
	}
	held, _ := m.store.Wallet.Get()
	if held == nil || held.Identifier() != m.wanted {
		return false
	}
	code, ok := m.store.CurrencyCode.Get()
	return ok && code == m.wantedCurrency
}

// abandon records cfg as the latest request although no session can be built
// for it. A held session is torn down so nothing can charge into it, and
// in-flight bring-ups become superseded.
func (m *Manager) abandon(cfg posconfig.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requested = cfg
	m.wanted = ""
	m.wantedCurrency = ""
	if m.store.HasSession() || m.store.IsReady() {
		m.refresher.Stop()
		m.store.Reset()
		m.log.Info().Msg("session dropped for unusable configuration")
	}
}

func (m *Manager) bringUp(ctx context.Context, wallet backend.Wallet) error {
	id := wallet.Identifier()
	log := m.log.With().Str("wallet", id).Str("network", string(m.settings.Network)).Logger()

	// A different wallet is being replaced: it must not stay usable while
	// the new one is built.
	m.mu.Lock()
	if m.store.HasSession() {
		m.refresher.Stop()
		m.store.Reset()
		log.Info().Msg("replacing session")
	}
	m.mu.Unlock()

	start := time.Now()
	currency, err := m.build(ctx, wallet)
	if err != nil {
		if !errors.Is(err, ErrSuperseded) {
			log.Error().Err(err).Msg("session bring-up failed")
		}
		return err
	}
	log.Info().Dur("took", time.Since(start)).Str("currency", string(currency)).Msg("session ready")
	m.refresher.Start()
	return nil
}

// build constructs the session for wallet and publishes it with the currency
// of the latest request, which must still be for this wallet.
func (m *Manager) build(ctx context.Context, wallet backend.Wallet) (backend.CurrencyCode, error) {
	id := wallet.Identifier()

	chain, err := m.backend.NewChainClient(m.settings.Network, m.settings.EsploraURL)
	if err != nil {
		return "", fmt.Errorf("construct chain client: %w", err)
	}
	update, err := chain.FullScan(ctx, wallet)
	if err != nil {
		return "", fmt.Errorf("full scan: %w", err)
	}
	if err := wallet.ApplyUpdate(update); err != nil {
		return "", fmt.Errorf("apply update: %w", err)
	}
	secret, err := m.secrets.GetOrCreate(ctx, id)
	if err != nil {
		return "", fmt.Errorf("swap secret: %w", err)
	}
	swap, err := m.backend.NewSwapSessionBuilder(m.settings.Network, chain).
		WithSecret(secret).
		WithReferral(m.settings.ReferralTag).
		Build(ctx)
	if err != nil {
		return "", fmt.Errorf("build swap session: %w", err)
	}
	fetcher, err := m.newFetcher()
	if err != nil {
		return "", fmt.Errorf("construct price fetcher: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wanted != id {
		return "", ErrSuperseded
	}
	m.store.Wallet.Set(wallet)
	m.store.ChainClient.Set(chain)
	m.store.SwapSession.Set(swap)
	m.store.PricesFetcher.Set(fetcher)
	m.store.CurrencyCode.Set(m.wantedCurrency)
	m.store.ExchangeRate.Clear()
	m.store.Ready.Set(true)
	return m.wantedCurrency, nil
}
