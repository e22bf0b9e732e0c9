package state

import (
	"github.com/shopspring/decimal"

	"github.com/jsarenik/btcpos/internal/backend"
)

// Store holds the single active POS session. Handles are published by the
// session manager; Ready is always the last field set.
type Store struct {
	Wallet        Field[backend.Wallet]
	ChainClient   Field[backend.ChainClient]
	SwapSession   Field[backend.SwapSession]
	PricesFetcher Field[backend.PriceFetcher]
	CurrencyCode  Field[backend.CurrencyCode]
	ExchangeRate  Field[decimal.Decimal]
	Ready         Field[bool]
}

// Snapshot is a copy of the store suitable for rendering.
type Snapshot struct {
	WalletID     string
	HasSession   bool
	Currency     backend.CurrencyCode
	ExchangeRate decimal.Decimal
	HasRate      bool
	Ready        bool
}

// Reset clears every field, readiness first, so subscribers never observe a
// ready store with missing handles.
func (s *Store) Reset() {
	s.Ready.Set(false)
	s.ExchangeRate.Clear()
	s.CurrencyCode.Clear()
	s.PricesFetcher.Clear()
	s.SwapSession.Clear()
	s.ChainClient.Clear()
	s.Wallet.Clear()
}

// IsReady reports whether a complete session is published.
func (s *Store) IsReady() bool {
	ready, ok := s.Ready.Get()
	return ok && ready
}

// HasSession reports whether wallet, chain client and swap session are all
// present.
func (s *Store) HasSession() bool {
	_, w := s.Wallet.Get()
	_, c := s.ChainClient.Get()
	_, sw := s.SwapSession.Get()
	return w && c && sw
}

// Rate returns the current exchange rate, if any.
func (s *Store) Rate() (decimal.Decimal, bool) {
	rate, ok := s.ExchangeRate.Get()
	if !ok || !rate.IsPositive() {
		return decimal.Zero, false
	}
	return rate, true
}

// Snapshot returns a copy of the current store values.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{HasSession: s.HasSession(), Ready: s.IsReady()}
	if w, ok := s.Wallet.Get(); ok && w != nil {
		snap.WalletID = w.Identifier()
	}
	if code, ok := s.CurrencyCode.Get(); ok {
		snap.Currency = code
	}
	snap.ExchangeRate, snap.HasRate = s.Rate()
	return snap
}
