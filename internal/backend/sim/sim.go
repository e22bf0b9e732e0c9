// Package sim is an in-process implementation of the backend collaborators.
// Wallet identifiers are derived from the normalized descriptor, invoices are
// settled after a configurable delay, and nothing leaves the machine.
package sim

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jsarenik/btcpos/internal/backend"
	"github.com/jsarenik/btcpos/internal/logging"
)

// ErrSwapFailed is reported by AwaitCompletion when the backend is set to
// fail invoices.
var ErrSwapFailed = errors.New("swap failed or expired")

const defaultSettleAfter = 8 * time.Second

// Options tune the simulated swap service.
type Options struct {
	SettleAfter  time.Duration // zero uses 8s
	FailInvoices bool
}

// Backend hands out simulated collaborators and counts the work they do.
type Backend struct {
	opts Options
	log  zerolog.Logger

	scans    atomic.Int64
	wallets  atomic.Int64
	sessions atomic.Int64
	invoices atomic.Int64
}

var _ backend.Backend = (*Backend)(nil)

// New returns a Backend configured by opts.
func New(opts Options) *Backend {
	if opts.SettleAfter <= 0 {
		opts.SettleAfter = defaultSettleAfter
	}
	return &Backend{opts: opts, log: logging.WithComponent("sim")}
}

// Scans returns the number of full scans performed.
func (b *Backend) Scans() int64 { return b.scans.Load() }

// Wallets returns the number of wallet handles constructed.
func (b *Backend) Wallets() int64 { return b.wallets.Load() }

// Sessions returns the number of swap sessions built.
func (b *Backend) Sessions() int64 { return b.sessions.Load() }

// Invoices returns the number of invoices created.
func (b *Backend) Invoices() int64 { return b.invoices.Load() }

// NewChainClient validates the Esplora endpoint and returns a client for it.
func (b *Backend) NewChainClient(network backend.Network, esploraURL string) (backend.ChainClient, error) {
	u, err := url.Parse(strings.TrimSpace(esploraURL))
	if err != nil {
		return nil, fmt.Errorf("parse esplora url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("esplora url %q must be http or https", esploraURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("esplora url %q has no host", esploraURL)
	}
	return &chainClient{backend: b, network: network, endpoint: u.String()}, nil
}

// NewWallet builds a watch-only wallet. The descriptor's key prefix decides
// its network: tpub keys are test networks, xpub keys are mainnet.
func (b *Backend) NewWallet(network backend.Network, descriptor string) (backend.Wallet, error) {
	normalized := NormalizeDescriptor(descriptor)
	if len(normalized) < 10 {
		return nil, fmt.Errorf("descriptor %q is too short", descriptor)
	}
	switch {
	case strings.Contains(normalized, "tpub") && network.Mainnet():
		return nil, fmt.Errorf("%w: testnet key on %s", backend.ErrNetworkMismatch, network)
	case strings.Contains(normalized, "xpub") && !network.Mainnet():
		return nil, fmt.Errorf("%w: mainnet key on %s", backend.ErrNetworkMismatch, network)
	}
	b.wallets.Add(1)
	sum := sha256.Sum256([]byte(normalized))
	return &wallet{id: hex.EncodeToString(sum[:16]), network: network}, nil
}

// NewSwapSessionBuilder returns a builder bound to chain.
func (b *Backend) NewSwapSessionBuilder(network backend.Network, chain backend.ChainClient) backend.SwapSessionBuilder {
	return &builder{backend: b, network: network, chain: chain}
}

// NormalizeDescriptor drops whitespace and a trailing "#checksum" so that
// cosmetic variants of one descriptor map to the same wallet.
func NormalizeDescriptor(descriptor string) string {
	var sb strings.Builder
	for _, r := range descriptor {
		if !unicode.IsSpace(r) {
			sb.WriteRune(r)
		}
	}
	out := sb.String()
	if i := strings.LastIndexByte(out, '#'); i >= 0 && len(out)-i-1 == 8 {
		out = out[:i]
	}
	return out
}

type chainClient struct {
	backend  *Backend
	network  backend.Network
	endpoint string
	tip      atomic.Uint32
}

func (c *chainClient) FullScan(ctx context.Context, w backend.Wallet) (backend.Update, error) {
	if err := ctx.Err(); err != nil {
		return backend.Update{}, err
	}
	if w == nil {
		return backend.Update{}, errors.New("full scan: nil wallet")
	}
	if w.Network() != c.network {
		return backend.Update{}, fmt.Errorf("full scan: %w", backend.ErrNetworkMismatch)
	}
	c.backend.scans.Add(1)
	tip := c.tip.Add(1)
	c.backend.log.Debug().Str("wallet", w.Identifier()).Str("endpoint", c.endpoint).Uint32("tip", tip).Msg("full scan")
	return backend.Update{Tip: tip, Payload: []byte(w.Identifier())}, nil
}

type wallet struct {
	id      string
	network backend.Network

	mu     sync.Mutex
	tip    uint32
	next   uint32
	synced bool
}

func (w *wallet) Identifier() string       { return w.id }
func (w *wallet) Network() backend.Network { return w.network }

func (w *wallet) ApplyUpdate(u backend.Update) error {
	if string(u.Payload) != w.id {
		return errors.New("apply update: update belongs to another wallet")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if u.Tip > w.tip {
		w.tip = u.Tip
	}
	w.synced = true
	return nil
}

func (w *wallet) DeriveAddress() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prefix := "lq1qq"
	if !w.network.Mainnet() {
		prefix = "tlq1qq"
	}
	addr := fmt.Sprintf("%s%s%06d", prefix, w.id[:20], w.next)
	w.next++
	return addr, nil
}

type builder struct {
	backend  *Backend
	network  backend.Network
	chain    backend.ChainClient
	secret   string
	referral string
}

func (b *builder) WithSecret(secret string) backend.SwapSessionBuilder {
	b.secret = secret
	return b
}

func (b *builder) WithReferral(tag string) backend.SwapSessionBuilder {
	b.referral = tag
	return b
}

func (b *builder) Build(ctx context.Context) (backend.SwapSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.chain == nil {
		return nil, errors.New("build swap session: chain client required")
	}
	if strings.TrimSpace(b.secret) == "" {
		return nil, errors.New("build swap session: secret required")
	}
	b.backend.sessions.Add(1)
	return &session{backend: b.backend, network: b.network, referral: b.referral}, nil
}

type session struct {
	backend  *Backend
	network  backend.Network
	referral string
}

func (s *session) CreateInvoice(ctx context.Context, amountSats int64, description, claimAddress string) (backend.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amountSats <= 0 {
		return nil, fmt.Errorf("create invoice: amount must be positive, got %d", amountSats)
	}
	if strings.TrimSpace(claimAddress) == "" {
		return nil, errors.New("create invoice: claim address required")
	}
	id := uuid.NewString()
	hrp := "lnbc"
	if !s.network.Mainnet() {
		hrp = "lntb"
	}
	// One satoshi is ten nano-coins in the payment request amount.
	req := fmt.Sprintf("%s%dn1p%s", hrp, amountSats*10, strings.ReplaceAll(id, "-", ""))
	s.backend.invoices.Add(1)
	s.backend.log.Info().
		Str("swap_id", id).
		Int64("sats", amountSats).
		Str("referral", s.referral).
		Str("description", description).
		Msg("invoice created")
	return &invoice{
		id:          id,
		request:     req,
		settleAfter: s.backend.opts.SettleAfter,
		fail:        s.backend.opts.FailInvoices,
	}, nil
}

type invoice struct {
	id          string
	request     string
	settleAfter time.Duration
	fail        bool
}

func (i *invoice) PaymentRequest() string { return i.request }
func (i *invoice) SwapID() string         { return i.id }

func (i *invoice) AwaitCompletion(ctx context.Context) (bool, error) {
	timer := time.NewTimer(i.settleAfter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-timer.C:
	}
	if i.fail {
		return false, ErrSwapFailed
	}
	return true, nil
}
