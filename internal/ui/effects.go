package ui

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/jsarenik/btcpos/internal/backend"
	"github.com/jsarenik/btcpos/internal/pager"
	"github.com/jsarenik/btcpos/internal/payment"
	"github.com/jsarenik/btcpos/internal/posconfig"
	"github.com/jsarenik/btcpos/internal/prefs"
	"github.com/jsarenik/btcpos/internal/session"
	"github.com/jsarenik/btcpos/internal/state"
)

// shared holds the model state that must survive Bubble Tea's value copies:
// store subscriptions, invoices awaiting a watcher and the notify channel
// the store callbacks poke.
type shared struct {
	notify chan struct{}

	mu       sync.Mutex
	unsubs   []func()
	invoices map[string]backend.Invoice
	watching string
	requests uint64
}

func newShared() *shared {
	return &shared{
		notify:   make(chan struct{}, 1),
		invoices: make(map[string]backend.Invoice),
	}
}

// poke never blocks; store setters may run on the rate refresh goroutine,
// which the UI stops synchronously.
func (s *shared) poke() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *shared) subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.unsubs) > 0
}

func (s *shared) addUnsub(fns ...func()) {
	s.mu.Lock()
	s.unsubs = append(s.unsubs, fns...)
	s.mu.Unlock()
}

func (s *shared) unsubscribe() {
	s.mu.Lock()
	fns := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// nextRequest numbers invoice submissions so answers to earlier ones can be
// told apart.
func (s *shared) nextRequest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	return s.requests
}

func (s *shared) hold(inv backend.Invoice) {
	s.mu.Lock()
	s.invoices[inv.SwapID()] = inv
	s.mu.Unlock()
}

func (s *shared) watch(swapID string) backend.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv := s.invoices[swapID]
	if inv != nil {
		s.watching = swapID
	}
	return inv
}

// release drops the invoice and reports whether it was being watched.
func (s *shared) release(swapID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.invoices, swapID)
	if s.watching == swapID {
		s.watching = ""
		return true
	}
	return false
}

// Messages

type storeChangedMsg struct{}

type locationMsg struct {
	fragment string
	ok       bool
}

type sessionMsg struct {
	config posconfig.Config
	err    error
}

type invoiceMsg struct {
	request uint64
	invoice backend.Invoice
	err     error
}

type paymentMsg payment.Outcome

// Commands

func waitForStore(notify <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-notify
		return storeChangedMsg{}
	}
}

func waitForLocation(changes <-chan string) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		fragment, ok := <-changes
		return locationMsg{fragment: fragment, ok: ok}
	}
}

func ensureSessionCmd(ctx context.Context, manager *session.Manager, cfg posconfig.Config) tea.Cmd {
	return func() tea.Msg {
		return sessionMsg{config: cfg, err: manager.EnsureSession(ctx, cfg)}
	}
}

func createInvoiceCmd(ctx context.Context, store *state.Store, req pager.CreateInvoice) tea.Cmd {
	return func() tea.Msg {
		msg := invoiceMsg{request: req.Request}
		swap, ok := store.SwapSession.Get()
		if !ok || swap == nil {
			msg.err = errors.New("no swap session")
			return msg
		}
		wallet, ok := store.Wallet.Get()
		if !ok || wallet == nil {
			msg.err = errors.New("no wallet")
			return msg
		}
		address, err := wallet.DeriveAddress()
		if err != nil {
			msg.err = fmt.Errorf("derive address: %w", err)
			return msg
		}
		msg.invoice, msg.err = swap.CreateInvoice(ctx, req.Amounts.Sats, req.Description, address)
		return msg
	}
}

func waitForPayment(task *payment.Task) tea.Cmd {
	return func() tea.Msg {
		return paymentMsg(<-task.Done())
	}
}

// apply performs pager effects in order and returns the commands for the
// asynchronous ones.
func (m *Model) apply(effects []pager.Effect) tea.Cmd {
	var cmds []tea.Cmd
	for _, eff := range effects {
		switch e := eff.(type) {
		case pager.EnsureSession:
			m.syncing = true
			cmds = append(cmds, ensureSessionCmd(m.ctx, m.manager, e.Config))
		case pager.StopRateRefresh:
			m.manager.StopRateRefresh()
		case pager.Subscribe:
			m.subscribe()
		case pager.Unsubscribe:
			m.shared.unsubscribe()
		case pager.ClearFragment:
			m.writeLocation("")
		case pager.SetFragment:
			m.writeLocation(e.Fragment)
		case pager.CreateInvoice:
			cmds = append(cmds, createInvoiceCmd(m.ctx, m.store, e))
		case pager.WatchPayment:
			inv := m.shared.watch(e.SwapID)
			if inv == nil {
				m.log.Warn().Str("swap_id", e.SwapID).Msg("no invoice to watch")
				continue
			}
			cmds = append(cmds, waitForPayment(m.watcher.Watch(m.ctx, inv)))
		case pager.ReleaseInvoice:
			if m.shared.release(e.SwapID) {
				m.watcher.Abandon()
			}
		case pager.LoadStoredForm:
			m.loadStoredForm()
		case pager.SaveStoredForm:
			if err := prefs.SaveForm(m.prefsPath, prefs.FormFromConfig(e.Config)); err != nil {
				m.log.Warn().Err(err).Msg("save form")
				m.flash = "Could not save settings: " + err.Error()
			}
		}
	}
	return tea.Batch(cmds...)
}

// subscribe listens for readiness, rate and currency changes, then takes a
// snapshot so a session that became ready earlier is not missed.
func (m *Model) subscribe() {
	if m.shared.subscribed() {
		return
	}
	sh := m.shared
	sh.addUnsub(
		m.store.Ready.Subscribe(func(bool, bool) { sh.poke() }),
		m.store.ExchangeRate.Subscribe(func(decimal.Decimal, bool) { sh.poke() }),
		m.store.CurrencyCode.Subscribe(func(backend.CurrencyCode, bool) { sh.poke() }),
	)
	m.snapshot = m.store.Snapshot()
}

func (m *Model) writeLocation(fragment string) {
	if m.location == nil {
		return
	}
	if err := m.location.Write(fragment); err != nil {
		m.log.Warn().Err(err).Msg("write location")
	}
}

func (m *Model) loadStoredForm() {
	p, err := prefs.Load(m.prefsPath)
	if err != nil {
		m.log.Warn().Err(err).Msg("load prefs")
	}
	if !p.Form.Empty() {
		m.setup.fill(p.Form)
	}
}

func (m *Model) handleSession(msg sessionMsg) tea.Cmd {
	m.syncing = false
	m.snapshot = m.store.Snapshot()
	if msg.err == nil {
		m.log.Info().Str("wallet", m.snapshot.WalletID).Msg("session ready")
		return nil
	}
	if errors.Is(msg.err, session.ErrSuperseded) {
		return nil
	}
	m.log.Error().Err(msg.err).Msg("session bring-up failed")
	pos, ok := m.page.(pager.POS)
	if !ok || pos.Config != msg.config {
		return nil
	}
	text := msg.err.Error()
	if errors.Is(msg.err, backend.ErrNetworkMismatch) {
		text = fmt.Sprintf("descriptor does not belong to %s", m.manager.Network())
	}
	return m.dispatch(pager.SessionFailed{Message: text})
}

func (m *Model) handleInvoice(msg invoiceMsg) tea.Cmd {
	if msg.err != nil {
		m.log.Error().Err(msg.err).Msg("create invoice")
		return m.dispatch(pager.InvoiceFailed{Request: msg.request, Message: msg.err.Error()})
	}
	m.shared.hold(msg.invoice)
	m.log.Info().Str("swap_id", msg.invoice.SwapID()).Msg("invoice created")
	return m.dispatch(pager.InvoiceCreated{
		Request:        msg.request,
		SwapID:         msg.invoice.SwapID(),
		PaymentRequest: msg.invoice.PaymentRequest(),
	})
}

func (m *Model) handlePayment(msg paymentMsg) tea.Cmd {
	outcome := payment.Outcome(msg)
	if !m.watcher.IsCurrent(outcome) {
		return nil
	}
	return m.dispatch(pager.PaymentResolved{SwapID: outcome.SwapID, Paid: outcome.Paid})
}
