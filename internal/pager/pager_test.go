package pager

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/jsarenik/btcpos/internal/amount"
	"github.com/jsarenik/btcpos/internal/posconfig"
)

var (
	testConfig = posconfig.Config{
		Descriptor:       "ct(slip77(ab12),elwpkh(tpubD6NzVbkrYhZ4/<0;1>/*))",
		Currency:         "USD",
		ShowSettingsGear: true,
		ShowDescription:  true,
	}
	rate = decimal.NewFromInt(50000)
)

func mustEffects(t *testing.T, got, want []Effect) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("effects mismatch (-want +got):\n%s", diff)
	}
}

func enterTestPOS(t *testing.T) POS {
	t.Helper()
	s, _ := Start(posconfig.Encode(testConfig))
	pos, ok := s.(POS)
	if !ok {
		t.Fatalf("Start = %T, want POS", s)
	}
	return pos
}

func typeAmount(t *testing.T, s State, keys string) State {
	t.Helper()
	for _, k := range keys {
		s, _ = Transition(s, KeyPressed{Key: k})
	}
	return s
}

func TestStart_EmptyFragmentShowsSetup(t *testing.T) {
	for _, fragment := range []string{"", "#", "  "} {
		s, effects := Start(fragment)
		if s.Page() != PageSetup {
			t.Fatalf("Start(%q) page = %v, want setup", fragment, s.Page())
		}
		mustEffects(t, effects, []Effect{LoadStoredForm{}})
	}
}

func TestStart_ValidFragmentSubscribesBeforeEnsuringSession(t *testing.T) {
	s, effects := Start("#" + posconfig.Encode(testConfig))
	pos, ok := s.(POS)
	if !ok {
		t.Fatalf("state = %T, want POS", s)
	}
	if diff := cmp.Diff(testConfig, pos.Config); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if pos.Amount != amount.NewState() {
		t.Fatalf("amount = %+v, want fresh state", pos.Amount)
	}
	mustEffects(t, effects, []Effect{Subscribe{}, EnsureSession{Config: testConfig}})
}

func TestStart_InvalidFragmentShowsError(t *testing.T) {
	s, effects := Start("not-a-config")
	e, ok := s.(Error)
	if !ok {
		t.Fatalf("state = %T, want Error", s)
	}
	if e.Message == "" || e.Reason == 0 {
		t.Fatalf("error state = %+v, want message and reason", e)
	}
	if len(effects) != 0 {
		t.Fatalf("effects = %v, want none", effects)
	}
}

func TestFragmentChanged_FromPOSTearsDown(t *testing.T) {
	pos := enterTestPOS(t)
	s, effects := Transition(pos, FragmentChanged{Fragment: ""})
	if s.Page() != PageSetup {
		t.Fatalf("page = %v, want setup", s.Page())
	}
	mustEffects(t, effects, []Effect{StopRateRefresh{}, Unsubscribe{}, LoadStoredForm{}})
}

func TestFragmentChanged_FromReceiveReleasesInvoice(t *testing.T) {
	recv := Receive{Config: testConfig, SwapID: "swap-1"}
	other := testConfig
	other.Currency = "EUR"

	s, effects := Transition(recv, FragmentChanged{Fragment: posconfig.Encode(other)})
	if s.Page() != PagePOS {
		t.Fatalf("page = %v, want pos", s.Page())
	}
	mustEffects(t, effects, []Effect{
		StopRateRefresh{},
		ReleaseInvoice{SwapID: "swap-1"},
		Subscribe{},
		EnsureSession{Config: other},
	})
}

func TestFragmentChanged_ToInvalidFromPOS(t *testing.T) {
	s, effects := Transition(enterTestPOS(t), FragmentChanged{Fragment: "%%%"})
	if s.Page() != PageError {
		t.Fatalf("page = %v, want error", s.Page())
	}
	mustEffects(t, effects, []Effect{StopRateRefresh{}, Unsubscribe{}})
}

func TestSettingsRequested(t *testing.T) {
	s, effects := Transition(enterTestPOS(t), SettingsRequested{})
	if s.Page() != PageSetup {
		t.Fatalf("page = %v, want setup", s.Page())
	}
	mustEffects(t, effects, []Effect{StopRateRefresh{}, Unsubscribe{}, ClearFragment{}, LoadStoredForm{}})

	s, effects = Transition(Error{Message: "bad"}, SettingsRequested{})
	if s.Page() != PageSetup {
		t.Fatalf("page from error = %v, want setup", s.Page())
	}
	mustEffects(t, effects, []Effect{ClearFragment{}, LoadStoredForm{}})
}

func TestSetup_LinkGeneratedThenOpenPOS(t *testing.T) {
	s, effects := Transition(Setup{}, OpenPOS{})
	if s.Page() != PageSetup || len(effects) != 0 {
		t.Fatalf("OpenPOS without link = %v, %v", s, effects)
	}

	link := posconfig.Link("https://pos.example", testConfig)
	s, effects = Transition(Setup{}, LinkGenerated{Config: testConfig, Link: link})
	setup := s.(Setup)
	if setup.Link != link || setup.Config == nil {
		t.Fatalf("setup = %+v", setup)
	}
	mustEffects(t, effects, []Effect{SaveStoredForm{Config: testConfig}})

	s, effects = Transition(s, OpenPOS{})
	if s.Page() != PagePOS {
		t.Fatalf("page = %v, want pos", s.Page())
	}
	mustEffects(t, effects, []Effect{
		SetFragment{Fragment: posconfig.Encode(testConfig)},
		Subscribe{},
		EnsureSession{Config: testConfig},
	})
}

func TestPOS_KeypadEditing(t *testing.T) {
	s := typeAmount(t, enterTestPOS(t), "12.505")
	pos := s.(POS)
	if pos.Amount.Digits != "12.50" {
		t.Fatalf("digits = %q, want 12.50", pos.Amount.Digits)
	}

	s, _ = Transition(s, Backspace{})
	if got := s.(POS).Amount.Digits; got != "12.5" {
		t.Fatalf("after backspace = %q, want 12.5", got)
	}
	s, _ = Transition(s, ClearAmount{})
	if got := s.(POS).Amount.Digits; got != "0" {
		t.Fatalf("after clear = %q, want 0", got)
	}
}

func TestPOS_ToggleMode(t *testing.T) {
	s := typeAmount(t, enterTestPOS(t), "12.50")

	s, _ = Transition(s, ToggleMode{Rate: decimal.Zero})
	if pos := s.(POS); pos.Amount.Mode != amount.Fiat || pos.Notice != NoticeNoRate {
		t.Fatalf("toggle without rate = %+v", pos)
	}

	s, _ = Transition(s, ToggleMode{Rate: rate})
	pos := s.(POS)
	if pos.Amount.Mode != amount.Satoshi || pos.Amount.Digits != "25000" || pos.Notice != "" {
		t.Fatalf("toggle = %+v, want 25000 sats", pos.Amount)
	}
}

func TestPOS_SubmitGuards(t *testing.T) {
	pos := enterTestPOS(t)

	s, effects := Transition(typeAmount(t, pos, "5"), Submit{Rate: rate, Ready: false})
	if s.(POS).Notice != NoticeNotReady || len(effects) != 0 {
		t.Fatalf("submit when not ready = %+v, %v", s, effects)
	}

	s, effects = Transition(pos, Submit{Rate: rate, Ready: true})
	if s.(POS).Notice != NoticeNoAmount || len(effects) != 0 {
		t.Fatalf("submit zero = %+v, %v", s, effects)
	}

	s, effects = Transition(typeAmount(t, pos, "5"), Submit{Rate: decimal.Zero, Ready: true})
	if s.(POS).Notice != NoticeNoRate || len(effects) != 0 {
		t.Fatalf("submit without rate = %+v, %v", s, effects)
	}
}

func TestPOS_SubmitToReceive(t *testing.T) {
	s := typeAmount(t, enterTestPOS(t), "12.50")
	s, _ = Transition(s, DescriptionChanged{Text: " coffee "})

	s, effects := Transition(s, Submit{Rate: rate, Ready: true, Request: 1})
	pos := s.(POS)
	if !pos.Pending || pos.Request != 1 {
		t.Fatalf("pos = %+v, want pending request 1", pos)
	}
	want := amount.Amounts{Fiat: decimal.RequireFromString("12.50"), Sats: 25000, Currency: "USD"}
	mustEffects(t, effects, []Effect{CreateInvoice{Request: 1, Amounts: want, Description: "coffee"}})

	// Keypad is locked while the invoice is created.
	locked, _ := Transition(s, KeyPressed{Key: '9'})
	if locked.(POS).Amount.Digits != "12.50" {
		t.Fatalf("keypad edited while pending")
	}

	s, effects = Transition(s, InvoiceCreated{Request: 1, SwapID: "swap-1", PaymentRequest: "lntb250000n1p"})
	recv, ok := s.(Receive)
	if !ok {
		t.Fatalf("state = %T, want Receive", s)
	}
	if recv.SwapID != "swap-1" || recv.Amounts.Sats != 25000 || recv.Description != "coffee" || recv.Status != StatusWaiting {
		t.Fatalf("receive = %+v", recv)
	}
	mustEffects(t, effects, []Effect{StopRateRefresh{}, Unsubscribe{}, WatchPayment{SwapID: "swap-1"}})
}

func TestPOS_InvoiceFailedKeepsAmount(t *testing.T) {
	s := typeAmount(t, enterTestPOS(t), "7")
	s, _ = Transition(s, Submit{Rate: rate, Ready: true})
	s, effects := Transition(s, InvoiceFailed{Message: "swap service down"})

	pos := s.(POS)
	if pos.Pending || pos.Amount.Digits != "7" {
		t.Fatalf("pos = %+v, want amount retained and not pending", pos)
	}
	if pos.Notice != "Could not create invoice: swap service down" {
		t.Fatalf("notice = %q", pos.Notice)
	}
	if len(effects) != 0 {
		t.Fatalf("effects = %v, want none", effects)
	}
}

func TestPOS_LateInvoiceIsReleased(t *testing.T) {
	s, effects := Transition(enterTestPOS(t), InvoiceCreated{SwapID: "late"})
	if s.Page() != PagePOS {
		t.Fatalf("page = %v, want pos", s.Page())
	}
	mustEffects(t, effects, []Effect{ReleaseInvoice{SwapID: "late"}})
}

func TestPOS_InvoiceForEarlierSubmissionIsReleased(t *testing.T) {
	s := typeAmount(t, enterTestPOS(t), "10")
	s, _ = Transition(s, Submit{Rate: rate, Ready: true, Request: 1})

	// The page is left and re-entered while the first invoice is created.
	s, _ = Transition(s, FragmentChanged{Fragment: posconfig.Encode(testConfig)})
	s = typeAmount(t, s, "20")
	s, _ = Transition(s, Submit{Rate: rate, Ready: true, Request: 2})

	s, effects := Transition(s, InvoiceCreated{Request: 1, SwapID: "swap-for-10", PaymentRequest: "lnbc-for-first"})
	pos, ok := s.(POS)
	if !ok {
		t.Fatalf("state = %T, want POS", s)
	}
	if !pos.Pending || pos.Request != 2 || pos.Submitted.Sats != 40000 {
		t.Fatalf("pos = %+v, want request 2 still pending", pos)
	}
	mustEffects(t, effects, []Effect{ReleaseInvoice{SwapID: "swap-for-10"}})

	s, effects = Transition(s, InvoiceFailed{Request: 1, Message: "late failure"})
	if !s.(POS).Pending || len(effects) != 0 {
		t.Fatalf("failure of request 1 changed request 2: %+v, %v", s, effects)
	}

	s, _ = Transition(s, InvoiceCreated{Request: 2, SwapID: "swap-for-20", PaymentRequest: "lnbc-for-second"})
	recv, ok := s.(Receive)
	if !ok {
		t.Fatalf("state = %T, want Receive", s)
	}
	if recv.SwapID != "swap-for-20" || recv.PaymentRequest != "lnbc-for-second" || recv.Amounts.Sats != 40000 {
		t.Fatalf("receive = %+v", recv)
	}
}

func TestInvoiceCreatedOutsidePOSIsReleased(t *testing.T) {
	recv := Receive{Config: testConfig, SwapID: "shown", Status: StatusWaiting}
	states := []State{Setup{}, recv, Error{Message: "bad"}}
	for _, s := range states {
		next, effects := Transition(s, InvoiceCreated{Request: 3, SwapID: "extra"})
		if next.Page() != s.Page() {
			t.Fatalf("page = %v, want %v", next.Page(), s.Page())
		}
		if r, ok := next.(Receive); ok && r.SwapID != "shown" {
			t.Fatalf("receive switched to %q", r.SwapID)
		}
		mustEffects(t, effects, []Effect{ReleaseInvoice{SwapID: "extra"}})
	}
}

func TestPOS_DescriptionIgnoredWhenHidden(t *testing.T) {
	cfg := testConfig
	cfg.ShowDescription = false
	s, _ := Start(posconfig.Encode(cfg))
	s, _ = Transition(s, DescriptionChanged{Text: "tea"})
	if s.(POS).Description != "" {
		t.Fatalf("description stored while hidden")
	}
}

func TestReceive_StalePaymentResolvedIsIgnored(t *testing.T) {
	recv := Receive{Config: testConfig, SwapID: "swap-2", Status: StatusWaiting}

	s, effects := Transition(recv, PaymentResolved{SwapID: "swap-1", Paid: true})
	if diff := cmp.Diff(State(recv), s); diff != "" {
		t.Fatalf("stale outcome changed state (-want +got):\n%s", diff)
	}
	if len(effects) != 0 {
		t.Fatalf("effects = %v, want none", effects)
	}

	s, _ = Transition(recv, PaymentResolved{SwapID: "swap-2", Paid: true})
	if s.(Receive).Status != StatusPaid {
		t.Fatalf("status = %v, want paid", s.(Receive).Status)
	}
	s, _ = Transition(s, PaymentResolved{SwapID: "swap-2", Paid: false})
	if s.(Receive).Status != StatusPaid {
		t.Fatalf("resolved status changed again")
	}

	s, _ = Transition(recv, PaymentResolved{SwapID: "swap-2", Paid: false})
	if s.(Receive).Status != StatusFailed {
		t.Fatalf("status = %v, want failed", s.(Receive).Status)
	}
}

func TestReceive_PaymentResolvedAfterLeavingIsIgnored(t *testing.T) {
	pos := enterTestPOS(t)
	s, effects := Transition(pos, PaymentResolved{SwapID: "swap-1", Paid: true})
	if diff := cmp.Diff(State(pos), s); diff != "" || len(effects) != 0 {
		t.Fatalf("outcome affected POS page: %s %v", diff, effects)
	}
}

func TestReceive_BackReturnsToFreshPOS(t *testing.T) {
	recv := Receive{Config: testConfig, SwapID: "swap-1", Status: StatusPaid}
	s, effects := Transition(recv, Back{})
	pos, ok := s.(POS)
	if !ok {
		t.Fatalf("state = %T, want POS", s)
	}
	if pos.Amount != amount.NewState() || pos.Config != testConfig {
		t.Fatalf("pos = %+v", pos)
	}
	mustEffects(t, effects, []Effect{ReleaseInvoice{SwapID: "swap-1"}, Subscribe{}, EnsureSession{Config: testConfig}})
}

func TestSessionFailedShowsNotice(t *testing.T) {
	s, _ := Transition(enterTestPOS(t), SessionFailed{Message: "esplora unreachable"})
	if got := s.(POS).Notice; got != "Session failed: esplora unreachable" {
		t.Fatalf("notice = %q", got)
	}
}
