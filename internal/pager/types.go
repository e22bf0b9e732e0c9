// Package pager is the page state machine of the terminal. Transition is a
// pure function: it returns the next state and the effects the caller must
// perform, and never does I/O itself.
package pager

import (
	"github.com/shopspring/decimal"

	"github.com/jsarenik/btcpos/internal/amount"
	"github.com/jsarenik/btcpos/internal/posconfig"
)

// Page identifies the kind of a State.
type Page int

const (
	PageSetup Page = iota
	PagePOS
	PageReceive
	PageError
)

func (p Page) String() string {
	switch p {
	case PagePOS:
		return "pos"
	case PageReceive:
		return "receive"
	case PageError:
		return "error"
	default:
		return "setup"
	}
}

// State is one of Setup, POS, Receive or Error.
type State interface {
	Page() Page
}

// Setup is the configuration form. Link is set once a link was generated.
type Setup struct {
	Config *posconfig.Config
	Link   string
}

// POS is the keypad page.
type POS struct {
	Config      posconfig.Config
	Amount      amount.State
	Description string
	Notice      string
	// Pending is set while an invoice is being created; Submitted holds the
	// amounts it was requested for and Request identifies the submission.
	Pending   bool
	Submitted amount.Amounts
	Request   uint64
}

// PaymentStatus is the state of the invoice shown on the Receive page.
type PaymentStatus int

const (
	StatusWaiting PaymentStatus = iota
	StatusPaid
	StatusFailed
)

func (s PaymentStatus) String() string {
	switch s {
	case StatusPaid:
		return "paid"
	case StatusFailed:
		return "failed"
	default:
		return "waiting"
	}
}

// Receive shows an outstanding invoice.
type Receive struct {
	Config         posconfig.Config
	SwapID         string
	PaymentRequest string
	Amounts        amount.Amounts
	Description    string
	Status         PaymentStatus
}

// Error reports a configuration that could not be decoded.
type Error struct {
	Message string
	Reason  posconfig.Reason
}

func (Setup) Page() Page   { return PageSetup }
func (POS) Page() Page     { return PagePOS }
func (Receive) Page() Page { return PageReceive }
func (Error) Page() Page   { return PageError }

// Event is an input to Transition.
type Event interface{ isEvent() }

type (
	// FragmentChanged reports the current configuration fragment, including
	// external navigation and the initial value at start-up.
	FragmentChanged struct{ Fragment string }
	// SettingsRequested leaves POS (or Error) for the Setup form.
	SettingsRequested struct{}
	// LinkGenerated records a link produced by the Setup form.
	LinkGenerated struct {
		Config posconfig.Config
		Link   string
	}
	// OpenPOS navigates from Setup to the generated configuration.
	OpenPOS struct{}

	KeyPressed         struct{ Key rune }
	Backspace          struct{}
	ClearAmount        struct{}
	DescriptionChanged struct{ Text string }
	// ToggleMode switches between fiat and sats at the current rate.
	ToggleMode struct{ Rate decimal.Decimal }
	// Submit requests an invoice for the typed amount. Ready reports whether
	// the session can create invoices for the page's configuration. Request
	// must be unique for the life of the terminal.
	Submit struct {
		Rate    decimal.Decimal
		Ready   bool
		Request uint64
	}
	// SessionFailed reports a failed bring-up while POS is shown.
	SessionFailed struct{ Message string }

	// InvoiceCreated and InvoiceFailed answer the submission with Request.
	InvoiceCreated struct {
		Request        uint64
		SwapID         string
		PaymentRequest string
	}
	InvoiceFailed struct {
		Request uint64
		Message string
	}

	// Back returns from Receive to a fresh POS page.
	Back struct{}
	// PaymentResolved is the outcome of watching the invoice with SwapID.
	PaymentResolved struct {
		SwapID string
		Paid   bool
	}
)

func (FragmentChanged) isEvent()    {}
func (SettingsRequested) isEvent()  {}
func (LinkGenerated) isEvent()      {}
func (OpenPOS) isEvent()            {}
func (KeyPressed) isEvent()         {}
func (Backspace) isEvent()          {}
func (ClearAmount) isEvent()        {}
func (DescriptionChanged) isEvent() {}
func (ToggleMode) isEvent()         {}
func (Submit) isEvent()             {}
func (SessionFailed) isEvent()      {}
func (InvoiceCreated) isEvent()     {}
func (InvoiceFailed) isEvent()      {}
func (Back) isEvent()               {}
func (PaymentResolved) isEvent()    {}

// Effect is work the caller performs after a transition, in order.
type Effect interface{ isEffect() }

type (
	EnsureSession   struct{ Config posconfig.Config }
	StopRateRefresh struct{}
	// Subscribe starts listening for session readiness and rate changes.
	// The caller checks readiness right after subscribing.
	Subscribe   struct{}
	Unsubscribe struct{}
	// ClearFragment and SetFragment update the persisted location.
	ClearFragment struct{}
	SetFragment   struct{ Fragment string }
	CreateInvoice struct {
		Request     uint64
		Amounts     amount.Amounts
		Description string
	}
	WatchPayment   struct{ SwapID string }
	ReleaseInvoice struct{ SwapID string }
	LoadStoredForm struct{}
	SaveStoredForm struct{ Config posconfig.Config }
)

func (EnsureSession) isEffect()   {}
func (StopRateRefresh) isEffect() {}
func (Subscribe) isEffect()       {}
func (Unsubscribe) isEffect()     {}
func (ClearFragment) isEffect()   {}
func (SetFragment) isEffect()     {}
func (CreateInvoice) isEffect()   {}
func (WatchPayment) isEffect()    {}
func (ReleaseInvoice) isEffect()  {}
func (LoadStoredForm) isEffect()  {}
func (SaveStoredForm) isEffect()  {}
