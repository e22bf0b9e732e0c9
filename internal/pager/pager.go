package pager

import (
	"errors"
	"strings"

	"github.com/jsarenik/btcpos/internal/amount"
	"github.com/jsarenik/btcpos/internal/posconfig"
)

// Notices shown on the POS page.
const (
	NoticeNotReady    = "Session is not ready yet"
	NoticeNoAmount    = "Enter an amount"
	NoticeNoRate      = "Exchange rate unavailable"
	noticeInvoiceFail = "Could not create invoice: "
	noticeSessionFail = "Session failed: "
)

// Start returns the state for the fragment present at start-up.
func Start(fragment string) (State, []Effect) {
	return enter(fragment)
}

// Transition applies ev to s. Events that do not apply to the current state
// leave it unchanged and produce no effects.
func Transition(s State, ev Event) (State, []Effect) {
	if fc, ok := ev.(FragmentChanged); ok {
		next, effects := enter(fc.Fragment)
		return next, append(leave(s), effects...)
	}

	if ic, ok := ev.(InvoiceCreated); ok {
		if _, onPOS := s.(POS); !onPOS {
			// Nobody is waiting for this invoice any more.
			return s, []Effect{ReleaseInvoice{SwapID: ic.SwapID}}
		}
	}

	switch cur := s.(type) {
	case Setup:
		return setupEvent(cur, ev)
	case POS:
		return posEvent(cur, ev)
	case Receive:
		return receiveEvent(cur, ev)
	case Error:
		if _, ok := ev.(SettingsRequested); ok {
			return Setup{}, []Effect{ClearFragment{}, LoadStoredForm{}}
		}
	}
	return s, nil
}

// leave returns the effects that tear down s when the page changes.
func leave(s State) []Effect {
	effects := []Effect{StopRateRefresh{}}
	switch cur := s.(type) {
	case POS:
		effects = append(effects, Unsubscribe{})
	case Receive:
		effects = append(effects, ReleaseInvoice{SwapID: cur.SwapID})
	}
	return effects
}

// enter decodes fragment and returns the page it selects.
func enter(fragment string) (State, []Effect) {
	if strings.TrimPrefix(strings.TrimSpace(fragment), "#") == "" {
		return Setup{}, []Effect{LoadStoredForm{}}
	}
	cfg, err := posconfig.Decode(fragment)
	if err != nil {
		e := Error{Message: err.Error()}
		var de *posconfig.DecodeError
		if errors.As(err, &de) {
			e.Reason = de.Reason
		}
		return e, nil
	}
	return enterPOS(cfg)
}

func enterPOS(cfg posconfig.Config) (State, []Effect) {
	return POS{Config: cfg, Amount: amount.NewState()}, []Effect{Subscribe{}, EnsureSession{Config: cfg}}
}

func setupEvent(s Setup, ev Event) (State, []Effect) {
	switch e := ev.(type) {
	case LinkGenerated:
		cfg := e.Config
		return Setup{Config: &cfg, Link: e.Link}, []Effect{SaveStoredForm{Config: cfg}}
	case OpenPOS:
		if s.Config == nil {
			return s, nil
		}
		next, effects := enterPOS(*s.Config)
		return next, append([]Effect{SetFragment{Fragment: posconfig.Encode(*s.Config)}}, effects...)
	}
	return s, nil
}

func posEvent(s POS, ev Event) (State, []Effect) {
	switch e := ev.(type) {
	case SettingsRequested:
		return Setup{}, []Effect{StopRateRefresh{}, Unsubscribe{}, ClearFragment{}, LoadStoredForm{}}
	case SessionFailed:
		s.Notice = noticeSessionFail + e.Message
		return s, nil
	case InvoiceCreated:
		if !s.Pending || e.Request != s.Request {
			return s, []Effect{ReleaseInvoice{SwapID: e.SwapID}}
		}
		desc := ""
		if s.Config.ShowDescription {
			desc = strings.TrimSpace(s.Description)
		}
		next := Receive{
			Config:         s.Config,
			SwapID:         e.SwapID,
			PaymentRequest: e.PaymentRequest,
			Amounts:        s.Submitted,
			Description:    desc,
			Status:         StatusWaiting,
		}
		return next, []Effect{StopRateRefresh{}, Unsubscribe{}, WatchPayment{SwapID: e.SwapID}}
	case InvoiceFailed:
		if !s.Pending || e.Request != s.Request {
			return s, nil
		}
		s.Pending = false
		s.Submitted = amount.Amounts{}
		s.Request = 0
		s.Notice = noticeInvoiceFail + e.Message
		return s, nil
	}

	if s.Pending {
		return s, nil
	}

	switch e := ev.(type) {
	case KeyPressed:
		s.Amount.Digits = amount.EditInput(s.Amount.Digits, s.Amount.Mode, e.Key)
		s.Notice = ""
	case Backspace:
		s.Amount.Digits = amount.Backspace(s.Amount.Digits)
		s.Notice = ""
	case ClearAmount:
		s.Amount = amount.State{Digits: "0", Mode: s.Amount.Mode}
		s.Notice = ""
	case DescriptionChanged:
		if s.Config.ShowDescription {
			s.Description = e.Text
		}
	case ToggleMode:
		if !e.Rate.IsPositive() {
			s.Notice = NoticeNoRate
			return s, nil
		}
		to := s.Amount.Mode.Toggle()
		s.Amount = amount.State{Digits: amount.SwitchMode(s.Amount.Digits, s.Amount.Mode, to, e.Rate), Mode: to}
		s.Notice = ""
	case Submit:
		if !e.Ready {
			s.Notice = NoticeNotReady
			return s, nil
		}
		if !e.Rate.IsPositive() {
			s.Notice = NoticeNoRate
			return s, nil
		}
		amounts := amount.Resolve(s.Amount, e.Rate, s.Config.Currency)
		if amounts.Sats <= 0 {
			s.Notice = NoticeNoAmount
			return s, nil
		}
		desc := ""
		if s.Config.ShowDescription {
			desc = strings.TrimSpace(s.Description)
		}
		s.Pending = true
		s.Submitted = amounts
		s.Request = e.Request
		s.Notice = ""
		return s, []Effect{CreateInvoice{Request: e.Request, Amounts: amounts, Description: desc}}
	}
	return s, nil
}

func receiveEvent(s Receive, ev Event) (State, []Effect) {
	switch e := ev.(type) {
	case PaymentResolved:
		if e.SwapID != s.SwapID || s.Status != StatusWaiting {
			return s, nil
		}
		if e.Paid {
			s.Status = StatusPaid
		} else {
			s.Status = StatusFailed
		}
		return s, nil
	case Back:
		next, effects := enterPOS(s.Config)
		return next, append([]Effect{ReleaseInvoice{SwapID: s.SwapID}}, effects...)
	}
	return s, nil
}
