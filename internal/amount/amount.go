// Package amount converts between fiat and satoshi amounts and applies the
// keypad editing rules used by the POS page.
//
// Every function here is total: malformed or empty input collapses to the
// zero state ("0") instead of returning an error.
package amount

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// SatoshisPerCoin is the number of base units in one whole coin.
const SatoshisPerCoin = 100_000_000

// MaxInputLength caps the keypad literal to avoid overflow.
const MaxInputLength = 12

const zero = "0"

var satsPerCoin = decimal.NewFromInt(SatoshisPerCoin)

// Mode selects the unit the keypad edits.
type Mode int

const (
	Fiat Mode = iota
	Satoshi
)

func (m Mode) String() string {
	if m == Satoshi {
		return "sats"
	}
	return "fiat"
}

// DecimalPlaces returns the fractional digit cap for the mode.
func (m Mode) DecimalPlaces() int {
	if m == Satoshi {
		return 0
	}
	return 2
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == Satoshi {
		return Fiat
	}
	return Satoshi
}

// State is the amount being typed on the keypad during one POS page visit.
type State struct {
	Digits string
	Mode   Mode
}

// NewState returns the zero amount in fiat mode.
func NewState() State {
	return State{Digits: zero, Mode: Fiat}
}

// FiatToSatoshis converts a fiat amount at rate (fiat per coin) into
// satoshis, rounding half away from zero. An unset or non-positive rate
// yields 0.
func FiatToSatoshis(fiat, rate decimal.Decimal) int64 {
	if !rate.IsPositive() {
		return 0
	}
	return fiat.Div(rate).Mul(satsPerCoin).Round(0).IntPart()
}

// SatoshisToFiat converts satoshis into fiat at rate. An unset or
// non-positive rate yields 0.
func SatoshisToFiat(sats int64, rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromInt(sats).Div(satsPerCoin).Mul(rate)
}

// EditInput appends ch to digits under the rules of mode and returns the
// new literal. Rejected input returns digits unchanged (normalized).
func EditInput(digits string, mode Mode, ch rune) string {
	digits = sanitize(digits, mode)

	isPoint := ch == '.'
	if !isPoint && (ch < '0' || ch > '9') {
		return digits
	}

	if isPoint {
		if mode == Satoshi || strings.Contains(digits, ".") {
			return digits
		}
	}

	if i := strings.IndexByte(digits, '.'); i >= 0 && !isPoint {
		if len(digits)-i-1 >= mode.DecimalPlaces() {
			return digits
		}
	}

	if len(digits) >= MaxInputLength {
		return digits
	}

	if digits == zero && !isPoint {
		return string(ch)
	}
	return digits + string(ch)
}

// Backspace removes the last character, falling back to "0".
func Backspace(digits string) string {
	if len(digits) <= 1 {
		return zero
	}
	out := digits[:len(digits)-1]
	if out == "" {
		return zero
	}
	return out
}

// NormalizeForDisplay strips leading zeros that are not immediately
// followed by a decimal point.
func NormalizeForDisplay(digits string) string {
	if digits == "" {
		return zero
	}
	trimmed := strings.TrimLeft(digits, "0")
	switch {
	case trimmed == "":
		return zero
	case trimmed[0] == '.':
		return zero + trimmed
	default:
		return trimmed
	}
}

// Parse returns the numeric value of a keypad literal, or zero when the
// literal is not a valid non-negative decimal.
func Parse(digits string) decimal.Decimal {
	digits = strings.TrimSpace(digits)
	if digits == "" || !validLiteral(digits, true) {
		return decimal.Zero
	}
	if strings.HasSuffix(digits, ".") {
		digits = strings.TrimSuffix(digits, ".")
	}
	if strings.HasPrefix(digits, ".") {
		digits = zero + digits
	}
	v, err := decimal.NewFromString(digits)
	if err != nil || v.IsNegative() {
		return decimal.Zero
	}
	return v
}

// SwitchMode converts the effective value of digits from one mode to the
// other at rate, then strips trailing fractional zeros so later keypad edits
// are not blocked by them.
func SwitchMode(digits string, from, to Mode, rate decimal.Decimal) string {
	if from == to {
		return sanitize(digits, from)
	}
	value := Parse(sanitize(digits, from))
	if value.IsZero() || !rate.IsPositive() {
		return zero
	}

	var out string
	switch to {
	case Satoshi:
		out = decimal.NewFromInt(FiatToSatoshis(value, rate)).String()
	default:
		sats := value.Truncate(0).IntPart()
		out = SatoshisToFiat(sats, rate).Round(int32(Fiat.DecimalPlaces())).StringFixed(int32(Fiat.DecimalPlaces()))
	}
	out = stripFractionZeros(out)
	if len(out) > MaxInputLength {
		return zero
	}
	return NormalizeForDisplay(out)
}

// Amounts are the paired values shown for a submitted payment.
type Amounts struct {
	Fiat     decimal.Decimal
	Sats     int64
	Currency string
}

// Resolve returns the fiat and satoshi values represented by s at rate.
func Resolve(s State, rate decimal.Decimal, currency string) Amounts {
	value := Parse(s.Digits)
	if s.Mode == Satoshi {
		sats := value.Truncate(0).IntPart()
		return Amounts{Fiat: SatoshisToFiat(sats, rate).Round(2), Sats: sats, Currency: currency}
	}
	return Amounts{Fiat: value, Sats: FiatToSatoshis(value, rate), Currency: currency}
}

var printer = message.NewPrinter(language.English)

// FormatSats renders sats with thousands separators, e.g. 25,000.
func FormatSats(sats int64) string {
	return printer.Sprintf("%d", sats)
}

// FormatFiat renders a fiat value with two decimals.
func FormatFiat(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func sanitize(digits string, mode Mode) string {
	digits = strings.TrimSpace(digits)
	if digits == "" || len(digits) > MaxInputLength || !validLiteral(digits, mode == Fiat) {
		return zero
	}
	if i := strings.IndexByte(digits, '.'); i >= 0 && len(digits)-i-1 > mode.DecimalPlaces() {
		return zero
	}
	return digits
}

// validLiteral reports whether s is made of digits with at most one point.
func validLiteral(s string, allowPoint bool) bool {
	points := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' && allowPoint:
			points++
			if points > 1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func stripFractionZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
