package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNoRates is returned when no price source produced a usable sample.
var ErrNoRates = errors.New("no exchange rates available")

// CurrencyCode is an ISO 4217 alpha-3 code such as USD.
type CurrencyCode string

// ParseCurrencyCode normalizes s to upper case and checks it is three letters.
func ParseCurrencyCode(s string) (CurrencyCode, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if len(code) != 3 {
		return "", fmt.Errorf("currency code %q must have 3 letters", s)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("currency code %q must be letters only", s)
		}
	}
	return CurrencyCode(code), nil
}

func (c CurrencyCode) String() string { return string(c) }

// Sample is one source's price of a whole coin.
type Sample struct {
	Source string
	Price  decimal.Decimal
}

// Rates holds the samples collected for one currency.
type Rates struct {
	Currency CurrencyCode
	Samples  []Sample
}

// Median returns the median of the positive samples.
func (r Rates) Median() (decimal.Decimal, error) {
	prices := make([]decimal.Decimal, 0, len(r.Samples))
	for _, s := range r.Samples {
		if s.Price.IsPositive() {
			prices = append(prices, s.Price)
		}
	}
	if len(prices) == 0 {
		return decimal.Zero, ErrNoRates
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })
	mid := len(prices) / 2
	if len(prices)%2 == 1 {
		return prices[mid], nil
	}
	return prices[mid-1].Add(prices[mid]).Div(decimal.NewFromInt(2)), nil
}

// PriceFetcher returns current spot prices for a currency.
type PriceFetcher interface {
	Rates(ctx context.Context, currency CurrencyCode) (Rates, error)
}
