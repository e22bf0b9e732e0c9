package prices

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jsarenik/btcpos/internal/backend"
)

// Fixed always reports the same rate. It serves offline terminals and demos.
type Fixed struct {
	Rate decimal.Decimal
}

var _ backend.PriceFetcher = Fixed{}

func (f Fixed) Rates(ctx context.Context, currency backend.CurrencyCode) (backend.Rates, error) {
	if err := ctx.Err(); err != nil {
		return backend.Rates{}, err
	}
	if !f.Rate.IsPositive() {
		return backend.Rates{Currency: currency}, backend.ErrNoRates
	}
	return backend.Rates{
		Currency: currency,
		Samples:  []backend.Sample{{Source: "fixed", Price: f.Rate}},
	}, nil
}

// New returns Fixed when fixedRate is positive and a network client
// otherwise.
func New(fixedRate decimal.Decimal, opts Options) (backend.PriceFetcher, error) {
	if fixedRate.IsPositive() {
		return Fixed{Rate: fixedRate}, nil
	}
	return NewClient(opts)
}
