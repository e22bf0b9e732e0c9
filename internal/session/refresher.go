package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jsarenik/btcpos/internal/logging"
	"github.com/jsarenik/btcpos/internal/state"
)

// DefaultRefreshInterval is used when no interval is configured.
const DefaultRefreshInterval = time.Minute

// RateRefresher keeps the store's exchange rate fresh while a POS page is
// shown. It reads the price fetcher and currency from the store on every
// tick, so a currency change takes effect on the next refresh.
type RateRefresher struct {
	parent   context.Context
	store    *state.Store
	interval time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRateRefresher returns a stopped refresher. Loops it starts end when
// parent is cancelled.
func NewRateRefresher(parent context.Context, store *state.Store, interval time.Duration) *RateRefresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &RateRefresher{
		parent:   parent,
		store:    store,
		interval: interval,
		log:      logging.WithComponent("rates"),
	}
}

// Start replaces any running loop with a new one that fetches immediately
// and then on every interval.
func (r *RateRefresher) Start() {
	ctx, cancel := context.WithCancel(r.parent)
	done := make(chan struct{})

	r.mu.Lock()
	prevCancel, prevDone := r.cancel, r.done
	r.cancel, r.done = cancel, done
	r.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}
	go r.run(ctx, done)
}

// Stop cancels the running loop and waits for it to exit. It is safe to call
// when nothing is running. ExchangeRate subscribers must not call Stop
// synchronously.
func (r *RateRefresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Running reports whether a loop is active.
func (r *RateRefresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *RateRefresher) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.refresh(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *RateRefresher) refresh(ctx context.Context) {
	fetcher, ok := r.store.PricesFetcher.Get()
	if !ok || fetcher == nil {
		return
	}
	currency, ok := r.store.CurrencyCode.Get()
	if !ok {
		return
	}

	rates, err := fetcher.Rates(ctx, currency)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		r.log.Warn().Err(err).Str("currency", string(currency)).Msg("rate refresh failed")
		return
	}
	median, err := rates.Median()
	if err != nil {
		r.log.Warn().Err(err).Str("currency", string(currency)).Msg("rate refresh returned no usable price")
		return
	}
	r.store.ExchangeRate.Set(median)
	r.log.Debug().Str("currency", string(currency)).Str("rate", median.String()).Int("samples", len(rates.Samples)).Msg("rate refreshed")
}
