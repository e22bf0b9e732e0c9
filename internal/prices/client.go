// Package prices fetches spot prices from public exchange APIs and reports
// them as backend.Rates.
package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/jsarenik/btcpos/internal/backend"
	"github.com/jsarenik/btcpos/internal/logging"
)

// Source names.
const (
	SourceCoinGecko = "coingecko"
	SourceCoinbase  = "coinbase"
	SourceKraken    = "kraken"
)

// DefaultSources are queried when Options.Sources is empty.
var DefaultSources = []string{SourceCoinGecko, SourceCoinbase, SourceKraken}

var defaultBaseURLs = map[string]string{
	SourceCoinGecko: "https://api.coingecko.com",
	SourceCoinbase:  "https://api.coinbase.com",
	SourceKraken:    "https://api.kraken.com",
}

const (
	defaultUserAgent = "btcpos/0.1"
	requestTimeout   = 5 * time.Second
)

// Options configure a Client.
type Options struct {
	Sources  []string
	BaseURLs map[string]string // per-source override, mainly for tests
	// RequestsPerSecond throttles outgoing requests across all sources.
	// Zero uses 2.
	RequestsPerSecond float64
}

// Client queries several sources and returns every price it could get.
type Client struct {
	http      *http.Client
	userAgent string
	limiter   *rate.Limiter
	sources   []source
	log       zerolog.Logger
}

var _ backend.PriceFetcher = (*Client)(nil)

type source struct {
	name   string
	base   *url.URL
	path   func(backend.CurrencyCode) *url.URL
	decode func(*json.Decoder, backend.CurrencyCode) (decimal.Decimal, error)
}

// NewClient builds a Client for the requested sources.
func NewClient(opts Options) (*Client, error) {
	names := opts.Sources
	if len(names) == 0 {
		names = DefaultSources
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}

	c := &Client{
		http:      &http.Client{Timeout: requestTimeout},
		userAgent: defaultUserAgent,
		limiter:   rate.NewLimiter(rate.Limit(rps), len(names)),
		log:       logging.WithComponent("prices"),
	}
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		baseURL, known := defaultBaseURLs[name]
		if !known {
			return nil, fmt.Errorf("unknown price source %q", raw)
		}
		if override, ok := opts.BaseURLs[name]; ok {
			baseURL = override
		}
		base, err := url.Parse(baseURL)
		if err != nil || baseURL == "" {
			return nil, fmt.Errorf("price source %q: invalid base url %q", raw, baseURL)
		}
		src := source{name: name, base: base}
		switch name {
		case SourceCoinGecko:
			src.path, src.decode = coingeckoPath, coingeckoDecode
		case SourceCoinbase:
			src.path, src.decode = coinbasePath, coinbaseDecode
		case SourceKraken:
			src.path, src.decode = krakenPath, krakenDecode
		}
		c.sources = append(c.sources, src)
	}
	return c, nil
}

// Rates asks every source for the price of one coin in currency. Sources
// that fail are logged and skipped; ErrNoRates is returned only when all
// of them fail.
func (c *Client) Rates(ctx context.Context, currency backend.CurrencyCode) (backend.Rates, error) {
	if c == nil {
		return backend.Rates{}, fmt.Errorf("client is nil")
	}
	out := backend.Rates{Currency: currency}
	var errs []error
	for _, src := range c.sources {
		price, err := c.fetch(ctx, src, currency)
		if err != nil {
			if ctx.Err() != nil {
				return backend.Rates{}, ctx.Err()
			}
			c.log.Warn().Err(err).Str("source", src.name).Str("currency", string(currency)).Msg("price source failed")
			errs = append(errs, fmt.Errorf("%s: %w", src.name, err))
			continue
		}
		out.Samples = append(out.Samples, backend.Sample{Source: src.name, Price: price})
	}
	if len(out.Samples) == 0 {
		return out, fmt.Errorf("%w: %w", backend.ErrNoRates, errors.Join(errs...))
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, src source, currency backend.CurrencyCode) (decimal.Decimal, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}
	reqURL := src.base.ResolveReference(src.path(currency))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decimal.Zero, fmt.Errorf("api %s returned status %d", reqURL.Path, resp.StatusCode)
	}
	price, err := src.decode(json.NewDecoder(resp.Body), currency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode response: %w", err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive price %s", price)
	}
	return price, nil
}
