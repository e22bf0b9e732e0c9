package prices

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jsarenik/btcpos/internal/backend"
)

func coingeckoPath(currency backend.CurrencyCode) *url.URL {
	values := url.Values{}
	values.Set("ids", "bitcoin")
	values.Set("vs_currencies", strings.ToLower(string(currency)))
	return &url.URL{Path: "/api/v3/simple/price", RawQuery: values.Encode()}
}

func coingeckoDecode(dec *json.Decoder, currency backend.CurrencyCode) (decimal.Decimal, error) {
	var payload map[string]map[string]decimal.Decimal
	if err := dec.Decode(&payload); err != nil {
		return decimal.Zero, err
	}
	price, ok := payload["bitcoin"][strings.ToLower(string(currency))]
	if !ok {
		return decimal.Zero, fmt.Errorf("no %s price in response", currency)
	}
	return price, nil
}

func coinbasePath(currency backend.CurrencyCode) *url.URL {
	return &url.URL{Path: "/v2/prices/BTC-" + string(currency) + "/spot"}
}

func coinbaseDecode(dec *json.Decoder, currency backend.CurrencyCode) (decimal.Decimal, error) {
	var payload struct {
		Data struct {
			Amount   decimal.Decimal `json:"amount"`
			Currency string          `json:"currency"`
		} `json:"data"`
	}
	if err := dec.Decode(&payload); err != nil {
		return decimal.Zero, err
	}
	if !strings.EqualFold(payload.Data.Currency, string(currency)) {
		return decimal.Zero, fmt.Errorf("response currency %q, want %s", payload.Data.Currency, currency)
	}
	return payload.Data.Amount, nil
}

func krakenPath(currency backend.CurrencyCode) *url.URL {
	values := url.Values{}
	values.Set("pair", "XBT"+string(currency))
	return &url.URL{Path: "/0/public/Ticker", RawQuery: values.Encode()}
}

func krakenDecode(dec *json.Decoder, _ backend.CurrencyCode) (decimal.Decimal, error) {
	var payload struct {
		Error  []string `json:"error"`
		Result map[string]struct {
			Last []string `json:"c"`
		} `json:"result"`
	}
	if err := dec.Decode(&payload); err != nil {
		return decimal.Zero, err
	}
	if len(payload.Error) > 0 {
		return decimal.Zero, fmt.Errorf("kraken: %s", strings.Join(payload.Error, "; "))
	}
	for _, ticker := range payload.Result {
		if len(ticker.Last) == 0 {
			continue
		}
		return decimal.NewFromString(ticker.Last[0])
	}
	return decimal.Zero, fmt.Errorf("empty ticker result")
}
