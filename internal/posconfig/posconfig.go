// Package posconfig encodes and decodes the portable POS configuration that
// travels in the fragment of a terminal link.
package posconfig

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	// MinDescriptorLength is the shortest descriptor accepted by Decode.
	MinDescriptorLength = 10
	// CurrencyLength is the exact length of an alpha-3 currency code.
	CurrencyLength = 3
)

var encoding = base64.RawURLEncoding.Strict()

// Config identifies a POS instance.
type Config struct {
	Descriptor       string
	Currency         string
	ShowSettingsGear bool
	ShowDescription  bool
}

// wire is the compact JSON record carried in the fragment.
type wire struct {
	Descriptor      *string `json:"d"`
	Currency        *string `json:"c"`
	Gear            *bool   `json:"g,omitempty"`
	ShowDescription *bool   `json:"n,omitempty"`
}

// Encode serializes cfg into a URL-fragment-safe string. Booleans equal to
// their defaults are left out to keep links short.
func Encode(cfg Config) string {
	w := wire{Descriptor: &cfg.Descriptor, Currency: &cfg.Currency}
	if cfg.ShowSettingsGear {
		gear := true
		w.Gear = &gear
	}
	if !cfg.ShowDescription {
		show := false
		w.ShowDescription = &show
	}
	raw, err := json.Marshal(w)
	if err != nil {
		// Marshal of strings and bools cannot fail.
		panic(fmt.Sprintf("posconfig: marshal: %v", err))
	}
	return encoding.EncodeToString(raw)
}

// Decode parses a fragment produced by Encode. It never panics; every
// failure is reported as a *DecodeError.
func Decode(fragment string) (Config, error) {
	fragment = strings.TrimPrefix(strings.TrimSpace(fragment), "#")
	if fragment == "" {
		return Config{}, &DecodeError{Reason: ReasonEmpty}
	}

	raw, err := encoding.DecodeString(fragment)
	if err != nil {
		return Config{}, &DecodeError{Reason: ReasonEncoding, Err: err}
	}
	if !utf8.Valid(raw) {
		return Config{}, &DecodeError{Reason: ReasonEncoding, Err: errors.New("payload is not utf-8")}
	}

	var w wire
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&w); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Config{}, &DecodeError{Reason: ReasonFieldType, Err: err}
		}
		return Config{}, &DecodeError{Reason: ReasonSyntax, Err: err}
	}
	if dec.More() {
		return Config{}, &DecodeError{Reason: ReasonSyntax, Err: errors.New("trailing data after record")}
	}

	cfg := Config{ShowDescription: true}
	if w.Descriptor != nil {
		cfg.Descriptor = *w.Descriptor
	}
	if w.Currency != nil {
		cfg.Currency = *w.Currency
	}
	if w.Gear != nil {
		cfg.ShowSettingsGear = *w.Gear
	}
	if w.ShowDescription != nil {
		cfg.ShowDescription = *w.ShowDescription
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate performs the structural sanity checks applied after decoding.
// Full descriptor validation belongs to the wallet backend.
func Validate(cfg Config) error {
	if utf8.RuneCountInString(cfg.Descriptor) < MinDescriptorLength {
		return &DecodeError{Reason: ReasonDescriptor}
	}
	if utf8.RuneCountInString(cfg.Currency) != CurrencyLength {
		return &DecodeError{Reason: ReasonCurrency}
	}
	return nil
}

// Link returns base with the encoded configuration as its fragment.
func Link(base string, cfg Config) string {
	base = strings.TrimSpace(base)
	if i := strings.IndexByte(base, '#'); i >= 0 {
		base = base[:i]
	}
	return base + "#" + Encode(cfg)
}

// FragmentFromLink extracts the fragment from a full link, a "#fragment"
// string or a bare fragment.
func FragmentFromLink(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	if strings.HasPrefix(link, "#") {
		return link[1:]
	}
	if !strings.Contains(link, "://") && !strings.Contains(link, "#") {
		return link
	}
	u, err := url.Parse(link)
	if err != nil {
		if i := strings.LastIndexByte(link, '#'); i >= 0 {
			return link[i+1:]
		}
		return ""
	}
	if u.RawFragment != "" {
		return u.RawFragment
	}
	return u.Fragment
}
