// Package referral queries the swap provider's referral statistics with a
// signed request.
package referral

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultEndpoint is the referral stats URL of the public swap provider.
const DefaultEndpoint = "https://api.boltz.exchange/v2/referral/stats"

// ErrMissingCredentials is returned when the API key or secret is empty.
var ErrMissingCredentials = errors.New("referral api key and secret are required")

// Options configure a Client.
type Options struct {
	Endpoint  string
	APIKey    string
	APISecret string
	HTTP      *http.Client
	Now       func() time.Time
}

// Client fetches referral stats.
type Client struct {
	endpoint *url.URL
	key      string
	secret   string
	http     *http.Client
	now      func() time.Time
}

// NewClient validates opts and returns a Client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" || strings.TrimSpace(opts.APISecret) == "" {
		return nil, ErrMissingCredentials
	}
	raw := strings.TrimSpace(opts.Endpoint)
	if raw == "" {
		raw = DefaultEndpoint
	}
	endpoint, err := url.Parse(raw)
	if err != nil || endpoint.Host == "" {
		return nil, fmt.Errorf("invalid referral endpoint %q", raw)
	}
	c := &Client{
		endpoint: endpoint,
		key:      opts.APIKey,
		secret:   opts.APISecret,
		http:     opts.HTTP,
		now:      opts.Now,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 10 * time.Second}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Sign returns the hex HMAC-SHA256 of ts, method and path keyed by secret.
func Sign(secret string, ts int64, method, path string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10) + method + path))
	return hex.EncodeToString(mac.Sum(nil))
}

// Stats performs the signed GET and returns the raw JSON body.
func (c *Client) Stats(ctx context.Context) (json.RawMessage, error) {
	ts := c.now().Unix()
	path := c.endpoint.EscapedPath()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("TS", strconv.FormatInt(ts, 10))
	req.Header.Set("API-KEY", c.key)
	req.Header.Set("API-HMAC", Sign(c.secret, ts, http.MethodGet, path))
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("referral stats: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read referral stats: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("referral stats: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("referral stats: response is not json")
	}
	return json.RawMessage(body), nil
}

// Pretty indents raw JSON for printing.
func Pretty(raw json.RawMessage) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return "", err
	}
	return buf.String(), nil
}
