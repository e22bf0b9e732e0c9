package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsarenik/btcpos/internal/backend"
	"github.com/jsarenik/btcpos/internal/config"
	"github.com/jsarenik/btcpos/internal/location"
	"github.com/jsarenik/btcpos/internal/posconfig"
	"github.com/jsarenik/btcpos/internal/referral"
	"github.com/jsarenik/btcpos/internal/storage"
)

const (
	testnetDescriptor = "ct(slip77(aaaa),elwpkh(tpubD6NzVbkrYhZ4/<0;1>/*))"
	mainnetDescriptor = "ct(slip77(bbbb),elwpkh(xpub661MyMwAqRbc/<0;1>/*))"
)

type fixture struct {
	dir        string
	configPath string
	location   string
}

func newFixture(t *testing.T, extra string) fixture {
	t.Helper()
	t.Setenv("API_KEY", "")
	t.Setenv("API_SECRET", "")
	dir := t.TempDir()
	f := fixture{
		dir:        dir,
		configPath: filepath.Join(dir, "config.toml"),
		location:   filepath.Join(dir, "location"),
	}
	body := fmt.Sprintf(`network = "regtest"
base_url = "https://till.example.org/"
location_file = %q

[storage]
backend = "memory"

[prices]
fixed_rate = "50000"

[sim]
settle_after = "10ms"
%s`, f.location, extra)
	require.NoError(t, os.WriteFile(f.configPath, []byte(body), 0o600))
	return f
}

func TestBuildLink(t *testing.T) {
	f := newFixture(t, "")
	pos := posconfig.Config{Descriptor: testnetDescriptor, Currency: " eur ", ShowDescription: true}

	link, err := BuildLink(context.Background(), f.configPath, pos)
	require.NoError(t, err)
	assert.Contains(t, link, "https://till.example.org/#")

	got, err := posconfig.Decode(posconfig.FragmentFromLink(link))
	require.NoError(t, err)
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, testnetDescriptor, got.Descriptor)

	var qr bytes.Buffer
	require.NoError(t, WriteLinkQR(&qr, link))
	assert.NotEmpty(t, qr.String())
}

func TestBuildLinkRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	_, err := BuildLink(ctx, f.configPath, posconfig.Config{Descriptor: mainnetDescriptor, Currency: "USD"})
	assert.ErrorIs(t, err, backend.ErrNetworkMismatch)

	_, err = BuildLink(ctx, f.configPath, posconfig.Config{Descriptor: "short", Currency: "USD"})
	assert.ErrorIs(t, err, posconfig.ErrInvalid)

	_, err = BuildLink(ctx, f.configPath, posconfig.Config{Descriptor: testnetDescriptor, Currency: "EURO"})
	assert.ErrorIs(t, err, posconfig.ErrInvalid)
}

func TestOpenLinkWritesLocation(t *testing.T) {
	f := newFixture(t, "")
	fragment := posconfig.Encode(posconfig.Config{Descriptor: testnetDescriptor, Currency: "USD", ShowDescription: true})

	require.NoError(t, OpenLink(f.configPath, "https://till.example.org/#"+fragment))

	got, err := location.New(f.location).Read()
	require.NoError(t, err)
	assert.Equal(t, fragment, got)

	assert.Error(t, OpenLink(f.configPath, "https://till.example.org/#garbage"))
}

func TestStartFragment(t *testing.T) {
	loc := location.New(filepath.Join(t.TempDir(), "location"))

	got, err := startFragment(loc, "")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = startFragment(loc, "https://till.example.org/#abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	got, err = startFragment(loc, "")
	require.NoError(t, err)
	assert.Equal(t, "abc", got, "location file keeps the last fragment")
}

func TestNewManagerBringsUpSession(t *testing.T) {
	f := newFixture(t, "")
	cfg, err := config.Load(f.configPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	manager, err := newManager(ctx, cfg, storage.NewMemoryStore())
	require.NoError(t, err)
	defer manager.StopRateRefresh()

	pos := posconfig.Config{Descriptor: testnetDescriptor, Currency: "USD", ShowDescription: true}
	require.NoError(t, manager.EnsureSession(ctx, pos))
	assert.True(t, manager.Store().IsReady())
	assert.Equal(t, backend.NetworkRegtest, manager.Network())

	assert.Eventually(t, func() bool {
		rate, ok := manager.Store().Rate()
		return ok && rate.Equal(decimal.NewFromInt(50000))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReferralStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("API-KEY") != "key" || r.Header.Get("API-HMAC") == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"btcpos":{"volume":"1000"}}`))
	}))
	defer srv.Close()

	f := newFixture(t, fmt.Sprintf(`
[referral]
endpoint = %q
api_key = "key"
api_secret = "secret"
`, srv.URL+"/v2/referral/stats"))

	var out bytes.Buffer
	require.NoError(t, ReferralStats(context.Background(), f.configPath, &out))
	assert.Contains(t, out.String(), `"volume": "1000"`)
}

func TestReferralStatsRequiresCredentials(t *testing.T) {
	f := newFixture(t, "")
	err := ReferralStats(context.Background(), f.configPath, &bytes.Buffer{})
	assert.ErrorIs(t, err, referral.ErrMissingCredentials)
}
