package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/jsarenik/btcpos/internal/backend"
)

// Config is the terminal configuration.
type Config struct {
	Network         backend.Network
	EsploraURL      string
	BaseURL         string
	ReferralTag     string
	RefreshInterval time.Duration
	LocationFile    string

	Storage  Storage
	Prices   Prices
	Log      Log
	Sim      Sim
	Referral Referral
}

// Storage selects the durable store for swap secrets.
type Storage struct {
	Backend string
	Dir     string
}

// Prices configures the exchange rate sources.
type Prices struct {
	Sources   []string
	FixedRate decimal.Decimal
}

// Log configures the log file.
type Log struct {
	Level string
	File  string
}

// Sim tunes the simulated swap backend.
type Sim struct {
	SettleAfter  time.Duration
	FailInvoices bool
}

// Referral holds credentials for the referral stats endpoint.
type Referral struct {
	Endpoint  string
	APIKey    string
	APISecret string
}

const (
	defaultConfigPath      = "~/.config/btcpos/config.toml"
	defaultDataDir         = "~/.local/share/btcpos"
	defaultBaseURL         = "https://pos.example.com/"
	defaultReferralTag     = "btcpos"
	defaultRefreshInterval = time.Minute
	defaultReferralURL     = "https://api.boltz.exchange/v2/referral/stats"
)

var defaultEsplora = map[backend.Network]string{
	backend.NetworkLiquid:        "https://blockstream.info/liquid/api",
	backend.NetworkLiquidTestnet: "https://blockstream.info/liquidtestnet/api",
	backend.NetworkRegtest:       "http://127.0.0.1:3002",
}

// DefaultPath returns the default config file path.
func DefaultPath() string { return defaultConfigPath }

// Load reads the TOML config at path (or the default location), applies
// BTCPOS_* environment overrides and fills in defaults. A missing file is
// not an error.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v)
	v.SetEnvPrefix("BTCPOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("referral.api_key", "BTCPOS_REFERRAL_API_KEY", "API_KEY")
	_ = v.BindEnv("referral.api_secret", "BTCPOS_REFERRAL_API_SECRET", "API_SECRET")

	if _, err := os.Stat(resolved); err == nil {
		v.SetConfigFile(resolved)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("open config: %w", err)
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("network", string(backend.NetworkLiquid))
	v.SetDefault("esplora_url", "")
	v.SetDefault("base_url", defaultBaseURL)
	v.SetDefault("referral_tag", defaultReferralTag)
	v.SetDefault("refresh_interval", defaultRefreshInterval.String())
	v.SetDefault("location_file", filepath.Join(defaultDataDir, "location"))
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.dir", defaultDataDir)
	v.SetDefault("prices.sources", []string{})
	v.SetDefault("prices.fixed_rate", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(defaultDataDir, "btcpos.log"))
	v.SetDefault("sim.settle_after", "8s")
	v.SetDefault("sim.fail_invoices", false)
	v.SetDefault("referral.endpoint", defaultReferralURL)
	v.SetDefault("referral.api_key", "")
	v.SetDefault("referral.api_secret", "")
}

func fromViper(v *viper.Viper) (Config, error) {
	network, err := backend.ParseNetwork(v.GetString("network"))
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := Config{
		Network:     network,
		EsploraURL:  strings.TrimSpace(v.GetString("esplora_url")),
		BaseURL:     strings.TrimSpace(v.GetString("base_url")),
		ReferralTag: strings.TrimSpace(v.GetString("referral_tag")),
		Storage: Storage{
			Backend: strings.ToLower(strings.TrimSpace(v.GetString("storage.backend"))),
			Dir:     mustExpand(v.GetString("storage.dir")),
		},
		Log: Log{
			Level: strings.TrimSpace(v.GetString("log.level")),
			File:  mustExpand(v.GetString("log.file")),
		},
		Sim: Sim{FailInvoices: v.GetBool("sim.fail_invoices")},
		Referral: Referral{
			Endpoint:  strings.TrimSpace(v.GetString("referral.endpoint")),
			APIKey:    strings.TrimSpace(v.GetString("referral.api_key")),
			APISecret: strings.TrimSpace(v.GetString("referral.api_secret")),
		},
		LocationFile: mustExpand(v.GetString("location_file")),
	}
	if cfg.EsploraURL == "" {
		cfg.EsploraURL = defaultEsplora[network]
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	if cfg.RefreshInterval, err = parseDuration(v, "refresh_interval"); err != nil {
		return Config{}, err
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	if cfg.Sim.SettleAfter, err = parseDuration(v, "sim.settle_after"); err != nil {
		return Config{}, err
	}

	for _, s := range v.GetStringSlice("prices.sources") {
		if s = strings.TrimSpace(s); s != "" {
			cfg.Prices.Sources = append(cfg.Prices.Sources, strings.ToLower(s))
		}
	}
	if raw := strings.TrimSpace(v.GetString("prices.fixed_rate")); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil || !rate.IsPositive() {
			return Config{}, fmt.Errorf("parse config: prices.fixed_rate %q must be a positive number", raw)
		}
		cfg.Prices.FixedRate = rate
	}
	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse config: %s: %w", key, err)
	}
	return d, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
