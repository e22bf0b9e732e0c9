package app

import (
	"context"
	"fmt"

	"github.com/jsarenik/btcpos/internal/backend"
	"github.com/jsarenik/btcpos/internal/backend/sim"
	"github.com/jsarenik/btcpos/internal/config"
	"github.com/jsarenik/btcpos/internal/location"
	"github.com/jsarenik/btcpos/internal/logging"
	"github.com/jsarenik/btcpos/internal/payment"
	"github.com/jsarenik/btcpos/internal/posconfig"
	"github.com/jsarenik/btcpos/internal/prefs"
	"github.com/jsarenik/btcpos/internal/prices"
	"github.com/jsarenik/btcpos/internal/secrets"
	"github.com/jsarenik/btcpos/internal/session"
	"github.com/jsarenik/btcpos/internal/state"
	"github.com/jsarenik/btcpos/internal/storage"
	"github.com/jsarenik/btcpos/internal/ui"
)

// Options configure the terminal.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/btcpos/prefs.toml
	LogLevel   string // overrides log.level from the config file
	// Link is a terminal link or bare fragment to open. Empty resumes the
	// fragment held in the location file.
	Link string
}

// Run boots the terminal UI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load btcpos config: %w", err)
	}

	closeLog, err := configureLogging(cfg.Log, opts.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()
	log := logging.WithComponent("app")

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		log.Warn().Err(err).Msg("load prefs; using defaults")
	}

	kv, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("open secret storage: %w", err)
	}
	defer kv.Close()

	manager, err := newManager(ctx, cfg, kv)
	if err != nil {
		return err
	}
	defer manager.StopRateRefresh()

	loc := location.New(cfg.LocationFile)
	fragment, err := startFragment(loc, opts.Link)
	if err != nil {
		return err
	}
	changes, err := loc.Watch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("watch location file; external navigation disabled")
		changes = nil
	}

	log.Info().
		Str("network", string(cfg.Network)).
		Str("storage", cfg.Storage.Backend).
		Str("location", loc.Path()).
		Msg("terminal starting")

	return ui.Run(ui.Options{
		Context:   ctx,
		Manager:   manager,
		Watcher:   payment.NewWatcher(),
		Location:  loc,
		Changes:   changes,
		Fragment:  fragment,
		BaseURL:   cfg.BaseURL,
		PrefsPath: opts.PrefsPath,
		ThemeName: userPrefs.Theme,
		LogFile:   cfg.Log.File,
	})
}

// configureLogging points the global logger at the log file. The returned
// func closes it.
func configureLogging(cfg config.Log, override string) (func(), error) {
	level := cfg.Level
	if override != "" {
		level = override
	}
	if cfg.File == "" {
		logging.Configure(logging.Config{Level: level})
		return func() {}, nil
	}
	f, err := logging.OpenFile(cfg.File)
	if err != nil {
		return nil, err
	}
	logging.Configure(logging.Config{Level: level, Output: f})
	return func() { _ = f.Close() }, nil
}

func newManager(ctx context.Context, cfg config.Config, kv storage.KV) (*session.Manager, error) {
	sources := prices.Options{Sources: cfg.Prices.Sources}
	manager, err := session.NewManager(session.Options{
		Settings: session.Settings{
			Network:         cfg.Network,
			EsploraURL:      cfg.EsploraURL,
			ReferralTag:     cfg.ReferralTag,
			RefreshInterval: cfg.RefreshInterval,
		},
		Backend: sim.New(sim.Options{
			SettleAfter:  cfg.Sim.SettleAfter,
			FailInvoices: cfg.Sim.FailInvoices,
		}),
		Secrets: secrets.New(kv),
		NewPriceFetcher: func() (backend.PriceFetcher, error) {
			return prices.New(cfg.Prices.FixedRate, sources)
		},
		Store:   &state.Store{},
		Context: ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("init session manager: %w", err)
	}
	return manager, nil
}

// startFragment returns the fragment the terminal opens with. An explicit
// link wins and is written back so other processes see it.
func startFragment(loc *location.File, link string) (string, error) {
	if fragment := posconfig.FragmentFromLink(link); fragment != "" {
		if err := loc.Write(fragment); err != nil {
			return "", fmt.Errorf("write location: %w", err)
		}
		return fragment, nil
	}
	fragment, err := loc.Read()
	if err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return fragment, nil
}
