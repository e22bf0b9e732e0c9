package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/jsarenik/btcpos/internal/config"
	"github.com/jsarenik/btcpos/internal/location"
	"github.com/jsarenik/btcpos/internal/posconfig"
	"github.com/jsarenik/btcpos/internal/referral"
	"github.com/jsarenik/btcpos/internal/storage"
)

// BuildLink validates pos against the configured network and returns the
// terminal link for it.
func BuildLink(ctx context.Context, configPath string, pos posconfig.Config) (string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", fmt.Errorf("load btcpos config: %w", err)
	}
	pos.Currency = strings.ToUpper(strings.TrimSpace(pos.Currency))
	pos.Descriptor = strings.TrimSpace(pos.Descriptor)
	if err := posconfig.Validate(pos); err != nil {
		return "", err
	}

	manager, err := newManager(ctx, cfg, storage.NewMemoryStore())
	if err != nil {
		return "", err
	}
	defer manager.StopRateRefresh()
	if err := manager.CheckDescriptor(pos.Descriptor); err != nil {
		return "", err
	}
	return posconfig.Link(cfg.BaseURL, pos), nil
}

// WriteLinkQR renders link as a terminal QR code.
func WriteLinkQR(w io.Writer, link string) error {
	code, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("encode qr: %w", err)
	}
	_, err = io.WriteString(w, code.ToSmallString(false))
	return err
}

// OpenLink points a running terminal at link by rewriting its location file.
func OpenLink(configPath, link string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load btcpos config: %w", err)
	}
	fragment := posconfig.FragmentFromLink(link)
	if _, err := posconfig.Decode(fragment); err != nil {
		return err
	}
	return location.New(cfg.LocationFile).Open(link)
}

// ReferralStats fetches the referral statistics and writes them indented.
func ReferralStats(ctx context.Context, configPath string, w io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load btcpos config: %w", err)
	}
	client, err := referral.NewClient(referral.Options{
		Endpoint:  cfg.Referral.Endpoint,
		APIKey:    cfg.Referral.APIKey,
		APISecret: cfg.Referral.APISecret,
	})
	if err != nil {
		return err
	}
	raw, err := client.Stats(ctx)
	if err != nil {
		return err
	}
	pretty, err := referral.Pretty(raw)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, pretty)
	return err
}
