package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jsarenik/btcpos/internal/app"
	"github.com/jsarenik/btcpos/internal/posconfig"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "btcpos: %v\n", err)
		return 1
	}
	return 0
}

type globalFlags struct {
	configPath string
	prefsPath  string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "btcpos [link]",
		Short: "Lightning point-of-sale terminal settling to a Liquid wallet",
		Long: "btcpos turns a watch-only Liquid descriptor into a point-of-sale terminal.\n" +
			"Without arguments it resumes the last opened link; pass a terminal link to open it.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := app.Options{
				ConfigPath: flags.configPath,
				PrefsPath:  flags.prefsPath,
				LogLevel:   flags.logLevel,
			}
			if len(args) == 1 {
				opts.Link = args[0]
			}
			return app.Run(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "override config path (optional)")
	root.PersistentFlags().StringVar(&flags.prefsPath, "prefs", "", "override prefs path (optional)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newLinkCmd(flags),
		newOpenCmd(flags),
		newReferralCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newLinkCmd(flags *globalFlags) *cobra.Command {
	var (
		pos           posconfig.Config
		noDescription bool
		noQR          bool
	)
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Generate a terminal link for a descriptor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pos.ShowDescription = !noDescription
			link, err := app.BuildLink(cmd.Context(), flags.configPath, pos)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintln(out, link); err != nil {
				return err
			}
			if noQR {
				return nil
			}
			return app.WriteLinkQR(out, link)
		},
	}
	cmd.Flags().StringVar(&pos.Descriptor, "descriptor", "", "CT descriptor of the receiving wallet")
	cmd.Flags().StringVar(&pos.Currency, "currency", "USD", "fiat currency code")
	cmd.Flags().BoolVar(&pos.ShowSettingsGear, "gear", false, "show the settings key on the POS page")
	cmd.Flags().BoolVar(&noDescription, "no-description", false, "hide the payment description field")
	cmd.Flags().BoolVar(&noQR, "no-qr", false, "print the link only")
	_ = cmd.MarkFlagRequired("descriptor")
	return cmd
}

func newOpenCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "open <link>",
		Short: "Point a running terminal at a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return app.OpenLink(flags.configPath, args[0])
		},
	}
}

func newReferralCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "referral-stats",
		Short: "Print referral statistics from the swap provider",
		Long:  "Requires referral.api_key and referral.api_secret in the config, or API_KEY and API_SECRET in the environment.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.ReferralStats(cmd.Context(), flags.configPath, cmd.OutOrStdout())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}
