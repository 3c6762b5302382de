package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const appName = "fundboard"

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "v1.0.0"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Trading fund analytics dashboard",
		Version: version,
		Long: `fundboard renders the fund's precomputed analytics as a dashboard.

It fetches P&L, parameter sweep, seasonal and pairs-spread analytics from
the analytics API and shows them as four independent panels. Use 'serve' for
the browser dashboard and 'snapshot' for a one-shot terminal view.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			if err := setupLogging(cfg.Log, os.Stderr); err != nil {
				return err
			}
			cmd.SetContext(withConfig(cmd.Context(), cfg))
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to YAML configuration file")
	pf.String("api-url", "", "Analytics API base URL (overrides config and environment)")
	pf.Duration("api-timeout", 0, "Per-request analytics API timeout")
	pf.String("log-level", "", "Log level (trace|debug|info|warn|error)")
	pf.String("log-format", "", "Log format (auto|console|json)")

	rootCmd.AddCommand(newServeCmd(), newSnapshotCmd(), newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version)
		},
	}
}
