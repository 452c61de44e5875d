package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maltedev/chem-supplier-scraper/internal/app"
	"github.com/maltedev/chem-supplier-scraper/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "chemscrape",
	Short: "Look up reagent prices, stock and regulatory labels",
	Long:  "Command line client for the Daejung and Duksan catalogue scrapers.",
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Skip the result cache")
}

// startApp loads configuration from the environment, applies flag overrides
// and starts the dependencies. Logs go to stderr so stdout stays parseable.
func startApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := cmd.Flags().GetBool("no-cache"); v {
		cfg.Cache.Backend = "none"
	}

	logger := app.NewLogger(cfg.Logging, os.Stderr)
	return app.New(cmd.Context(), cfg, logger)
}
