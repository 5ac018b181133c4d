package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/foxzi/mailseed/internal/app"
	"github.com/foxzi/mailseed/internal/config"
	"github.com/foxzi/mailseed/internal/store"
)

var (
	cfgFile   string
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mailseed",
	Short: "mailseed - demo mailbox seeder",
	Long: `mailseed writes a realistic demo mailbox (contacts, labels, threads,
messages, attachments and signatures) into a session of the relational
store, and resets or removes it again.

The store is named by MAILSEED_DATABASE_URL and written with the
privileged MAILSEED_SERVICE_KEY. Both can also come from the config file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	RunE:  runConfigValidate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mailseed version %s\n", version)
		if commit != "unknown" {
			fmt.Printf("  commit: %s\n", commit)
		}
		if buildTime != "unknown" {
			fmt.Printf("  built:  %s\n", buildTime)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (optional, environment overrides it)")

	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd, versionCmd)
}

// openApp loads the configuration and opens the store. Commands that
// write, wipe or recover pass Journal so saga mode can use the journal file.
func openApp(cmd *cobra.Command, opts app.Options) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a, err := app.New(cmd.Context(), cfg, version, os.Stderr, opts)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  Database: %s\n", store.Redact(cfg.Database.URL))
	fmt.Printf("  Mode: %s (batch %d, concurrency %d)\n", cfg.Seed.Mode, cfg.Seed.BatchSize, cfg.Seed.Concurrency)
	fmt.Printf("  Session TTL: %s\n", cfg.Seed.SessionTTL)
	if cfg.Journal.Path != "" {
		fmt.Printf("  Journal: %s\n", cfg.Journal.Path)
	} else {
		fmt.Printf("  Journal: in memory\n")
	}
	fmt.Printf("  API: %s\n", cfg.API.ListenAddr)
	if cfg.Metrics.Enabled {
		fmt.Printf("  Metrics: %s%s\n", cfg.Metrics.ListenAddr, cfg.Metrics.Path)
	}

	return nil
}
