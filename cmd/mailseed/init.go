package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	initOutput      string
	initDatabaseURL string
	initJournalPath string
	initMode        string
	initAPIKey      string
	initMetrics     bool
	initForce       bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Write a mailseed configuration file.

The service key is never written to the file; export it as
MAILSEED_SERVICE_KEY before running mailseed.

Examples:
  # Local sqlite store with a saga journal
  mailseed init --database-url sqlite:///var/lib/mailseed/seed.db --mode saga

  # Postgres store
  mailseed init --database-url postgres://seeder@db.internal:5432/mail -o /etc/mailseed.yaml`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "mailseed.yaml", "Output configuration file path")
	initCmd.Flags().StringVar(&initDatabaseURL, "database-url", "sqlite://mailseed.db", "Store URL (postgres:// or sqlite://)")
	initCmd.Flags().StringVar(&initJournalPath, "journal", "", "Saga journal file (default: next to the config file in saga mode)")
	initCmd.Flags().StringVar(&initMode, "mode", "transaction", "Write mode: transaction or saga")
	initCmd.Flags().StringVar(&initAPIKey, "api-key", "", "Admin API key (auto-generated if not provided)")
	initCmd.Flags().BoolVar(&initMetrics, "metrics", false, "Enable the Prometheus metrics endpoint")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config file")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if initMode != "transaction" && initMode != "saga" {
		return fmt.Errorf("invalid mode: %s (must be transaction or saga)", initMode)
	}

	if _, err := os.Stat(initOutput); err == nil && !initForce {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", initOutput)
	}

	if initAPIKey == "" {
		initAPIKey = generateRandomString(32)
	}
	if initJournalPath == "" && initMode == "saga" {
		initJournalPath = filepath.Join(filepath.Dir(initOutput), "mailseed-journal.db")
	}

	if dir := filepath.Dir(initOutput); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(initOutput, []byte(generateConfig()), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Configuration written to %s\n\n", initOutput)
	fmt.Printf("  API key: %s\n\n", initAPIKey)
	fmt.Println("Next steps:")
	fmt.Println("  export MAILSEED_SERVICE_KEY=<service key>")
	fmt.Printf("  mailseed -c %s preview\n", initOutput)
	fmt.Printf("  mailseed -c %s generate\n", initOutput)

	return nil
}

func generateRandomString(length int) string {
	bytes := make([]byte, length/2)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func generateConfig() string {
	journal := ""
	if initJournalPath != "" {
		journal = fmt.Sprintf(`
journal:
  path: "%s"
  lock_timeout: 5s
`, initJournalPath)
	}

	return fmt.Sprintf(`# mailseed configuration
# MAILSEED_DATABASE_URL, MAILSEED_SERVICE_KEY and MAILSEED_API_KEY override this file.

database:
  url: "%s"

seed:
  mode: %s
  batch_size: 200
  concurrency: 4
  requests_per_second: 0
  session_ttl: 24h
%s
api:
  listen_addr: ":8080"
  api_key: "%s"

metrics:
  enabled: %t
  listen_addr: ":9090"
  path: "/metrics"
  allowed_ips:
    - "127.0.0.1"

logging:
  level: info
  format: json
`, initDatabaseURL, initMode, journal, initAPIKey, initMetrics)
}
