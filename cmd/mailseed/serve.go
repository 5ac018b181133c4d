package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foxzi/mailseed/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin API server",
	Long: `Serve the admin HTTP API (ensure, reseed, wipe, stats, preview) and,
when enabled, the Prometheus metrics endpoint. Pending saga journals are
recovered before the servers start.`,
	RunE: runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the store schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, app.Options{Journal: true})
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Run(cmd.Context())
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println("Schema is up to date")
	return nil
}
