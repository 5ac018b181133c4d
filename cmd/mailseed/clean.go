package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/foxzi/mailseed/internal/app"
	"github.com/foxzi/mailseed/internal/seeder"
)

var (
	cleanDryRun         bool
	cleanOlderThanHours int
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove expired sessions and their seed data",
	Long: `Wipe and delete every session past its expiry time.

With --older-than-hours sessions are selected by creation time instead.`,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "Show what would be removed without removing it")
	cleanCmd.Flags().IntVar(&cleanOlderThanHours, "older-than-hours", 0, "Select sessions created more than N hours ago")

	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	if cleanOlderThanHours < 0 {
		return fmt.Errorf("--older-than-hours must not be negative")
	}

	a, err := openApp(cmd, app.Options{Journal: true})
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Seeder().Clean(cmd.Context(), seeder.CleanOptions{
		DryRun:    cleanDryRun,
		OlderThan: time.Duration(cleanOlderThanHours) * time.Hour,
	})
	if err != nil {
		return err
	}

	if len(res.Sessions) == 0 {
		fmt.Println("No sessions to clean")
		return nil
	}

	if cleanDryRun {
		fmt.Println("Dry run mode - no data will be deleted")
		fmt.Println()
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSEEDED\tCREATED\tEXPIRES\tRESULT")
	for _, s := range res.Sessions {
		result := "removed"
		if cleanDryRun {
			result = "would remove"
		} else if msg, failed := res.Failed[s.ID]; failed {
			result = "failed: " + msg
		}
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%s\n",
			s.ID,
			s.IsSeeded,
			s.CreatedAt.Format("2006-01-02 15:04"),
			s.ExpiresAt.Format("2006-01-02 15:04"),
			result,
		)
	}
	w.Flush()

	if !cleanDryRun {
		fmt.Printf("\nRemoved %d of %d session(s)\n", res.Removed, len(res.Sessions))
	}
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d session(s) could not be removed", len(res.Failed))
	}
	return nil
}
