package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/foxzi/mailseed/internal/app"
	"github.com/foxzi/mailseed/internal/models"
	"github.com/foxzi/mailseed/internal/seeder"
)

var generateCmd = &cobra.Command{
	Use:   "generate [session_id]",
	Short: "Create a session and seed it",
	Long: `Create a session and write the full demo dataset into it.

Without an argument a new session ID is generated. An existing unseeded
session with the given ID is seeded in place; a session that is already
seeded is refused, use reset instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

var ensureCmd = &cobra.Command{
	Use:   "ensure <session_id>",
	Short: "Seed a session unless it already is",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnsure,
}

var resetCmd = &cobra.Command{
	Use:   "reset <session_id>",
	Short: "Wipe a session and seed it again",
	Args:  cobra.ExactArgs(1),
	RunE:  runReset,
}

var wipeCmd = &cobra.Command{
	Use:   "wipe <session_id>",
	Short: "Remove a session's seed data and keep the session",
	Args:  cobra.ExactArgs(1),
	RunE:  runWipe,
}

var recoverCmd = &cobra.Command{
	Use:   "recover [session_id]",
	Short: "Undo writes left behind by an interrupted saga",
	Long: `Replay the write journal and delete every row it names.

Without an argument every session with a pending journal is recovered.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRecover,
}

func init() {
	rootCmd.AddCommand(generateCmd, ensureCmd, resetCmd, wipeCmd, recoverCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, app.Options{Journal: true})
	if err != nil {
		return err
	}
	defer a.Close()

	sessionID := ""
	if len(args) == 1 {
		sessionID = args[0]
	}

	out, err := a.Seeder().Generate(cmd.Context(), sessionID)
	if err != nil {
		return printSeedError(err)
	}

	fmt.Printf("Session %s seeded\n", out.Session.ID)
	fmt.Printf("  Expires: %s\n", out.Session.ExpiresAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Chunks:  %d in %s\n\n", out.Written.Chunks, out.Written.Duration.Round(1e6))
	printCounts(out.Written.Counts)
	return nil
}

func runEnsure(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, app.Options{Journal: true})
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.Seeder().EnsureSeeded(cmd.Context(), args[0])
	if err != nil {
		return printSeedError(err)
	}

	if out.Written == nil {
		fmt.Printf("Session %s is already seeded\n", out.Session.ID)
		return nil
	}

	fmt.Printf("Session %s seeded\n\n", out.Session.ID)
	printCounts(out.Written.Counts)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, app.Options{Journal: true})
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.Seeder().Reset(cmd.Context(), args[0])
	if err != nil {
		return printSeedError(err)
	}

	fmt.Printf("Session %s reset: %d rows removed, %d rows written\n\n",
		out.Session.ID, out.Wiped.Deleted.Total(), out.Written.Counts.Total())
	printCounts(out.Written.Counts)
	return nil
}

func runWipe(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, app.Options{Journal: true})
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Seeder().Wipe(cmd.Context(), args[0])
	if err != nil {
		return printSeedError(err)
	}

	fmt.Printf("Session %s wiped\n\n", res.SessionID)
	printCounts(res.Deleted)
	return nil
}

func runRecover(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, app.Options{Journal: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		res, err := a.Seeder().Recover(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Session %s: %d journaled rows removed\n", res.SessionID, res.Deleted.Total())
		return nil
	}

	n, err := a.RecoverPending(cmd.Context())
	fmt.Printf("Recovered %d session(s)\n", n)
	return err
}

// printCounts prints per-entity row counts
func printCounts(c models.EntityCounts) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENTITY\tROWS")
	rows := []struct {
		name string
		n    int
	}{
		{"contacts", c.Contacts},
		{"labels", c.Labels},
		{"threads", c.Threads},
		{"emails", c.Emails},
		{"recipients", c.Recipients},
		{"label assignments", c.LabelAssignments},
		{"attachments", c.Attachments},
		{"snooze entries", c.SnoozeEntries},
		{"signatures", c.Signatures},
		{"filters", c.Filters},
	}
	for _, r := range rows {
		if r.n == 0 && r.name == "filters" {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\n", r.name, r.n)
	}
	fmt.Fprintf(w, "total\t%d\n", c.Total())
	w.Flush()
}

// printSeedError lists every validation problem before returning err
func printSeedError(err error) error {
	var ve *seeder.ValidationFailedError
	if errors.As(err, &ve) {
		printValidationErrors(ve.Errors)
	}
	return err
}
