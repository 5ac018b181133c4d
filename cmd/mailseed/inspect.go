package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/foxzi/mailseed/internal/app"
	"github.com/foxzi/mailseed/internal/catalog"
)

var exportOutput string

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Validate the dataset and summarize it without touching the store",
	RunE:  runPreview,
}

var statsCmd = &cobra.Command{
	Use:   "stats <session_id>",
	Short: "Show what is stored for a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the assembled dataset as YAML",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")

	rootCmd.AddCommand(previewCmd, statsCmd, exportCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := catalog.Build()
	if err != nil {
		return err
	}

	if errs := catalog.Validate(cfg); len(errs) > 0 {
		printValidationErrors(errs)
		return fmt.Errorf("seed data has %d validation error(s)", len(errs))
	}

	printSummary(os.Stdout, catalog.Summarize(cfg))
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Seeder().Stats(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Session %s\n", stats.SessionID)
	if stats.IsSeeded && stats.SeededAt != nil {
		fmt.Printf("  Seeded: %s\n\n", stats.SeededAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Printf("  Seeded: no\n\n")
	}
	printCounts(stats.Counts)

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tTHREADS")
	for _, c := range catalog.Categories {
		fmt.Fprintf(w, "%s\t%d\n", c, stats.Categories[c])
	}
	w.Flush()

	f := stats.Flags
	fmt.Printf("\nUnread %d, starred %d, important %d, drafts %d, spam %d, trash %d, archived %d, snoozed %d\n",
		f.Unread, f.Starred, f.Important, f.Draft, f.Spam, f.Trash, f.Archived, f.Snoozed)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := catalog.Build()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}

	if exportOutput == "" {
		_, err = os.Stdout.Write(data)
		return err
	}

	if err := os.WriteFile(exportOutput, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOutput, err)
	}
	fmt.Fprintf(os.Stderr, "Dataset written to %s (%d threads, %d messages)\n",
		exportOutput, len(cfg.Threads), cfg.MessageCount())
	return nil
}

// printSummary writes a dataset summary as aligned tables
func printSummary(out io.Writer, s *catalog.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "ENTITY\tCOUNT")
	fmt.Fprintf(w, "contacts\t%d\n", s.Contacts)
	fmt.Fprintf(w, "labels\t%d\n", s.Labels)
	fmt.Fprintf(w, "threads\t%d\n", s.Threads)
	fmt.Fprintf(w, "messages\t%d\n", s.Messages)
	fmt.Fprintf(w, "unread\t%d\n", s.Unread)
	fmt.Fprintf(w, "attachments\t%d\n", s.Attachments)
	fmt.Fprintf(w, "signatures\t%d\n", s.Signatures)
	fmt.Fprintln(w, "\t")

	fmt.Fprintln(w, "CATEGORY\tTHREADS")
	for _, c := range catalog.Categories {
		fmt.Fprintf(w, "%s\t%d\n", c, s.Categories[c])
	}
	fmt.Fprintln(w, "\t")

	fmt.Fprintln(w, "FLAG\tTHREADS")
	fmt.Fprintf(w, "starred\t%d\n", s.Flags.Starred)
	fmt.Fprintf(w, "important\t%d\n", s.Flags.Important)
	fmt.Fprintf(w, "draft\t%d\n", s.Flags.Draft)
	fmt.Fprintf(w, "spam\t%d\n", s.Flags.Spam)
	fmt.Fprintf(w, "trash\t%d\n", s.Flags.Trash)
	fmt.Fprintf(w, "archived\t%d\n", s.Flags.Archived)
	fmt.Fprintf(w, "snoozed\t%d\n", s.Flags.Snoozed)

	if len(s.LabelUsage) > 0 {
		fmt.Fprintln(w, "\t")
		fmt.Fprintln(w, "LABEL\tTHREADS")
		names := make([]string, 0, len(s.LabelUsage))
		for name := range s.LabelUsage {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(w, "%s\t%d\n", name, s.LabelUsage[name])
		}
	}

	w.Flush()
}

// printValidationErrors lists every problem on stderr
func printValidationErrors(errs []catalog.ValidationError) {
	fmt.Fprintf(os.Stderr, "Seed data is invalid (%d error(s)):\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "  - %s\n", e)
	}
}
