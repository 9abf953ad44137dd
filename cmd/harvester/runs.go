// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/harvester/internal/runstore"
	"github.com/pdiddy/harvester/pkg/types"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the history of harvest runs",
	Long: `Runs reads the local run history written by "harvester harvest". Use list for
one line per run and show for the full report of a single run.`,
}

// --- list subcommand ---

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent harvest runs, newest first",
	RunE:  runRunsList,
}

func runRunsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ruleSet, _ := cmd.Flags().GetString("rule-set")
	limit, _ := cmd.Flags().GetInt("max-runs")
	format, _ := cmd.Flags().GetString("format")

	store, err := runstore.Open(cfg.Runs)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(context.Background(), runstore.ListOptions{RuleSet: ruleSet, Limit: limit})
	if err != nil {
		return err
	}
	if format != "table" {
		return runstore.Export(os.Stdout, runs, format)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}
	fmt.Fprintf(os.Stdout, "%-8s  %-20s  %-20s  %-10s  %8s  %8s  %6s\n",
		"Run", "Rule set", "Started", "Duration", "Stored", "Failed", "Errors")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 92))
	for _, r := range runs {
		name := r.RuleSet
		if len(name) > 20 {
			name = name[:17] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-8s  %-20s  %-20s  %-10s  %8d  %8d  %6d\n",
			shortID(r.RunID), name, r.Started.Local().Format(time.DateTime),
			r.Duration().Round(time.Second), r.Successful, r.Failed, r.Errors)
	}
	return nil
}

// --- show subcommand ---

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the full report of one run",
	Long: `Show prints the report of the run whose id starts with the given prefix:
stored and failed records and every message. Use --format json or yaml for
machine-readable output.`,
	Args: cobra.ExactArgs(1),
	RunE: runRunsShow,
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")

	store, err := runstore.Open(cfg.Runs)
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := store.Get(context.Background(), args[0])
	if err != nil {
		return err
	}
	if format != "table" {
		return runstore.Export(os.Stdout, report, format)
	}

	printReport(os.Stdout, report)
	if n := report.FailedCount(); n > 0 {
		fmt.Fprintf(os.Stdout, "\nFailed records:\n")
		for _, id := range report.FailedIDs() {
			fmt.Fprintf(os.Stdout, "  %s: %s\n", id, report.Failed[id])
		}
	}
	if len(report.Messages) > 0 {
		fmt.Fprintf(os.Stdout, "\nMessages:\n")
		for _, m := range report.Messages {
			fmt.Fprintf(os.Stdout, "  %s  %-5s  %s\n", m.Time.Local().Format(time.DateTime), m.Level, m.Text)
		}
	}
	return nil
}

// printReport writes the summary block of a run report.
func printReport(w io.Writer, r *types.Report) {
	fmt.Fprintf(w, "Run %s (%s %s)\n", r.RunID, r.RuleSet, r.RuleSetVersion)
	fmt.Fprintf(w, "  endpoint:    %s\n", r.Endpoint)
	fmt.Fprintf(w, "  started:     %s\n", r.Started.Local().Format(time.DateTime))
	if !r.Finished.IsZero() {
		fmt.Fprintf(w, "  duration:    %s\n", r.Finished.Sub(r.Started).Round(time.Millisecond))
	}
	fmt.Fprintf(w, "  source:      %d records\n", r.SourceTotal)
	fmt.Fprintf(w, "  identified:  %d\n", r.TotalIdentified)
	fmt.Fprintf(w, "  stored:      %d\n", r.SuccessCount())
	fmt.Fprintf(w, "  failed:      %d\n", r.FailedCount())
	fmt.Fprintf(w, "  warnings:    %d\n", len(r.MessagesAt(types.LevelWarn)))
	fmt.Fprintf(w, "  errors:      %d\n", len(r.MessagesAt(types.LevelError)))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	runsListCmd.Flags().String("rule-set", "", "only runs of this rule set")
	runsListCmd.Flags().Int("max-runs", 20, "maximum number of runs")
	runsListCmd.Flags().String("format", "table", "output format: table, json, yaml")
	runsShowCmd.Flags().String("format", "table", "output format: table, json, yaml")
	runsCmd.PersistentFlags().String("runs-dir", "", "run history directory")

	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
