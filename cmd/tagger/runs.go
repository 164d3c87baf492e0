package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Veraticus/order-tagger/internal/cli"
	"github.com/Veraticus/order-tagger/internal/storage"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the audit log of tag runs",
	}

	cmd.AddCommand(listRunsCmd())
	cmd.AddCommand(showRunCmd())

	return cmd
}

func listRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent tag runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			return printRuns(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show (0 for all)")
	return cmd
}

func showRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the updates applied by one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			updates, err := store.GetRunUpdates(ctx, args[0])
			if err != nil {
				return err
			}
			return printRunUpdates(cmd.OutOrStdout(), updates)
		},
	}
}

func printRuns(out io.Writer, runs []storage.TagRun) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(out, cli.InfoStyle.Render("No runs recorded yet."))
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
		headerStyle.Render("ID"),
		headerStyle.Render("Started"),
		headerStyle.Render("Mode"),
		headerStyle.Render("Updates"),
		headerStyle.Render("Matched"))

	for _, run := range runs {
		mode := "live"
		if run.DryRun {
			mode = "dry-run"
		}
		if run.FinishedAt.IsZero() {
			mode += " (unfinished)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			mode,
			run.Updates,
			matchedSummary(run.Stats))
	}
	return w.Flush()
}

func matchedSummary(stats map[string]int) string {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		if strings.HasSuffix(k, "_match") && stats[k] > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, stats[k]))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func printRunUpdates(out io.Writer, updates []storage.AppliedUpdate) error {
	if len(updates) == 0 {
		_, err := fmt.Fprintln(out, cli.InfoStyle.Render("This run applied no updates."))
		return err
	}

	for _, u := range updates {
		kind := "tag"
		if u.Retag {
			kind = "retag"
		}
		fmt.Fprintf(out, "%s  %-5s  %s\n", u.AppliedAt.Local().Format("2006-01-02 15:04"), kind, u.TransactionID)
		if u.PreviousDescription != "" {
			fmt.Fprintf(out, "    - %s\n", u.PreviousDescription)
		}
		fmt.Fprintf(out, "    + %s\n", u.Description)
		if u.Category != "" || u.Splits > 0 {
			fmt.Fprintf(out, "      category: %s, splits: %d\n", u.Category, u.Splits)
		}
	}
	return nil
}
