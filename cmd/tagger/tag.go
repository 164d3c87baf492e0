package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/order-tagger/internal/cli"
	"github.com/Veraticus/order-tagger/internal/common"
	"github.com/Veraticus/order-tagger/internal/config"
	"github.com/Veraticus/order-tagger/internal/model"
	"github.com/Veraticus/order-tagger/internal/orderhistory"
	"github.com/Veraticus/order-tagger/internal/sheets"
	"github.com/Veraticus/order-tagger/internal/storage"
	"github.com/Veraticus/order-tagger/internal/tagger"
	"github.com/Veraticus/order-tagger/internal/tui"
)

// tagFlags are the per-invocation inputs of the tag command.
type tagFlags struct {
	Since          time.Time
	OrderFiles     []string
	ItemFiles      []string
	RefundFiles    []string
	DryRun         bool
	PrintUnmatched bool
}

// tagRunner runs one tagging pass against the ledger. Optional collaborators
// are skipped when nil.
type tagRunner struct {
	in         io.Reader
	out        io.Writer
	store      *storage.SQLiteStorage
	interrupts *cli.InterruptHandler
	review     func(ctx context.Context, updates []model.Update) ([]model.Update, error)
	sink       sheets.ReportWriter
	backupDir  string
	opts       config.Options
}

func tagCmd() *cobra.Command {
	var (
		orderFiles, itemFiles, refundFiles []string
		since                              string
		dryRun, review, printUnmatched     bool
		exportSheets, noBackup             bool
	)

	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Match purchase history to ledger transactions and tag them",
		Long: `Match orders and refunds from purchase-history reports to ledger
transactions, then rewrite descriptions, categories and splits.

Examples:
  # Preview what would change
  tagger tag --orders ~/Downloads/orders.csv --items ~/Downloads/items.csv --dry-run

  # Apply, reviewing each update first
  tagger tag --orders orders.csv --items items.csv --refunds refunds.csv --review

  # Apply and export the report to Google Sheets
  tagger tag --orders 'reports/*orders*.csv' --items 'reports/*items*.csv' --sheets`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			flags := tagFlags{DryRun: dryRun, PrintUnmatched: printUnmatched}
			var err error
			if flags.OrderFiles, err = expandFiles(orderFiles); err != nil {
				return err
			}
			if len(flags.OrderFiles) == 0 {
				return common.NewUserError("No orders report found. Pass one with --orders.", common.ErrMissingConfig)
			}
			if flags.ItemFiles, err = expandFiles(itemFiles); err != nil {
				return err
			}
			if flags.RefundFiles, err = expandFiles(refundFiles); err != nil {
				return err
			}
			if since != "" {
				if flags.Since, err = time.Parse("2006-01-02", since); err != nil {
					return fmt.Errorf("%w: --since must be YYYY-MM-DD: %w", common.ErrInvalidConfig, err)
				}
			}

			opts, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			interrupts := cli.NewInterruptHandler(cmd.OutOrStdout())
			ctx, cancel := interrupts.HandleInterrupts(ctx)
			defer cancel()

			runner := &tagRunner{
				in:         cmd.InOrStdin(),
				out:        cmd.OutOrStdout(),
				store:      store,
				interrupts: interrupts,
				opts:       opts,
			}
			if !noBackup {
				runner.backupDir = backupDir(store.Path())
			}
			if review {
				runner.review = func(ctx context.Context, updates []model.Update) ([]model.Update, error) {
					return tui.Review(ctx, updates, cmd.InOrStdin(), cmd.OutOrStdout())
				}
			}
			if exportSheets {
				sheetsCfg, err := sheets.LoadConfig(viper.GetViper())
				if err != nil {
					return err
				}
				writer, err := sheets.NewWriter(ctx, sheetsCfg, common.Component("sheets"))
				if err != nil {
					return err
				}
				runner.sink = writer
			}

			_, err = runner.run(ctx, flags)
			if err != nil && interrupts.WasInterrupted() {
				return nil
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&orderFiles, "orders", nil, "orders report CSV files or globs (required)")
	f.StringSliceVar(&itemFiles, "items", nil, "items report CSV files or globs")
	f.StringSliceVar(&refundFiles, "refunds", nil, "refunds report CSV files or globs")
	f.StringVar(&since, "since", "", "only consider ledger transactions on or after this date (YYYY-MM-DD)")
	f.BoolVarP(&dryRun, "dry-run", "d", false, "print proposed updates without applying them")
	f.BoolVar(&review, "review", false, "review proposed updates interactively before applying")
	f.BoolVar(&printUnmatched, "print-unmatched", false, "list orders and refunds without a matching transaction")
	f.BoolVar(&exportSheets, "sheets", false, "export the run report to Google Sheets")
	f.BoolVar(&noBackup, "no-backup", false, "skip the database backup before applying updates")

	f.Int("days-window", 3, "days between purchase and charge to consider a match")
	f.Bool("symmetric-window", false, "also match charges posted before the purchase date")
	f.String("amount-tolerance", "0", "largest amount difference still considered a match")
	f.Bool("verbose-itemize", false, "itemize every matched transaction, even single-item ones")
	f.Bool("no-itemize", false, "never split transactions into items")
	f.Bool("retag-changed", false, "retag transactions whose tag is out of date")
	f.Bool("prompt-retag", false, "ask before retagging an already tagged transaction")
	f.Bool("no-tag-categories", false, "leave transaction categories unchanged")
	f.Bool("do-not-predict-categories", false, "use the default category instead of predicting one per item")
	f.String("description-prefix-override", "", "prefix for tagged order descriptions")
	f.String("description-refund-prefix-override", "", "prefix for tagged refund descriptions")
	f.Int("num-updates", 0, "stop after this many updates (0 for no limit)")

	_ = cmd.MarkFlagRequired("orders")
	for key, name := range map[string]string{
		config.KeyDaysWindow:                      "days-window",
		config.KeySymmetricWindow:                 "symmetric-window",
		config.KeyAmountTolerance:                 "amount-tolerance",
		config.KeyItemizeAlways:                   "verbose-itemize",
		config.KeyNoItemize:                       "no-itemize",
		config.KeyForceRetag:                      "retag-changed",
		config.KeyConfirmRetag:                    "prompt-retag",
		config.KeyNoTagCategories:                 "no-tag-categories",
		config.KeyNoPredictCategories:             "do-not-predict-categories",
		config.KeyDescriptionPrefixOverride:       "description-prefix-override",
		config.KeyDescriptionRefundPrefixOverride: "description-refund-prefix-override",
		config.KeyNumUpdates:                      "num-updates",
	} {
		_ = viper.BindPFlag(key, f.Lookup(name))
	}

	return cmd
}

// run reads the reports, reconciles them against the stored ledger, applies
// the resulting updates unless this is a dry run, and reports the outcome.
func (r *tagRunner) run(ctx context.Context, flags tagFlags) (*tagger.Report, error) {
	in, err := r.readInput(ctx, flags)
	if err != nil {
		return nil, err
	}

	var confirmer tagger.Confirmer
	var prompter *cli.Prompter
	if r.opts.ConfirmRetag {
		prompter = cli.NewPrompter(r.in, r.out)
		confirmer = prompter
	}

	engine, err := tagger.NewEngine(r.opts, confirmer)
	if err != nil {
		return nil, err
	}
	res, err := engine.Run(ctx, in)
	if err != nil {
		return nil, err
	}
	if prompter != nil {
		ps := prompter.Stats()
		slog.Info("Retag prompts answered", "asked", ps.Asked, "accepted", ps.Accepted, "declined", ps.Declined)
	}

	if r.review != nil && len(res.Updates) > 0 {
		approved, err := r.review(ctx, res.Updates)
		if err != nil {
			if errors.Is(err, tui.ErrReviewAborted) {
				return nil, common.NewUserError("Review aborted. No updates were applied.", err)
			}
			return nil, err
		}
		slog.Info("Reviewed updates", "proposed", len(res.Updates), "approved", len(approved))
		res.Updates = approved
	}

	if err := r.record(ctx, flags.DryRun, res); err != nil {
		return nil, err
	}

	report := tagger.NewReport(res, flags.DryRun)
	if err := cli.NewPrinter(r.out).PrintReport(report, flags.PrintUnmatched); err != nil {
		return nil, err
	}

	if r.sink != nil {
		if err := r.sink.WriteReport(ctx, report); err != nil {
			return &report, fmt.Errorf("failed to export report: %w", err)
		}
		fmt.Fprintln(r.out, cli.FormatSuccess("Report exported to Google Sheets"))
	}
	return &report, nil
}

func (r *tagRunner) readInput(ctx context.Context, flags tagFlags) (tagger.Input, error) {
	var in tagger.Input

	reports := []struct {
		rows  *[]orderhistory.RawRow
		name  string
		files []string
	}{
		{&in.OrderRows, orderhistory.ReportOrders, flags.OrderFiles},
		{&in.ItemRows, orderhistory.ReportItems, flags.ItemFiles},
		{&in.RefundRows, orderhistory.ReportRefunds, flags.RefundFiles},
	}

	total := len(flags.OrderFiles) + len(flags.ItemFiles) + len(flags.RefundFiles)
	bar := cli.NewProgressBar(r.out, total, "Reading reports")
	for _, rep := range reports {
		for _, path := range rep.files {
			rows, err := orderhistory.ReadCSVFile(path)
			if err != nil {
				return in, fmt.Errorf("failed to read %s report %s: %w", rep.name, path, err)
			}
			*rep.rows = append(*rep.rows, rows...)
			cli.Step(bar)
		}
	}
	_ = bar.Finish()

	ledger, err := r.store.GetTransactions(ctx, flags.Since)
	if err != nil {
		return in, err
	}
	if len(ledger) == 0 {
		slog.Warn("Ledger is empty; import transactions with import-ofx or sync-plaid first")
	}
	in.Ledger = ledger

	categories, err := r.store.CategoryIndex(ctx)
	if err != nil {
		return in, err
	}
	in.Categories = categories
	return in, nil
}

// record stores the run in the audit log and, for live runs, applies the
// updates after taking a backup.
func (r *tagRunner) record(ctx context.Context, dryRun bool, res *tagger.Result) error {
	run, err := r.store.StartRun(ctx, dryRun)
	if err != nil {
		return err
	}

	if !dryRun && len(res.Updates) > 0 {
		if r.backupDir != "" {
			if _, err := r.store.Backup(ctx, r.backupDir); err != nil {
				return err
			}
		}
		if r.interrupts != nil {
			r.interrupts.SetApplying(true)
			defer r.interrupts.SetApplying(false)
		}
		if err := r.store.ApplyUpdates(ctx, run.ID, res.Updates); err != nil {
			return fmt.Errorf("failed to apply updates: %w", err)
		}
	}

	return r.store.FinishRun(ctx, run, res.Stats.Snapshot())
}
