package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/order-tagger/internal/cli"
	"github.com/Veraticus/order-tagger/internal/common"
	"github.com/Veraticus/order-tagger/internal/model"
	"github.com/Veraticus/order-tagger/internal/ofx"
	"github.com/Veraticus/order-tagger/internal/plaid"
)

func importOFXCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import ledger transactions from OFX/QFX files",
		Long: `Import ledger transactions from OFX or QFX (Quicken) files exported from your bank.

Examples:
  # Import a single file
  tagger import-ofx ~/Downloads/chase_jan_2024.qfx

  # Import every QFX file in a directory
  tagger import-ofx '~/Downloads/*.qfx'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			files, err := expandFiles(args)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no files found to import")
			}

			transactions := parseOFXFiles(ctx, cmd.OutOrStdout(), files)
			if len(transactions) == 0 {
				slog.Warn("No transactions found in any file")
				return nil
			}

			if dryRun {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(
					fmt.Sprintf("Dry run: would import %d transactions", len(transactions))))
				return nil
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			return saveImported(ctx, cmd.OutOrStdout(), store, transactions)
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "preview import without saving")
	return cmd
}

// parseOFXFiles parses every file, skipping unreadable ones, and drops
// transactions repeated across overlapping statements.
func parseOFXFiles(ctx context.Context, out io.Writer, files []string) []model.Transaction {
	parser := ofx.NewParser()
	seen := make(map[string]bool)
	var all []model.Transaction

	bar := cli.NewProgressBar(out, len(files), "Parsing statements")
	for _, path := range files {
		transactions, err := parseOFXFile(ctx, parser, path)
		cli.Step(bar)
		if err != nil {
			common.LogError(err, "Failed to parse OFX file", common.Fields{"file": path})
			continue
		}

		added := 0
		for _, tx := range transactions {
			if seen[tx.ID] {
				continue
			}
			seen[tx.ID] = true
			all = append(all, tx)
			added++
		}
		common.LogInfo("Processed file", common.Fields{
			"file":               filepath.Base(path),
			"transactions_found": len(transactions),
			"added":              added,
			"duplicates":         len(transactions) - added,
		})
	}
	_ = bar.Finish()

	return all
}

func parseOFXFile(ctx context.Context, parser *ofx.Parser, path string) ([]model.Transaction, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return parser.ParseFile(ctx, f)
}

func saveImported(ctx context.Context, out io.Writer, saver plaid.TransactionSaver, transactions []model.Transaction) error {
	saved, err := saver.SaveTransactions(ctx, transactions)
	if err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d new transactions (%d already present)",
		saved, len(transactions)-saved)))
	return nil
}
