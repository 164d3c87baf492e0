package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/order-tagger/internal/cli"
	"github.com/Veraticus/order-tagger/internal/storage"
)

func recategorizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recategorize <transaction-id> <category>",
		Short: "Change the category of a transaction",
		Long: `Assign a transaction to another category the way a ledger user would.

A transaction tagged before keeps its new category on later runs, and the next
run learns it as a personal override for the same item title.

Examples:
  # File a tagged book purchase under Gifts
  tagger recategorize 2024030301 Gifts`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			return recategorize(ctx, cmd.OutOrStdout(), store, args[0], args[1])
		},
	}
}

func recategorize(ctx context.Context, out io.Writer, store *storage.SQLiteStorage, id, name string) error {
	before, err := store.GetTransactionByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load transaction: %w", err)
	}
	if strings.EqualFold(before.Category, strings.TrimSpace(name)) {
		fmt.Fprintln(out, cli.InfoStyle.Render(fmt.Sprintf("Transaction %s is already in %q", id, before.Category)))
		return nil
	}

	cat, err := store.SetTransactionCategory(ctx, id, name)
	if err != nil {
		return fmt.Errorf("failed to recategorize transaction: %w", err)
	}

	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%s: %s -> %s", before.Description, before.Category, cat.Name)))
	switch {
	case before.AppliedFingerprint == "":
		fmt.Fprintln(out, cli.FormatWarning("This transaction has not been tagged yet; the next tag run will set its category."))
	case len(before.Splits) > 0:
		fmt.Fprintln(out, cli.FormatInfo("Split categories are unchanged; only item lines recategorized in the ledger are learned."))
	}
	return nil
}
