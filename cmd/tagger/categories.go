package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Veraticus/order-tagger/internal/cli"
	"github.com/Veraticus/order-tagger/internal/model"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage ledger categories",
		Long:  `List and add the ledger categories that tagged transactions and splits are assigned to.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			categories, err := store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}
			return printCategories(cmd.OutOrStdout(), categories)
		},
	}
}

func addCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>...",
		Short: "Add categories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			for _, name := range args {
				cat, err := store.CreateCategory(ctx, name)
				if err != nil {
					return fmt.Errorf("failed to create category: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Category %q has id %d", cat.Name, cat.ID)))
			}
			return nil
		},
	}
}

func printCategories(out io.Writer, categories []model.Category) error {
	if len(categories) == 0 {
		_, err := fmt.Fprintln(out, cli.InfoStyle.Render("No categories found. Use 'tagger categories add' to create one."))
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	fmt.Fprintf(w, "%s\t%s\t%s\n",
		headerStyle.Render("ID"),
		headerStyle.Render("Name"),
		headerStyle.Render("Created"))
	fmt.Fprintf(w, "%s\t%s\t%s\n",
		strings.Repeat("-", 4),
		strings.Repeat("-", 24),
		strings.Repeat("-", 10))

	for _, cat := range categories {
		fmt.Fprintf(w, "%d\t%s\t%s\n", cat.ID, cat.Name, cat.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}
