package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/order-tagger/internal/cli"
	"github.com/Veraticus/order-tagger/internal/plaid"
)

func syncPlaidCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "sync-plaid",
		Short: "Sync ledger transactions from Plaid",
		Long: `Fetch recent transactions from Plaid and store them in the local ledger.

Credentials are read from the plaid section of the config file or the
TAGGER_PLAID_* environment variables:

  plaid:
    client_id: ...
    secret: ...
    environment: production
    access_token: access-production-...`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			client, err := plaid.NewClient(plaid.Config{
				ClientID:    viper.GetString("plaid.client_id"),
				Secret:      viper.GetString("plaid.secret"),
				Environment: viper.GetString("plaid.environment"),
				AccessToken: viper.GetString("plaid.access_token"),
			})
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			end := time.Now()
			start := end.AddDate(0, 0, -days)
			result, err := plaid.Sync(ctx, client, store, start, end)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
				"Synced %d transactions from %d accounts (%d new, %d pending)",
				result.Fetched, len(result.Accounts), result.New, result.Pending)))
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "number of days of history to fetch")
	return cmd
}
