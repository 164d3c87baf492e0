package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/order-tagger/internal/cli"
	"github.com/Veraticus/order-tagger/internal/common"
	"github.com/Veraticus/order-tagger/internal/config"
	"github.com/Veraticus/order-tagger/internal/sheets"
)

func authSheetsCmd() *cobra.Command {
	var (
		listenAddr string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "auth-sheets",
		Short: "Authorize Google Sheets export",
		Long: `Authorize tagger to write reports to Google Sheets.

Opens Google's consent page, waits for the browser callback and saves the
resulting token. Requires an OAuth client ID and secret, from the sheets
section of the config file or GOOGLE_SHEETS_CLIENT_ID and
GOOGLE_SHEETS_CLIENT_SECRET.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clientID := viper.GetString(sheets.KeyClientID)
			if clientID == "" {
				clientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
			}
			clientSecret := viper.GetString(sheets.KeyClientSecret)
			if clientSecret == "" {
				clientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
			}
			if clientID == "" || clientSecret == "" {
				return common.NewUserError(
					"Google OAuth credentials missing. Set sheets.client_id and sheets.client_secret in the config file.",
					common.ErrMissingConfig)
			}

			tokenFile := viper.GetString(sheets.KeyTokenFile)
			if tokenFile == "" {
				tokenFile = filepath.Join(config.ConfigDir(), "sheets-token.json")
			}

			out := cmd.OutOrStdout()
			_, err := sheets.Authorize(cmd.Context(), sheets.AuthConfig{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				TokenFile:    config.ExpandPath(tokenFile),
				ListenAddr:   listenAddr,
				Timeout:      timeout,
			}, func(url string) {
				fmt.Fprintln(out, cli.FormatPrompt("Open this URL in your browser to authorize access:"))
				fmt.Fprintln(out, url)
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(out, cli.FormatSuccess("Google Sheets authorized. Run 'tagger tag --sheets' to export reports."))
			if viper.GetString(sheets.KeyTokenFile) == "" {
				fmt.Fprintf(out, "Add this to your config to use the token:\n\n  sheets:\n    token_file: %s\n", tokenFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "localhost:8080", "address of the local OAuth callback server")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for the browser callback")
	return cmd
}
