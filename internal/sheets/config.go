// Package sheets exports tagging reports to Google Sheets.
package sheets

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/order-tagger/internal/common"
	"github.com/Veraticus/order-tagger/internal/config"
)

// Viper keys for the sheets export.
const (
	KeyServiceAccountPath = "sheets.service_account_path"
	KeyClientID           = "sheets.client_id"
	KeyClientSecret       = "sheets.client_secret"
	KeyRefreshToken       = "sheets.refresh_token"
	KeyTokenFile          = "sheets.token_file"
	KeySpreadsheetID      = "sheets.spreadsheet_id"
	KeySpreadsheetName    = "sheets.spreadsheet_name"
	KeyTimeZone           = "sheets.time_zone"
)

// DefaultSpreadsheetName is the title of a spreadsheet created on first export.
const DefaultSpreadsheetName = "Order Tagger Report"

// Config holds the configuration for the Google Sheets writer.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	TokenFile          string
	ServiceAccountPath string
	SpreadsheetID      string
	SpreadsheetName    string
	TimeZone           string
	BatchSize          int
	RetryAttempts      int
	RetryDelay         time.Duration
	EnableFormatting   bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EnableFormatting: true,
		SpreadsheetName:  DefaultSpreadsheetName,
		TimeZone:         "America/New_York",
		BatchSize:        1000,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
	}
}

// LoadConfig reads the sheets configuration from v, falling back to the
// GOOGLE_SHEETS_* environment variables, and validates it.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()

	lookup := func(key, env string) string {
		if s := v.GetString(key); s != "" {
			return s
		}
		return os.Getenv(env)
	}

	cfg.ServiceAccountPath = config.ExpandPath(lookup(KeyServiceAccountPath, "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"))
	cfg.ClientID = lookup(KeyClientID, "GOOGLE_SHEETS_CLIENT_ID")
	cfg.ClientSecret = lookup(KeyClientSecret, "GOOGLE_SHEETS_CLIENT_SECRET")
	cfg.RefreshToken = lookup(KeyRefreshToken, "GOOGLE_SHEETS_REFRESH_TOKEN")
	cfg.TokenFile = config.ExpandPath(lookup(KeyTokenFile, "GOOGLE_SHEETS_TOKEN_FILE"))
	cfg.SpreadsheetID = lookup(KeySpreadsheetID, "GOOGLE_SHEETS_SPREADSHEET_ID")
	if name := lookup(KeySpreadsheetName, "GOOGLE_SHEETS_SPREADSHEET_NAME"); name != "" {
		cfg.SpreadsheetName = name
	}
	if tz := v.GetString(KeyTimeZone); tz != "" {
		cfg.TimeZone = tz
	}

	// A token saved by the auth command stands in for a configured refresh token
	if cfg.RefreshToken == "" && cfg.TokenFile != "" {
		if token, err := LoadToken(cfg.TokenFile); err == nil {
			cfg.RefreshToken = token.RefreshToken
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	hasOAuth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	hasServiceAccount := c.ServiceAccountPath != ""

	if !hasOAuth && !hasServiceAccount {
		return fmt.Errorf("%w: no authentication method configured", common.ErrMissingConfig)
	}
	if hasOAuth && hasServiceAccount {
		return fmt.Errorf("%w: multiple authentication methods configured; use either OAuth2 or service account", common.ErrInvalidConfig)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", common.ErrInvalidConfig)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("%w: retry attempts cannot be negative", common.ErrInvalidConfig)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: retry delay cannot be negative", common.ErrInvalidConfig)
	}
	return nil
}
