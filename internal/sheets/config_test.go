package sheets

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/Veraticus/order-tagger/internal/common"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		wantErr error
		name    string
		errMsg  string
		config  Config
	}{
		{
			name: "valid oauth config",
			config: Config{
				ClientID:      "test-client",
				ClientSecret:  "test-secret",
				RefreshToken:  "test-token",
				BatchSize:     100,
				RetryAttempts: 3,
				RetryDelay:    time.Second,
			},
		},
		{
			name: "valid service account config",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
			},
		},
		{
			name: "partial oauth credentials",
			config: Config{
				ClientID:     "test-client",
				RefreshToken: "test-token",
				BatchSize:    100,
			},
			wantErr: common.ErrMissingConfig,
			errMsg:  "no authentication method configured",
		},
		{
			name: "multiple auth methods",
			config: Config{
				ClientID:           "test-client",
				ClientSecret:       "test-secret",
				RefreshToken:       "test-token",
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
			},
			wantErr: common.ErrInvalidConfig,
			errMsg:  "multiple authentication methods configured",
		},
		{
			name: "invalid batch size",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
			},
			wantErr: common.ErrInvalidConfig,
			errMsg:  "batch size must be positive",
		},
		{
			name: "negative retry attempts",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
				RetryAttempts:      -1,
			},
			wantErr: common.ErrInvalidConfig,
			errMsg:  "retry attempts cannot be negative",
		},
		{
			name: "negative retry delay",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
				RetryDelay:         -time.Second,
			},
			wantErr: common.ErrInvalidConfig,
			errMsg:  "retry delay cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func clearSheetsEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{
		"GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH",
		"GOOGLE_SHEETS_CLIENT_ID",
		"GOOGLE_SHEETS_CLIENT_SECRET",
		"GOOGLE_SHEETS_REFRESH_TOKEN",
		"GOOGLE_SHEETS_TOKEN_FILE",
		"GOOGLE_SHEETS_SPREADSHEET_ID",
		"GOOGLE_SHEETS_SPREADSHEET_NAME",
	} {
		t.Setenv(env, "")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("viper keys win over environment", func(t *testing.T) {
		clearSheetsEnv(t)
		t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "from-env")

		v := viper.New()
		v.Set(KeyServiceAccountPath, "/keys/sa.json")
		v.Set(KeySpreadsheetID, "from-viper")

		cfg, err := LoadConfig(v)
		require.NoError(t, err)
		assert.Equal(t, "/keys/sa.json", cfg.ServiceAccountPath)
		assert.Equal(t, "from-viper", cfg.SpreadsheetID)
		assert.Equal(t, DefaultSpreadsheetName, cfg.SpreadsheetName)
		assert.Equal(t, 1000, cfg.BatchSize)
	})

	t.Run("environment fallback", func(t *testing.T) {
		clearSheetsEnv(t)
		t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "id")
		t.Setenv("GOOGLE_SHEETS_CLIENT_SECRET", "secret")
		t.Setenv("GOOGLE_SHEETS_REFRESH_TOKEN", "refresh")
		t.Setenv("GOOGLE_SHEETS_SPREADSHEET_NAME", "Purchases")

		cfg, err := LoadConfig(viper.New())
		require.NoError(t, err)
		assert.Equal(t, "id", cfg.ClientID)
		assert.Equal(t, "refresh", cfg.RefreshToken)
		assert.Equal(t, "Purchases", cfg.SpreadsheetName)
	})

	t.Run("saved token supplies refresh token", func(t *testing.T) {
		clearSheetsEnv(t)
		tokenFile := filepath.Join(t.TempDir(), "token.json")
		require.NoError(t, SaveToken(tokenFile, &oauth2.Token{RefreshToken: "saved"}))

		v := viper.New()
		v.Set(KeyClientID, "id")
		v.Set(KeyClientSecret, "secret")
		v.Set(KeyTokenFile, tokenFile)

		cfg, err := LoadConfig(v)
		require.NoError(t, err)
		assert.Equal(t, "saved", cfg.RefreshToken)
	})

	t.Run("nothing configured", func(t *testing.T) {
		clearSheetsEnv(t)
		_, err := LoadConfig(viper.New())
		assert.ErrorIs(t, err, common.ErrMissingConfig)
	})
}
