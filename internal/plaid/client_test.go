package plaid

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/order-tagger/internal/common"
	"github.com/Veraticus/order-tagger/internal/model"
)

func validConfig() Config {
	return Config{
		ClientID:    "test-client-id",
		Secret:      "test-secret",
		Environment: "sandbox",
		AccessToken: "test-token",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		mutate  func(*Config)
		wantErr error
		name    string
		errMsg  string
	}{
		{
			name:   "valid sandbox config",
			mutate: func(*Config) {},
		},
		{
			name:   "valid production config",
			mutate: func(c *Config) { c.Environment = "production" },
		},
		{
			name:    "missing client ID",
			mutate:  func(c *Config) { c.ClientID = "" },
			wantErr: common.ErrMissingConfig,
			errMsg:  "plaid client ID is required",
		},
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.Secret = "" },
			wantErr: common.ErrMissingConfig,
			errMsg:  "plaid secret is required",
		},
		{
			name:    "missing access token",
			mutate:  func(c *Config) { c.AccessToken = "" },
			wantErr: common.ErrMissingConfig,
			errMsg:  "plaid access token is required",
		},
		{
			name:    "missing environment",
			mutate:  func(c *Config) { c.Environment = "" },
			wantErr: common.ErrMissingConfig,
			errMsg:  "plaid environment is required",
		},
		{
			name:    "development is no longer offered",
			mutate:  func(c *Config) { c.Environment = "development" },
			wantErr: common.ErrInvalidConfig,
			errMsg:  "invalid Plaid environment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
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

func TestNewClient(t *testing.T) {
	client, err := NewClient(validConfig())
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, "test-token", client.accessToken)
	assert.Equal(t, 3, client.retry.MaxAttempts)

	cfg := validConfig()
	cfg.Secret = ""
	_, err = NewClient(cfg)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestClient_GetTransactions_Validation(t *testing.T) {
	client, err := NewClient(validConfig())
	require.NoError(t, err)

	start := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	//nolint:staticcheck // nil context is the case under test
	_, err = client.GetTransactions(nil, start, end)
	assert.EqualError(t, err, "context cannot be nil")

	_, err = client.GetTransactions(context.Background(), start, end)
	assert.EqualError(t, err, "start date must be before end date")
}

func TestMapPlaidTransaction(t *testing.T) {
	pt := plaid.Transaction{}
	pt.SetTransactionId("plaid-tx-1")
	pt.SetAccountId("acct-1")
	pt.SetDate("2024-03-03")
	pt.SetName("AMAZON MKTPL*2K3JD8")
	pt.SetMerchantName("AMAZON MARKETPLACE INC")
	pt.SetAmount(21.6)
	pt.SetPending(true)
	pt.SetCategory([]string{"Shops", "Digital Purchase"})

	tx, err := mapTransaction(pt)
	require.NoError(t, err)

	assert.Equal(t, "plaid-tx-1", tx.ID)
	assert.Equal(t, "acct-1", tx.AccountID)
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), tx.Date)
	assert.Equal(t, "AMAZON MKTPL*2K3JD8", tx.Description)
	assert.Equal(t, "Amazon Marketplace", tx.Merchant)
	assert.Equal(t, model.Micro(21_600_000), tx.Amount)
	assert.Equal(t, "Digital Purchase", tx.Category)
	assert.True(t, tx.Pending)
}

func TestMapPlaidTransaction_Fallbacks(t *testing.T) {
	pt := plaid.Transaction{}
	pt.SetTransactionId("plaid-tx-2")
	pt.SetDate("2024-03-06")
	pt.SetName("WALMART 123456789")
	pt.SetAmount(-16.2)

	tx, err := mapTransaction(pt)
	require.NoError(t, err)
	assert.Equal(t, "Walmart", tx.Merchant)
	assert.Equal(t, model.Micro(-16_200_000), tx.Amount)
	assert.Empty(t, tx.Category)
	assert.False(t, tx.Pending)

	pt.SetDate("03/06/2024")
	_, err = mapTransaction(pt)
	assert.ErrorIs(t, err, ErrBadDate)
}

func TestCleanMerchantName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"STARBUCKS CORP", "Starbucks"},
		{"WALMART 123456789", "Walmart"},
		{"uber   eats", "Uber Eats"},
		{"ACME WIDGETS INC LLC", "Acme Widgets"},
		{"SHOP 123", "Shop 123"},
		{"O'REILLY MEDIA", "O'Reilly Media"},
		{"THE CO", "The"},
		{"CO", "Co"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, cleanMerchantName(tt.input))
		})
	}
}

func TestIsReference(t *testing.T) {
	assert.True(t, isReference("0123456789"))
	assert.False(t, isReference("12345"), "short numbers are kept")
	assert.False(t, isReference("12a4567"))
	assert.False(t, isReference(""))
}

type fakeSaver struct {
	err   error
	saved []model.Transaction
}

func (f *fakeSaver) SaveTransactions(_ context.Context, transactions []model.Transaction) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.saved = append(f.saved, transactions...)
	return len(transactions), nil
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	stub := &StubFetcher{
		Accounts: []string{"acct-1"},
		Transactions: []model.Transaction{
			{ID: "tx-1", Date: start, Description: "AMZN Mktp US", Amount: 21_600_000},
			{ID: "tx-2", Date: start, Description: "AMZN Mktp US", Amount: 5_000_000, Pending: true},
		},
	}

	saver := &fakeSaver{}
	result, err := Sync(ctx, stub, saver, start, end)
	require.NoError(t, err)

	assert.Equal(t, []string{"acct-1"}, result.Accounts)
	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 1, result.Pending)
	assert.Equal(t, 2, result.New)
	assert.Len(t, saver.saved, 2)

	assert.Equal(t, []Window{{Start: start, End: end}}, stub.Windows)
	assert.Equal(t, 1, stub.AccountCalls)
}

func TestSync_Errors(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("fetch failure", func(t *testing.T) {
		stub := &StubFetcher{TransactionsErr: common.ErrPlaidRateLimit}
		_, err := Sync(ctx, stub, &fakeSaver{}, now, now)
		assert.ErrorIs(t, err, common.ErrPlaidRateLimit)
	})

	t.Run("account failure", func(t *testing.T) {
		stub := &StubFetcher{AccountsErr: common.ErrPlaidConnection}
		_, err := Sync(ctx, stub, &fakeSaver{}, now, now)
		assert.ErrorIs(t, err, common.ErrPlaidConnection)
		assert.Empty(t, stub.Windows, "transactions are not fetched without accounts")
	})

	t.Run("nothing fetched skips save", func(t *testing.T) {
		saver := &fakeSaver{err: errors.New("should not be called")}
		result, err := Sync(ctx, &StubFetcher{}, saver, now, now)
		require.NoError(t, err)
		assert.Zero(t, result.New)
	})

	t.Run("save failure", func(t *testing.T) {
		stub := &StubFetcher{Transactions: []model.Transaction{{ID: "tx-1", Date: now, Description: "x"}}}
		_, err := Sync(ctx, stub, &fakeSaver{err: errors.New("disk full")}, now, now)
		assert.ErrorContains(t, err, "disk full")
	})
}
