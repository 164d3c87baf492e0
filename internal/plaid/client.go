// Package plaid syncs ledger transactions from the Plaid transactions API.
package plaid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"

	"github.com/Veraticus/order-tagger/internal/common"
	"github.com/Veraticus/order-tagger/internal/model"
)

// pageSize is the largest page TransactionsGet returns.
const pageSize = 500

const dateLayout = "2006-01-02"

var environments = map[string]plaid.Environment{
	"sandbox":    plaid.Sandbox,
	"production": plaid.Production,
}

// Config holds Plaid API credentials for one linked item.
type Config struct {
	ClientID    string
	Secret      string
	Environment string // sandbox or production
	AccessToken string
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	required := []struct{ value, name string }{
		{c.ClientID, "client ID"},
		{c.Secret, "secret"},
		{c.AccessToken, "access token"},
		{c.Environment, "environment"},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: plaid %s is required", common.ErrMissingConfig, r.name)
		}
	}
	if _, ok := environments[c.Environment]; !ok {
		return fmt.Errorf("%w: invalid Plaid environment %q: must be sandbox or production", common.ErrInvalidConfig, c.Environment)
	}
	return nil
}

// Client fetches ledger transactions for one Plaid access token.
type Client struct {
	api         *plaid.PlaidApiService
	logger      *slog.Logger
	retry       common.RetryOptions
	accessToken string
}

// NewClient creates a client for cfg.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	conf := plaid.NewConfiguration()
	conf.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	conf.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	conf.UseEnvironment(environments[cfg.Environment])

	return &Client{
		api:         plaid.NewAPIClient(conf).PlaidApi,
		accessToken: cfg.AccessToken,
		logger:      common.Component("plaid"),
		retry: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// GetTransactions returns the transactions dated between start and end,
// pending ones included. Transactions that cannot be mapped are logged and
// skipped. Plaid reports debits as positive amounts, as the ledger does.
func (c *Client) GetTransactions(ctx context.Context, start, end time.Time) ([]model.Transaction, error) {
	if ctx == nil {
		return nil, errors.New("context cannot be nil")
	}
	if start.After(end) {
		return nil, errors.New("start date must be before end date")
	}

	c.logger.Info("Fetching transactions",
		"start_date", start.Format(dateLayout),
		"end_date", end.Format(dateLayout))

	var out []model.Transaction
	for offset := 0; ; offset += pageSize {
		page, total, err := c.transactionsPage(ctx, start, end, offset)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("Fetched transaction page", "count", len(page), "offset", offset, "total", total)

		for _, pt := range page {
			tx, err := mapTransaction(pt)
			if err != nil {
				c.logger.Warn("Skipping transaction", "transaction_id", pt.GetTransactionId(), "error", err)
				continue
			}
			out = append(out, tx)
		}

		if len(page) < pageSize || offset+len(page) >= total {
			break
		}
	}

	c.logger.Info("Fetched transactions", "count", len(out))
	return out, nil
}

func (c *Client) transactionsPage(ctx context.Context, start, end time.Time, offset int) ([]plaid.Transaction, int, error) {
	req := plaid.NewTransactionsGetRequest(c.accessToken, start.Format(dateLayout), end.Format(dateLayout))
	req.SetOptions(plaid.TransactionsGetRequestOptions{
		Count:  plaid.PtrInt32(pageSize),
		Offset: plaid.PtrInt32(int32(offset)), // #nosec G115 -- bounded by the transaction count
	})

	var resp plaid.TransactionsGetResponse
	err := c.call(ctx, func() error {
		var err error
		resp, _, err = c.api.TransactionsGet(ctx).TransactionsGetRequest(*req).Execute()
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return resp.GetTransactions(), int(resp.GetTotalTransactions()), nil
}

// GetAccounts returns the ids of the accounts behind the access token.
func (c *Client) GetAccounts(ctx context.Context) ([]string, error) {
	if ctx == nil {
		return nil, errors.New("context cannot be nil")
	}

	var resp plaid.AccountsGetResponse
	err := c.call(ctx, func() error {
		var err error
		resp, _, err = c.api.AccountsGet(ctx).AccountsGetRequest(*plaid.NewAccountsGetRequest(c.accessToken)).Execute()
		return err
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.GetAccounts()))
	for _, account := range resp.GetAccounts() {
		ids = append(ids, account.GetAccountId())
	}
	c.logger.Info("Fetched accounts", "count", len(ids))
	return ids, nil
}

// call runs one API request under the retry policy. Rate limits and
// connection failures are retried; other API errors fail at once.
func (c *Client) call(ctx context.Context, request func() error) error {
	return common.WithRetry(ctx, func() error {
		return c.classify(request())
	}, c.retry)
}

func (c *Client) classify(err error) error {
	if err == nil {
		return nil
	}
	apiErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return fmt.Errorf("%w: %w", common.ErrPlaidConnection, err)
	}
	if apiErr.ErrorCode == "RATE_LIMIT_EXCEEDED" {
		c.logger.Warn("Rate limited, retrying", "error", apiErr.ErrorMessage)
		return &common.RetryableError{Err: fmt.Errorf("%w: %s", common.ErrPlaidRateLimit, apiErr.ErrorMessage), Retryable: true}
	}
	return &common.RetryableError{Err: fmt.Errorf("plaid API error: %s - %s", apiErr.ErrorCode, apiErr.ErrorMessage)}
}

var _ TransactionFetcher = (*Client)(nil)
