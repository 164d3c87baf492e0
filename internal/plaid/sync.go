package plaid

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/order-tagger/internal/common"
	"github.com/Veraticus/order-tagger/internal/model"
)

// TransactionFetcher lists accounts and fetches their ledger transactions.
type TransactionFetcher interface {
	GetTransactions(ctx context.Context, start, end time.Time) ([]model.Transaction, error)
	GetAccounts(ctx context.Context) ([]string, error)
}

// TransactionSaver persists fetched ledger transactions.
type TransactionSaver interface {
	SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
}

// SyncResult summarizes one sync.
type SyncResult struct {
	Accounts []string
	Fetched  int
	Pending  int
	New      int
}

// Sync pulls transactions between start and end from fetcher and saves them.
// Pending transactions are saved too; a later sync replaces them once posted.
func Sync(ctx context.Context, fetcher TransactionFetcher, saver TransactionSaver, start, end time.Time) (*SyncResult, error) {
	logger := common.Component("plaid-sync")

	accounts, err := fetcher.GetAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	transactions, err := fetcher.GetTransactions(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	result := &SyncResult{Accounts: accounts, Fetched: len(transactions)}
	for _, tx := range transactions {
		if tx.Pending {
			result.Pending++
		}
	}

	if len(transactions) == 0 {
		logger.Info("No transactions to save", "start", start.Format("2006-01-02"), "end", end.Format("2006-01-02"))
		return result, nil
	}

	result.New, err = saver.SaveTransactions(ctx, transactions)
	if err != nil {
		return nil, fmt.Errorf("failed to save transactions: %w", err)
	}

	logger.Info("Synced transactions",
		"accounts", len(accounts),
		"fetched", result.Fetched,
		"pending", result.Pending,
		"new", result.New)
	return result, nil
}
