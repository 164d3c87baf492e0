package plaid

import (
	"context"
	"sync"
	"time"

	"github.com/Veraticus/order-tagger/internal/model"
)

// Window is one requested date range.
type Window struct {
	Start time.Time
	End   time.Time
}

// StubFetcher is a canned TransactionFetcher for tests.
type StubFetcher struct {
	TransactionsErr error
	AccountsErr     error
	Accounts        []string
	Transactions    []model.Transaction
	Windows         []Window
	AccountCalls    int
	mu              sync.Mutex
}

// GetTransactions returns the canned transactions and records the window.
func (s *StubFetcher) GetTransactions(_ context.Context, start, end time.Time) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Windows = append(s.Windows, Window{Start: start, End: end})
	if s.TransactionsErr != nil {
		return nil, s.TransactionsErr
	}
	return append([]model.Transaction(nil), s.Transactions...), nil
}

// GetAccounts returns the canned account ids.
func (s *StubFetcher) GetAccounts(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.AccountCalls++
	if s.AccountsErr != nil {
		return nil, s.AccountsErr
	}
	return append([]string(nil), s.Accounts...), nil
}

var _ TransactionFetcher = (*StubFetcher)(nil)
