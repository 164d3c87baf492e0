package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/order-tagger/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidUpdate      = errors.New("invalid update")
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

func validateString(s, name string) error {
	if strings.TrimSpace(s) != "" {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrEmptyString, name)
}

// validateTransactions rejects a batch in which any ledger row lacks an ID,
// a posting date or some text to tag.
func validateTransactions(txns []model.Transaction) error {
	switch {
	case txns == nil:
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	case len(txns) == 0:
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i := range txns {
		var problem string
		switch t := &txns[i]; {
		case t.ID == "":
			problem = "missing ID"
		case t.Date.IsZero():
			problem = "missing date"
		case t.Description == "" && t.Merchant == "":
			problem = "missing description"
		default:
			continue
		}
		return fmt.Errorf("transaction at index %d: %w: %s", i, ErrInvalidTransaction, problem)
	}
	return nil
}

// validateUpdates checks the shape of a batch. Whether splits reconcile with
// the stored amount is checked against the row inside the apply transaction.
func validateUpdates(updates []model.Update) error {
	if len(updates) == 0 {
		return fmt.Errorf("%w: updates", ErrEmptySlice)
	}

	seen := make(map[string]int, len(updates))
	for i, u := range updates {
		var problem string
		if prev, dup := seen[u.TransactionID]; dup && u.TransactionID != "" {
			problem = fmt.Sprintf("transaction %s already updated at index %d", u.TransactionID, prev)
		} else {
			problem = updateProblem(u)
		}
		if problem != "" {
			return fmt.Errorf("update at index %d: %w: %s", i, ErrInvalidUpdate, problem)
		}
		seen[u.TransactionID] = i
	}
	return nil
}

func updateProblem(u model.Update) string {
	if u.TransactionID == "" {
		return "missing transaction ID"
	}
	if strings.TrimSpace(u.Description) == "" {
		return "missing description"
	}
	for j, s := range u.Splits {
		if strings.TrimSpace(s.Description) == "" {
			return fmt.Sprintf("split %d has no description", j)
		}
	}
	return ""
}
