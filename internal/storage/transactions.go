package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/order-tagger/internal/category"
	"github.com/Veraticus/order-tagger/internal/common"
	"github.com/Veraticus/order-tagger/internal/model"
)

// SaveTransactions upserts transactions from a ledger feed. Feed-owned fields
// (date, merchant, amount, account, pending) are refreshed on every import;
// description and category are only taken from the feed until an update has
// been applied to the transaction. It returns the number of new transactions.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateTransactions(transactions); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := s.saveTransactionsTx(ctx, tx, transactions)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transactions: %w", err)
	}

	slog.Debug("Saved transactions", "count", len(transactions), "new", inserted)
	return inserted, nil
}

func (s *SQLiteStorage) saveTransactionsTx(ctx context.Context, tx *sql.Tx, transactions []model.Transaction) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (
			id, date, merchant, description, amount_micro,
			category, category_id, account_id, pending
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			merchant = excluded.merchant,
			amount_micro = excluded.amount_micro,
			account_id = excluded.account_id,
			pending = excluded.pending,
			description = CASE WHEN transactions.applied_fingerprint = ''
				THEN excluded.description ELSE transactions.description END,
			category = CASE WHEN transactions.applied_fingerprint = ''
				THEN excluded.category ELSE transactions.category END,
			category_id = CASE WHEN transactions.applied_fingerprint = ''
				THEN excluded.category_id ELSE transactions.category_id END,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, txn := range transactions {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE id = ?`, txn.ID).Scan(&exists); err != nil {
			return 0, fmt.Errorf("failed to check transaction %s: %w", txn.ID, err)
		}

		name := strings.TrimSpace(txn.Category)
		if name == "" {
			name = category.Uncategorized
		}
		categoryID := txn.CategoryID
		if categoryID == 0 {
			if categoryID, err = ensureCategoryTx(ctx, tx, name); err != nil {
				return 0, err
			}
		}

		description := txn.Description
		if description == "" {
			description = txn.Merchant
		}

		if _, err := stmt.ExecContext(ctx,
			txn.ID,
			txn.Date,
			txn.Merchant,
			description,
			int64(txn.Amount),
			name,
			categoryID,
			txn.AccountID,
			txn.Pending,
		); err != nil {
			return 0, fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
		}
		if exists == 0 {
			inserted++
		}
	}

	return inserted, nil
}

const transactionColumns = `id, date, merchant, description, amount_micro,
	category, category_id, account_id, pending, applied_fingerprint, rule_category`

// GetTransactions returns the stored transactions dated on or after from, with
// their splits, oldest first. A zero from returns everything.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, from time.Time) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE date >= ?
		ORDER BY date, id`, from)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	splits, err := s.splitsSince(ctx, from)
	if err != nil {
		return nil, err
	}
	for i := range txns {
		txns[i].Splits = splits[txns[i].ID]
	}

	return txns, nil
}

// GetTransactionByID returns one transaction with its splits.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, description, category, rule_category, category_id, amount_micro
		FROM splits WHERE transaction_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query splits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	splits, err := scanSplits(rows)
	if err != nil {
		return nil, err
	}
	txn.Splits = splits[id]
	return &txn, nil
}

// ApplyUpdates writes updates in a single SQL transaction and records each in the
// audit log of run runID. Either every update is applied or none is.
func (s *SQLiteStorage) ApplyUpdates(ctx context.Context, runID string, updates []model.Update) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(runID, "runID"); err != nil {
		return err
	}
	if err := validateUpdates(updates); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, u := range updates {
		if err := applyUpdateTx(ctx, tx, runID, u); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE tag_runs SET updates = updates + ? WHERE id = ?`, len(updates), runID); err != nil {
		return fmt.Errorf("failed to update run %s: %w", runID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit updates: %w", err)
	}

	slog.Info("Applied updates", "run_id", runID, "count", len(updates))
	return nil
}

func applyUpdateTx(ctx context.Context, tx *sql.Tx, runID string, u model.Update) error {
	var previous string
	var amount int64
	err := tx.QueryRowContext(ctx,
		`SELECT description, amount_micro FROM transactions WHERE id = ?`, u.TransactionID).Scan(&previous, &amount)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("transaction %s: %w", u.TransactionID, common.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load transaction %s: %w", u.TransactionID, err)
	}

	if u.Itemized() {
		if got := model.SplitsTotal(u.Splits); int64(got) != amount {
			return &common.InvariantViolation{TransactionID: u.TransactionID, Want: amount, Got: int64(got)}
		}
	}

	fingerprint := u.Fingerprint()
	if _, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET description = ?, category = ?, category_id = ?, rule_category = ?,
			applied_fingerprint = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		u.Description, u.Category, u.CategoryID, u.RuleCategory, fingerprint, u.TransactionID); err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", u.TransactionID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM splits WHERE transaction_id = ?`, u.TransactionID); err != nil {
		return fmt.Errorf("failed to clear splits of %s: %w", u.TransactionID, err)
	}
	for i, sp := range u.Splits {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO splits (transaction_id, position, description, category, rule_category, category_id, amount_micro)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			u.TransactionID, i, sp.Description, sp.Category, sp.RuleCategory, sp.CategoryID, int64(sp.Amount)); err != nil {
			return fmt.Errorf("failed to insert split %d of %s: %w", i, u.TransactionID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tag_run_updates (
			run_id, transaction_id, retag, previous_description, description, category, splits, fingerprint
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, u.TransactionID, u.Retag, previous, u.Description, u.Category, len(u.Splits), fingerprint); err != nil {
		return fmt.Errorf("failed to log update of %s: %w", u.TransactionID, err)
	}

	return nil
}

// SetTransactionCategory records a user recategorization of a transaction. The
// applied fingerprint is left alone so the next run sees the edit and keeps it.
// Splits are not touched; the top-level category is what the ledger shows.
func (s *SQLiteStorage) SetTransactionCategory(ctx context.Context, id, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := validateString(name, "category"); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	categoryID, err := ensureCategoryTx(ctx, tx, name)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET category = ?, category_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, name, categoryID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to recategorize transaction %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to recategorize transaction %s: %w", id, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit recategorization: %w", err)
	}

	slog.Info("Recategorized transaction", "transaction_id", id, "category", name)
	return &model.Category{ID: categoryID, Name: name}, nil
}

func (s *SQLiteStorage) splitsSince(ctx context.Context, from time.Time) (map[string][]model.Split, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sp.transaction_id, sp.description, sp.category, sp.rule_category, sp.category_id, sp.amount_micro
		FROM splits sp
		JOIN transactions t ON t.id = sp.transaction_id
		WHERE t.date >= ?
		ORDER BY sp.transaction_id, sp.position`, from)
	if err != nil {
		return nil, fmt.Errorf("failed to query splits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanSplits(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (model.Transaction, error) {
	var txn model.Transaction
	var amount int64
	err := row.Scan(
		&txn.ID,
		&txn.Date,
		&txn.Merchant,
		&txn.Description,
		&amount,
		&txn.Category,
		&txn.CategoryID,
		&txn.AccountID,
		&txn.Pending,
		&txn.AppliedFingerprint,
		&txn.RuleCategory,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return txn, err
	}
	if err != nil {
		return txn, fmt.Errorf("failed to scan transaction: %w", err)
	}
	txn.Amount = model.Micro(amount)
	return txn, nil
}

func scanSplits(rows *sql.Rows) (map[string][]model.Split, error) {
	out := make(map[string][]model.Split)
	for rows.Next() {
		var id string
		var sp model.Split
		var amount int64
		if err := rows.Scan(&id, &sp.Description, &sp.Category, &sp.RuleCategory, &sp.CategoryID, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		sp.Amount = model.Micro(amount)
		out[id] = append(out[id], sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating splits: %w", err)
	}
	return out, nil
}
