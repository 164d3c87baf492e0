package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Veraticus/order-tagger/internal/category"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial ledger schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					date DATETIME NOT NULL,
					merchant TEXT NOT NULL DEFAULT '',
					description TEXT NOT NULL,
					amount_micro INTEGER NOT NULL,
					category TEXT NOT NULL DEFAULT '',
					category_id INTEGER NOT NULL DEFAULT 0,
					account_id TEXT NOT NULL DEFAULT '',
					pending BOOLEAN NOT NULL DEFAULT 0,
					imported_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,

				`CREATE TABLE IF NOT EXISTS splits (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					transaction_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					description TEXT NOT NULL,
					category TEXT NOT NULL DEFAULT '',
					category_id INTEGER NOT NULL DEFAULT 0,
					amount_micro INTEGER NOT NULL,
					FOREIGN KEY (transaction_id) REFERENCES transactions(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_splits_transaction_id ON splits(transaction_id)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Track applied tag content for retag detection",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`ALTER TABLE transactions ADD COLUMN applied_fingerprint TEXT NOT NULL DEFAULT ''`,
			)
		},
	},
	{
		Version:     3,
		Description: "Add tag run audit log and seed default categories",
		Up: func(tx *sql.Tx) error {
			if err := execAll(tx,
				`CREATE TABLE IF NOT EXISTS tag_runs (
					id TEXT PRIMARY KEY,
					started_at DATETIME NOT NULL,
					finished_at DATETIME,
					dry_run BOOLEAN NOT NULL DEFAULT 0,
					updates INTEGER NOT NULL DEFAULT 0,
					stats TEXT NOT NULL DEFAULT '{}'
				)`,
				`CREATE TABLE IF NOT EXISTS tag_run_updates (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id TEXT NOT NULL,
					transaction_id TEXT NOT NULL,
					retag BOOLEAN NOT NULL DEFAULT 0,
					previous_description TEXT NOT NULL DEFAULT '',
					description TEXT NOT NULL,
					category TEXT NOT NULL DEFAULT '',
					splits INTEGER NOT NULL DEFAULT 0,
					fingerprint TEXT NOT NULL,
					applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (run_id) REFERENCES tag_runs(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_tag_run_updates_run_id ON tag_run_updates(run_id)`,
			); err != nil {
				return err
			}

			names := append([]string{category.Uncategorized}, category.NewRules(nil).Names()...)
			for _, name := range names {
				if _, err := tx.Exec(`INSERT OR IGNORE INTO categories (name) VALUES (?)`, name); err != nil {
					return fmt.Errorf("failed to seed category %q: %w", name, err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Record the rule category of applied tags",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`ALTER TABLE transactions ADD COLUMN rule_category TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE splits ADD COLUMN rule_category TEXT NOT NULL DEFAULT ''`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion); err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return v, nil
}
