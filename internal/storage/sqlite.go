// Package storage keeps the local ledger in SQLite: imported transactions,
// their splits, categories and an audit log of tag runs.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage is the SQLite-backed local ledger.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// dsn adds the connection pragmas go-sqlite3 reads from the query string.
func dsn(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	return path + "?" + q.Encode()
}

// NewSQLiteStorage opens the ledger at dbPath, creating its directory when
// missing. The schema is not touched; Open also migrates.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", dbPath, err)
	}
	// one writer; a second connection only adds lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach ledger %s: %w", dbPath, err)
	}
	return &SQLiteStorage{db: db, dbPath: dbPath}, nil
}

// Open returns a ready ledger with every pending migration applied.
func Open(ctx context.Context, dbPath string) (*SQLiteStorage, error) {
	s, err := NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to migrate ledger: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string { return s.dbPath }

// Close releases the database handle.
func (s *SQLiteStorage) Close() error { return s.db.Close() }
