package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Backup writes a consistent copy of the database into dir and returns its path.
// Live runs take one before applying updates.
func (s *SQLiteStorage) Backup(ctx context.Context, dir string) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateString(dir, "dir"); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := fmt.Sprintf("tagger-%s.db", time.Now().UTC().Format("20060102-150405.000000000"))
	dest := filepath.Join(dir, name)

	// VACUUM INTO gives an atomic copy (SQLite 3.27.0+)
	query := fmt.Sprintf("VACUUM INTO '%s'", strings.ReplaceAll(dest, "'", "''"))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return "", fmt.Errorf("failed to back up database: %w", err)
	}

	slog.Info("Backed up ledger", "path", dest)
	return dest, nil
}
