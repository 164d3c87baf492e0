package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/Veraticus/order-tagger/internal/config"
	"github.com/Veraticus/order-tagger/internal/storage"
)

// initStorage opens the ledger database with proper path expansion.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString(config.KeyDatabasePath)
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}

	store, err := storage.Open(ctx, config.ExpandPath(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	return store, nil
}

// expandFiles expands glob patterns. A pattern without matches is kept when
// it names an existing file.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		pattern = config.ExpandPath(pattern)
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err != nil {
				slog.Warn("No files found matching pattern", "pattern", pattern)
				continue
			}
			matches = []string{pattern}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}

// backupDir is where live runs store database snapshots.
func backupDir(dbPath string) string {
	if dir := viper.GetString(config.KeyBackupDir); dir != "" {
		return config.ExpandPath(dir)
	}
	return filepath.Join(filepath.Dir(dbPath), "backups")
}
