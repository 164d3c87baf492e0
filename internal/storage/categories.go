package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/order-tagger/internal/model"
)

// GetCategories returns every category ordered by name.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at
		FROM categories
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("Loaded categories", "count", len(categories))
	return categories, nil
}

func scanCategory(row scanner) (model.Category, error) {
	var cat model.Category
	if err := row.Scan(&cat.ID, &cat.Name, &cat.CreatedAt); err != nil {
		return model.Category{}, fmt.Errorf("failed to scan category: %w", err)
	}
	return cat, nil
}

// CategoryIndex returns the category name to id map used by the planner.
func (s *SQLiteStorage) CategoryIndex(ctx context.Context) (model.CategoryIndex, error) {
	categories, err := s.GetCategories(ctx)
	if err != nil {
		return nil, err
	}
	return model.NewCategoryIndex(categories), nil
}

// CreateCategory creates a category, or returns the existing one with that name.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id, err := ensureCategoryTx(ctx, tx, name)
	if err != nil {
		return nil, err
	}

	cat, err := scanCategory(tx.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM categories WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit category: %w", err)
	}
	return &cat, nil
}

// SeedCategories creates any of names that do not exist yet.
func (s *SQLiteStorage) SeedCategories(ctx context.Context, names []string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if _, err := ensureCategoryTx(ctx, tx, name); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func ensureCategoryTx(ctx context.Context, tx *sql.Tx, name string) (int, error) {
	name = strings.TrimSpace(name)
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO categories (name) VALUES (?)`, name); err != nil {
		return 0, fmt.Errorf("failed to create category %q: %w", name, err)
	}

	var id int
	if err := tx.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to look up category %q: %w", name, err)
	}
	return id, nil
}
