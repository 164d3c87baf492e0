package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/order-tagger/internal/common"
)

// TagRun is one recorded invocation of the tagger.
type TagRun struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Stats      map[string]int
	ID         string
	Updates    int
	DryRun     bool
}

// AppliedUpdate is one audit log entry of a tag run.
type AppliedUpdate struct {
	AppliedAt           time.Time
	RunID               string
	TransactionID       string
	PreviousDescription string
	Description         string
	Category            string
	Fingerprint         string
	Splits              int
	Retag               bool
}

// StartRun records the start of a tag run and returns it with a fresh id.
func (s *SQLiteStorage) StartRun(ctx context.Context, dryRun bool) (*TagRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	run := &TagRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		DryRun:    dryRun,
		Stats:     map[string]int{},
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO tag_runs (id, started_at, dry_run) VALUES (?, ?, ?)`,
		run.ID, run.StartedAt, run.DryRun); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	return run, nil
}

// FinishRun stores the final counters of run.
func (s *SQLiteStorage) FinishRun(ctx context.Context, run *TagRun, stats map[string]int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}

	encoded, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}

	run.FinishedAt = time.Now().UTC()
	run.Stats = stats
	res, err := s.db.ExecContext(ctx,
		`UPDATE tag_runs SET finished_at = ?, stats = ? WHERE id = ?`,
		run.FinishedAt, string(encoded), run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, common.ErrNotFound)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A non-positive limit
// returns every run.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]TagRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, dry_run, updates, stats
		FROM tag_runs
		ORDER BY started_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []TagRun
	for rows.Next() {
		var run TagRun
		var finished sql.NullTime
		var stats string
		if err := rows.Scan(&run.ID, &run.StartedAt, &finished, &run.DryRun, &run.Updates, &stats); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finished.Valid {
			run.FinishedAt = finished.Time
		}
		if err := json.Unmarshal([]byte(stats), &run.Stats); err != nil {
			return nil, fmt.Errorf("failed to decode stats of run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetRunUpdates returns the audit log of one run in the order it was applied.
func (s *SQLiteStorage) GetRunUpdates(ctx context.Context, runID string) ([]AppliedUpdate, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}

	var exists string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM tag_runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, transaction_id, retag, previous_description, description,
			category, splits, fingerprint, applied_at
		FROM tag_run_updates
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run updates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []AppliedUpdate
	for rows.Next() {
		var u AppliedUpdate
		if err := rows.Scan(&u.RunID, &u.TransactionID, &u.Retag, &u.PreviousDescription,
			&u.Description, &u.Category, &u.Splits, &u.Fingerprint, &u.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run update: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run updates: %w", err)
	}
	return out, nil
}
