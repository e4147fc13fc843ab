package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
)

// syncRunStore implements driven.SyncRunStore.
type syncRunStore struct {
	store *Store
}

var _ driven.SyncRunStore = (*syncRunStore)(nil)

// Record stores a finished run. Recording the same run id again replaces it.
func (s *syncRunStore) Record(ctx context.Context, run *domain.SyncRun) error {
	if run == nil || run.ID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, mode, started_at, ended_at, updated, deleted, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode = excluded.mode,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			updated = excluded.updated,
			deleted = excluded.deleted,
			success = excluded.success,
			error = excluded.error
	`, run.ID, string(run.Mode),
		formatTime(run.StartedAt), formatNullableTime(run.EndedAt),
		run.Updated, run.Deleted,
		boolToInt(run.Success), nullString(run.Error))
	if err != nil {
		return fmt.Errorf("recording sync run: %w", err)
	}
	return nil
}

// Recent returns the most recent runs ordered by start time descending.
func (s *syncRunStore) Recent(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, mode, started_at, ended_at, updated, deleted, success, error
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.SyncRun //nolint:prealloc // size unknown from query
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync runs: %w", err)
	}

	return runs, nil
}

// Prune removes runs beyond the most recent keep.
func (s *syncRunStore) Prune(ctx context.Context, keep int) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM sync_runs
		WHERE id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (ORDER BY started_at DESC) as rn
				FROM sync_runs
			) WHERE rn <= ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning sync runs: %w", err)
	}
	return nil
}

// scanSyncRun scans a sync run from *sql.Rows.
func scanSyncRun(rows *sql.Rows) (*domain.SyncRun, error) {
	var run domain.SyncRun
	var mode, startedAt string
	var endedAt, errMsg sql.NullString
	var success int

	if err := rows.Scan(&run.ID, &mode, &startedAt, &endedAt,
		&run.Updated, &run.Deleted, &success, &errMsg); err != nil {
		return nil, fmt.Errorf("scanning sync run: %w", err)
	}

	run.Mode = domain.SyncMode(mode)
	run.StartedAt = parseTime(startedAt)
	run.EndedAt = parseNullableTime(endedAt)
	run.Success = success == 1
	if errMsg.Valid {
		run.Error = errMsg.String
	}

	return &run, nil
}
