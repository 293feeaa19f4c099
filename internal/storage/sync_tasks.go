package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperr "cryptogram/internal/errors"
	"cryptogram/internal/models"

	json "github.com/goccy/go-json"
)

const syncTaskColumns = `puzzle_id, summary, status, attempts, max_attempts, next_attempt_at,
	last_error, created_at, updated_at`

func scanSyncTask(row rowScanner) (*models.SyncTask, error) {
	var (
		t                               models.SyncTask
		summary                         string
		status                          string
		nextAttempt, created, updatedAt int64
	)
	if err := row.Scan(&t.PuzzleID, &summary, &status, &t.Attempts, &t.MaxAttempts, &nextAttempt,
		&t.LastError, &created, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(summary), &t.Summary); err != nil {
		return nil, fmt.Errorf("decode upload summary for %s: %w", t.PuzzleID, err)
	}
	t.Status = models.SyncStatus(status)
	t.NextAttemptAt = fromUnixNano(nextAttempt)
	t.CreatedAt = fromUnixNano(created)
	t.UpdatedAt = fromUnixNano(updatedAt)
	return &t, nil
}

func syncTaskArgs(t *models.SyncTask) ([]any, error) {
	summary, err := json.Marshal(t.Summary)
	if err != nil {
		return nil, fmt.Errorf("encode upload summary: %w", err)
	}
	return []any{
		t.PuzzleID, string(summary), string(t.Status), t.Attempts, t.MaxAttempts,
		unixNano(t.NextAttemptAt), t.LastError, unixNano(t.CreatedAt), unixNano(t.UpdatedAt),
	}, nil
}

// CreateSyncTask inserts task unless one already exists for the puzzle and
// reports whether it was created.
func (s *Store) CreateSyncTask(ctx context.Context, task *models.SyncTask) (bool, error) {
	args, err := syncTaskArgs(task)
	if err != nil {
		return false, persistenceErr("create sync task", err)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO sync_tasks (`+syncTaskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(puzzle_id) DO NOTHING`, args...)
	if err != nil {
		return false, persistenceErr("create sync task", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, persistenceErr("create sync task", err)
	}
	return n == 1, nil
}

func (s *Store) SaveSyncTask(ctx context.Context, task *models.SyncTask) error {
	args, err := syncTaskArgs(task)
	if err != nil {
		return persistenceErr("save sync task", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO sync_tasks (`+syncTaskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(puzzle_id) DO UPDATE SET
			summary = excluded.summary,
			status = excluded.status,
			attempts = excluded.attempts,
			max_attempts = excluded.max_attempts,
			next_attempt_at = excluded.next_attempt_at,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`, args...)
	return persistenceErr("save sync task", err)
}

func (s *Store) GetSyncTask(ctx context.Context, puzzleID string) (*models.SyncTask, error) {
	t, err := scanSyncTask(s.db.QueryRowContext(ctx, `SELECT `+syncTaskColumns+` FROM sync_tasks WHERE puzzle_id = ?`, puzzleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.ErrNotFound, "no sync task for %s", puzzleID)
	}
	return t, persistenceErr("get sync task", err)
}

// ListSyncTasks returns every queued task, oldest first.
func (s *Store) ListSyncTasks(ctx context.Context) ([]*models.SyncTask, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+syncTaskColumns+` FROM sync_tasks ORDER BY created_at, puzzle_id`)
	if err != nil {
		return nil, persistenceErr("list sync tasks", err)
	}
	defer rows.Close()

	var out []*models.SyncTask
	for rows.Next() {
		t, err := scanSyncTask(rows)
		if err != nil {
			return nil, persistenceErr("list sync tasks", err)
		}
		out = append(out, t)
	}
	return out, persistenceErr("list sync tasks", rows.Err())
}

func (s *Store) DeleteSyncTask(ctx context.Context, puzzleID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_tasks WHERE puzzle_id = ?`, puzzleID)
	return persistenceErr("delete sync task", err)
}
