package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperr "cryptogram/internal/errors"
	"cryptogram/internal/models"
	"cryptogram/internal/providers"

	json "github.com/goccy/go-json"
)

const puzzleColumns = `puzzle_id, user_id, quote_id, is_daily, daily_date, has_won, has_lost,
	finalized, uploaded, start_time, last_update, state`

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func puzzleArgs(p *models.Puzzle) ([]any, error) {
	state, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode puzzle %s: %w", p.ID, err)
	}
	return []any{
		p.ID, p.UserID, nullInt64(p.QuoteID), boolToInt(p.IsDaily), nullString(p.DailyDate),
		boolToInt(p.HasWon), boolToInt(p.HasLost), boolToInt(p.Finalized), boolToInt(p.Uploaded),
		unixNano(p.StartTime), unixNano(p.LastUpdateTime), string(state),
	}, nil
}

func decodePuzzle(state string) (*models.Puzzle, error) {
	var p models.Puzzle
	if err := json.Unmarshal([]byte(state), &p); err != nil {
		return nil, fmt.Errorf("decode puzzle: %w", err)
	}
	p.EnsureMaps()
	p.RecomputeDisplay()
	return &p, nil
}

func insertPuzzle(ctx context.Context, q queryer, p *models.Puzzle) error {
	args, err := puzzleArgs(p)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO puzzles (`+puzzleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	return err
}

func updatePuzzleRow(ctx context.Context, q queryer, seq int64, p *models.Puzzle) error {
	args, err := puzzleArgs(p)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `UPDATE puzzles SET puzzle_id = ?, user_id = ?, quote_id = ?, is_daily = ?,
		daily_date = ?, has_won = ?, has_lost = ?, finalized = ?, uploaded = ?, start_time = ?,
		last_update = ?, state = ? WHERE seq = ?`, append(args, seq)...)
	return err
}

// newestRow returns the seq, last_update and state of the newest record for
// id. Legacy imports may hold several.
func newestRow(ctx context.Context, q queryer, id string) (int64, int64, string, error) {
	var (
		seq        int64
		lastUpdate int64
		state      string
	)
	err := q.QueryRowContext(ctx, `SELECT seq, last_update, state FROM puzzles
		WHERE puzzle_id = ? ORDER BY last_update DESC, seq DESC LIMIT 1`, id).Scan(&seq, &lastUpdate, &state)
	return seq, lastUpdate, state, err
}

// SavePuzzle upserts p. An existing record is replaced only when p is strictly
// newer; otherwise ErrStaleWrite is returned and nothing changes.
func (s *Store) SavePuzzle(ctx context.Context, p *models.Puzzle) error {
	if !models.IsValidPuzzleID(p.ID) {
		return apperr.Newf(apperr.ErrInvalidInput, "invalid puzzle id %q", p.ID)
	}
	unlock := s.puzzleMu.Lock(p.ID)
	defer unlock()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		seq, lastUpdate, _, err := newestRow(ctx, tx, p.ID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return insertPuzzle(ctx, tx, p)
		case err != nil:
			return err
		}
		if unixNano(p.LastUpdateTime) <= lastUpdate {
			return ErrStaleWrite
		}
		return updatePuzzleRow(ctx, tx, seq, p)
	})
	return persistenceErr("save puzzle", err)
}

func (s *Store) GetPuzzle(ctx context.Context, id string) (*models.Puzzle, error) {
	_, _, state, err := newestRow(ctx, s.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.ErrNotFound, "puzzle %s not found", id)
	}
	if err != nil {
		return nil, persistenceErr("get puzzle", err)
	}
	p, err := decodePuzzle(state)
	return p, persistenceErr("get puzzle", err)
}

// FindInProgress returns the most recently updated non-terminal puzzle of
// the user in the given mode.
func (s *Store) FindInProgress(ctx context.Context, userID string, isDaily bool) (*models.Puzzle, error) {
	var state string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM puzzles
		WHERE user_id = ? AND is_daily = ? AND has_won = 0 AND has_lost = 0
		ORDER BY last_update DESC, seq DESC LIMIT 1`, userID, boolToInt(isDaily)).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "no game in progress")
	}
	if err != nil {
		return nil, persistenceErr("find in-progress puzzle", err)
	}
	p, err := decodePuzzle(state)
	return p, persistenceErr("find in-progress puzzle", err)
}

// MarkAbandoned closes an in-progress puzzle as lost and resets the user's
// streak in one transaction. The record is stored finalized so it is never
// scored or uploaded afterwards.
func (s *Store) MarkAbandoned(ctx context.Context, id, userID string) (*models.Puzzle, error) {
	unlockPuzzle := s.puzzleMu.Lock(id)
	defer unlockPuzzle()
	unlockUser := s.userMu.Lock(userID)
	defer unlockUser()

	var abandoned *models.Puzzle
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		seq, _, state, err := newestRow(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.Newf(apperr.ErrNotFound, "puzzle %s not found", id)
		}
		if err != nil {
			return err
		}
		p, err := decodePuzzle(state)
		if err != nil {
			return err
		}
		if p.IsTerminal() {
			return apperr.Newf(apperr.ErrInvalidState, "puzzle %s is already finished", id)
		}

		p.HasLost = true
		p.Abandoned = true
		p.Finalized = true
		p.SelectedLetter = 0
		now := s.now()
		if !now.After(p.LastUpdateTime) {
			now = p.LastUpdateTime.Add(time.Nanosecond)
		}
		p.LastUpdateTime = now
		if err := updatePuzzleRow(ctx, tx, seq, p); err != nil {
			return err
		}

		stats, err := loadStats(ctx, tx, userID)
		if err != nil {
			return err
		}
		stats.ResetStreak()
		if err := saveStats(ctx, tx, stats); err != nil {
			return err
		}
		abandoned = p
		return nil
	})
	if err != nil {
		return nil, persistenceErr("abandon puzzle", err)
	}
	return abandoned, nil
}

// FinalizePuzzle stores the terminal state of p and folds result into the
// owner's stats, once. It reports false when p was already finalized.
func (s *Store) FinalizePuzzle(ctx context.Context, p *models.Puzzle, result models.GameResult) (bool, error) {
	if !p.IsTerminal() {
		return false, apperr.Newf(apperr.ErrInvalidState, "puzzle %s is still in progress", p.ID)
	}
	unlockPuzzle := s.puzzleMu.Lock(p.ID)
	defer unlockPuzzle()
	unlockUser := s.userMu.Lock(p.UserID)
	defer unlockUser()

	applied := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		final := p.Clone()
		final.Finalized = true

		seq, _, state, err := newestRow(ctx, tx, p.ID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if err := insertPuzzle(ctx, tx, final); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			stored, err := decodePuzzle(state)
			if err != nil {
				return err
			}
			if stored.Finalized {
				return nil
			}
			if err := updatePuzzleRow(ctx, tx, seq, final); err != nil {
				return err
			}
		}

		stats, err := loadStats(ctx, tx, p.UserID)
		if err != nil {
			return err
		}
		stats.Apply(result)
		if err := saveStats(ctx, tx, stats); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, persistenceErr("finalize puzzle", err)
	}
	return applied, nil
}

// MarkUploaded flags the puzzle as acknowledged by the server and drops its
// upload task.
func (s *Store) MarkUploaded(ctx context.Context, id string) error {
	unlock := s.puzzleMu.Lock(id)
	defer unlock()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		seq, _, state, err := newestRow(ctx, tx, id)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err == nil {
			p, err := decodePuzzle(state)
			if err != nil {
				return err
			}
			p.Uploaded = true
			if err := updatePuzzleRow(ctx, tx, seq, p); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM sync_tasks WHERE puzzle_id = ?`, id)
		return err
	})
	return persistenceErr("mark uploaded", err)
}

// ReconcileDuplicates keeps the newest record per puzzle id and deletes the
// rest, returning how many were removed.
func (s *Store) ReconcileDuplicates(ctx context.Context) (int, error) {
	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM puzzles WHERE seq NOT IN (
			SELECT seq FROM (
				SELECT seq, ROW_NUMBER() OVER (
					PARTITION BY puzzle_id ORDER BY last_update DESC, seq DESC
				) AS rn FROM puzzles
			) WHERE rn = 1
		)`)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, persistenceErr("reconcile duplicates", err)
	}
	if removed > 0 {
		s.logger.Infof(providers.TypeApp, "Removed %d duplicate puzzle records", removed)
	}
	return int(removed), nil
}

func (s *Store) AllPuzzles(ctx context.Context) ([]*models.Puzzle, error) {
	return s.queryPuzzles(ctx, `SELECT state FROM puzzles ORDER BY seq`)
}

func (s *Store) CountPuzzles(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM puzzles`).Scan(&n); err != nil {
		return 0, persistenceErr("count puzzles", err)
	}
	return n, nil
}

// ArchivablePuzzles lists finalized, uploaded puzzles last touched before cutoff.
func (s *Store) ArchivablePuzzles(ctx context.Context, cutoff time.Time) ([]*models.Puzzle, error) {
	return s.queryPuzzles(ctx, `SELECT state FROM puzzles
		WHERE finalized = 1 AND uploaded = 1 AND last_update < ? ORDER BY last_update`, unixNano(cutoff))
}

// ImportPuzzles inserts records verbatim, duplicates included; callers run
// ReconcileDuplicates afterwards.
func (s *Store) ImportPuzzles(ctx context.Context, puzzles []*models.Puzzle) (int, error) {
	n := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range puzzles {
			if !models.IsValidPuzzleID(p.ID) {
				s.logger.Warnf(providers.TypeApp, "Skipping import of puzzle with invalid id %q", p.ID)
				continue
			}
			p.EnsureMaps()
			if err := insertPuzzle(ctx, tx, p); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, persistenceErr("import puzzles", err)
	}
	return n, nil
}

func (s *Store) DeletePuzzles(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM puzzles WHERE puzzle_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, persistenceErr("delete puzzles", err)
	}
	n, err := res.RowsAffected()
	return int(n), persistenceErr("delete puzzles", err)
}

func (s *Store) queryPuzzles(ctx context.Context, query string, args ...any) ([]*models.Puzzle, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistenceErr("query puzzles", err)
	}
	defer rows.Close()

	var out []*models.Puzzle
	for rows.Next() {
		var state string
		if err := rows.Scan(&state); err != nil {
			return nil, persistenceErr("scan puzzle", err)
		}
		p, err := decodePuzzle(state)
		if err != nil {
			s.logger.Warnf(providers.TypeApp, "Skipping unreadable puzzle record: %v", err)
			continue
		}
		out = append(out, p)
	}
	return out, persistenceErr("query puzzles", rows.Err())
}
