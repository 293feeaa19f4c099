package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cryptogram/internal/models"
)

func loadStats(ctx context.Context, q queryer, userID string) (*models.UserStats, error) {
	stats := models.NewUserStats(userID)
	var (
		lastPlayed int64
		played     []byte
	)
	err := q.QueryRowContext(ctx, `SELECT games_played, games_won, current_streak, best_streak,
		total_score, average_mistakes, average_time, last_played, played_quotes
		FROM user_stats WHERE user_id = ?`, userID).Scan(
		&stats.GamesPlayed, &stats.GamesWon, &stats.CurrentStreak, &stats.BestStreak,
		&stats.TotalScore, &stats.AverageMistakes, &stats.AverageTime, &lastPlayed, &played,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return stats, nil
	}
	if err != nil {
		return nil, err
	}
	stats.LastPlayedDate = fromUnixNano(lastPlayed)
	if err := stats.DecodePlayed(played); err != nil {
		return nil, fmt.Errorf("decode played quotes for %s: %w", userID, err)
	}
	return stats, nil
}

func saveStats(ctx context.Context, q queryer, stats *models.UserStats) error {
	played, err := stats.EncodePlayed()
	if err != nil {
		return fmt.Errorf("encode played quotes: %w", err)
	}
	_, err = q.ExecContext(ctx, `INSERT INTO user_stats (user_id, games_played, games_won,
		current_streak, best_streak, total_score, average_mistakes, average_time, last_played, played_quotes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			games_played = excluded.games_played,
			games_won = excluded.games_won,
			current_streak = excluded.current_streak,
			best_streak = excluded.best_streak,
			total_score = excluded.total_score,
			average_mistakes = excluded.average_mistakes,
			average_time = excluded.average_time,
			last_played = excluded.last_played,
			played_quotes = excluded.played_quotes`,
		stats.UserID, stats.GamesPlayed, stats.GamesWon, stats.CurrentStreak, stats.BestStreak,
		stats.TotalScore, stats.AverageMistakes, stats.AverageTime, unixNano(stats.LastPlayedDate), played,
	)
	return err
}

// GetStats returns the user's stats, or empty stats if none were recorded yet.
func (s *Store) GetStats(ctx context.Context, userID string) (*models.UserStats, error) {
	stats, err := loadStats(ctx, s.db, userID)
	if err != nil {
		return nil, persistenceErr("get stats", err)
	}
	return stats, nil
}

// UpdateStats applies fn to the user's stats inside one transaction, creating
// the record on first use. A failing fn leaves the record untouched.
func (s *Store) UpdateStats(ctx context.Context, userID string, fn func(*models.UserStats) error) (*models.UserStats, error) {
	unlock := s.userMu.Lock(userID)
	defer unlock()

	var updated *models.UserStats
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stats, err := loadStats(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := fn(stats); err != nil {
			return err
		}
		if err := saveStats(ctx, tx, stats); err != nil {
			return err
		}
		updated = stats
		return nil
	})
	if err != nil {
		return nil, persistenceErr("update stats", err)
	}
	return updated, nil
}

func (s *Store) AllStats(ctx context.Context) ([]*models.UserStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM user_stats ORDER BY user_id`)
	if err != nil {
		return nil, persistenceErr("list stats", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, persistenceErr("list stats", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list stats", err)
	}

	out := make([]*models.UserStats, 0, len(ids))
	for _, id := range ids {
		stats, err := s.GetStats(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, stats)
	}
	return out, nil
}

// ImportStats restores stats records from a backup, skipping users that
// already have stats locally.
func (s *Store) ImportStats(ctx context.Context, stats []*models.UserStats) (int, error) {
	n := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, st := range stats {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_stats WHERE user_id = ?`, st.UserID).Scan(&exists)
			if err != nil {
				return err
			}
			if exists > 0 {
				continue
			}
			if err := saveStats(ctx, tx, st); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, persistenceErr("import stats", err)
	}
	return n, nil
}
