package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"

	apperr "cryptogram/internal/errors"
	"cryptogram/internal/models"
	"cryptogram/internal/providers"

	"github.com/RoaringBitmap/roaring/v2"
	json "github.com/goccy/go-json"
)

const quoteColumns = `id, text, author, attribution, difficulty, is_active, is_daily,
	daily_date, server_id, unique_letters, times_used`

const quoteCachePrefix = "quote:"

func randomIndex(n int) int {
	return rand.IntN(n)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuote(row rowScanner) (*models.Quote, error) {
	var (
		q         models.Quote
		isActive  int
		isDaily   int
		dailyDate sql.NullString
		serverID  sql.NullInt64
	)
	if err := row.Scan(&q.ID, &q.Text, &q.Author, &q.Attribution, &q.Difficulty, &isActive, &isDaily,
		&dailyDate, &serverID, &q.UniqueLetters, &q.TimesUsed); err != nil {
		return nil, err
	}
	q.IsActive = isActive == 1
	q.IsDaily = isDaily == 1
	q.DailyDate = dailyDate.String
	q.ServerID = serverID.Int64
	return &q, nil
}

func (s *Store) quoteByID(ctx context.Context, id int64) (*models.Quote, error) {
	q, err := scanQuote(s.db.QueryRowContext(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.ErrNotFound, "quote %d not found", id)
	}
	return q, persistenceErr("get quote", err)
}

// FetchRandomActiveQuote picks an active non-daily quote, preferring ones
// whose id is not in exclude. It only repeats once every quote was played.
func (s *Store) FetchRandomActiveQuote(ctx context.Context, exclude *roaring.Bitmap) (*models.Quote, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM quotes WHERE is_active = 1 AND is_daily = 0`)
	if err != nil {
		return nil, persistenceErr("list quotes", err)
	}
	var all, fresh []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, persistenceErr("list quotes", err)
		}
		all = append(all, id)
		if exclude == nil || id > int64(^uint32(0)) || !exclude.Contains(uint32(id)) {
			fresh = append(fresh, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list quotes", err)
	}

	if len(all) == 0 {
		return nil, apperr.New(apperr.ErrContentUnavailable, "quote pool is empty")
	}
	pool := fresh
	if len(pool) == 0 {
		pool = all
	}
	return s.quoteByID(ctx, pool[s.randIndex(len(pool))])
}

// FetchDailyQuote returns the locally stored quote for a calendar date.
func (s *Store) FetchDailyQuote(ctx context.Context, date string) (*models.Quote, error) {
	q, err := scanQuote(s.db.QueryRowContext(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE daily_date = ?`, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.ErrNotFound, "no local daily quote for %s", date)
	}
	return q, persistenceErr("get daily quote", err)
}

// QuoteBySolution recovers quote metadata from a puzzle's solution text.
func (s *Store) QuoteBySolution(ctx context.Context, text string) (*models.Quote, error) {
	text = models.NormalizeText(text)
	key := quoteCachePrefix + text
	if raw, ok := s.cache.Get(key); ok {
		var q models.Quote
		if err := json.Unmarshal(raw, &q); err == nil {
			return &q, nil
		}
		s.cache.Del(key)
	}

	q, err := scanQuote(s.db.QueryRowContext(ctx, `SELECT `+quoteColumns+` FROM quotes
		WHERE text = ? ORDER BY is_daily DESC, id LIMIT 1`, text))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "no quote matches the solution")
	}
	if err != nil {
		return nil, persistenceErr("get quote by solution", err)
	}
	if raw, err := json.Marshal(q); err == nil {
		s.cache.Set(key, raw)
	}
	return q, nil
}

// SaveQuote inserts q, or updates the existing quote of the same daily date.
func (s *Store) SaveQuote(ctx context.Context, q *models.Quote) (*models.Quote, error) {
	saved := *q
	saved.Text = models.NormalizeText(saved.Text)
	if saved.Text == "" {
		return nil, apperr.New(apperr.ErrInvalidInput, "quote text is empty")
	}
	if saved.UniqueLetters == 0 {
		saved.UniqueLetters = models.CountUniqueLetters(saved.Text)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if saved.IsDaily && saved.DailyDate != "" {
			var id int64
			err := tx.QueryRowContext(ctx, `SELECT id FROM quotes WHERE daily_date = ?`, saved.DailyDate).Scan(&id)
			if err == nil {
				saved.ID = id
				_, err = tx.ExecContext(ctx, `UPDATE quotes SET text = ?, author = ?, attribution = ?,
					difficulty = ?, is_active = ?, server_id = ?, unique_letters = ? WHERE id = ?`,
					saved.Text, saved.Author, saved.Attribution, saved.Difficulty, boolToInt(saved.IsActive),
					nullInt64(saved.ServerID), saved.UniqueLetters, id)
				return err
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO quotes (text, author, attribution, difficulty,
			is_active, is_daily, daily_date, server_id, unique_letters, times_used)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			saved.Text, saved.Author, saved.Attribution, saved.Difficulty, boolToInt(saved.IsActive),
			boolToInt(saved.IsDaily), nullString(saved.DailyDate), nullInt64(saved.ServerID),
			saved.UniqueLetters, saved.TimesUsed)
		if err != nil {
			return err
		}
		saved.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, persistenceErr("save quote", err)
	}
	s.cache.Del(quoteCachePrefix + saved.Text)
	return &saved, nil
}

func (s *Store) IncrementQuoteUsage(ctx context.Context, id int64) error {
	var text string
	err := s.db.QueryRowContext(ctx, `UPDATE quotes SET times_used = times_used + 1 WHERE id = ? RETURNING text`, id).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Newf(apperr.ErrNotFound, "quote %d not found", id)
	}
	if err != nil {
		return persistenceErr("increment quote usage", err)
	}
	s.cache.Del(quoteCachePrefix + text)
	return nil
}

func (s *Store) CountQuotes(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quotes`).Scan(&n); err != nil {
		return 0, persistenceErr("count quotes", err)
	}
	return n, nil
}

// SeedQuotes loads a JSON array of quotes into an empty pool. A non-empty
// pool or a missing file is left alone.
func (s *Store) SeedQuotes(ctx context.Context, path string) (int, error) {
	existing, err := s.CountQuotes(ctx)
	if err != nil || existing > 0 {
		return 0, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Warnf(providers.TypeApp, "Quote seed file %s not found", path)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var seed []models.Quote
	if err := json.Unmarshal(data, &seed); err != nil {
		return 0, apperr.Wrap(apperr.ErrInvalidInput, "parse seed file", err)
	}

	n := 0
	for i := range seed {
		q := seed[i]
		q.IsActive = true
		if _, err := s.SaveQuote(ctx, &q); err != nil {
			if apperr.Is(err, apperr.ErrInvalidInput) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}
