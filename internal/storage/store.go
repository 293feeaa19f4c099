package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperr "cryptogram/internal/errors"
	"cryptogram/internal/keylock"
	"cryptogram/internal/models"
	"cryptogram/internal/providers"
	"cryptogram/internal/structures"

	"github.com/RoaringBitmap/roaring/v2"
)

// ErrStaleWrite is returned by SavePuzzle when the stored record is at least
// as new as the one being written. Callers treat it as a no-op.
var ErrStaleWrite = errors.New("storage: stale puzzle write")

type PuzzleRepository interface {
	SavePuzzle(ctx context.Context, p *models.Puzzle) error
	GetPuzzle(ctx context.Context, id string) (*models.Puzzle, error)
	FindInProgress(ctx context.Context, userID string, isDaily bool) (*models.Puzzle, error)
	MarkAbandoned(ctx context.Context, id, userID string) (*models.Puzzle, error)
	FinalizePuzzle(ctx context.Context, p *models.Puzzle, result models.GameResult) (bool, error)
	MarkUploaded(ctx context.Context, id string) error
	ReconcileDuplicates(ctx context.Context) (int, error)
}

type StatsRepository interface {
	GetStats(ctx context.Context, userID string) (*models.UserStats, error)
	UpdateStats(ctx context.Context, userID string, fn func(*models.UserStats) error) (*models.UserStats, error)
}

// QuoteSource is the local quote pool consulted when a game starts.
type QuoteSource interface {
	FetchRandomActiveQuote(ctx context.Context, exclude *roaring.Bitmap) (*models.Quote, error)
	FetchDailyQuote(ctx context.Context, date string) (*models.Quote, error)
}

type QuoteRepository interface {
	QuoteSource
	QuoteBySolution(ctx context.Context, text string) (*models.Quote, error)
	SaveQuote(ctx context.Context, q *models.Quote) (*models.Quote, error)
	IncrementQuoteUsage(ctx context.Context, id int64) error
	SeedQuotes(ctx context.Context, path string) (int, error)
	CountQuotes(ctx context.Context) (int, error)
}

type SyncTaskRepository interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) (bool, error)
	SaveSyncTask(ctx context.Context, task *models.SyncTask) error
	GetSyncTask(ctx context.Context, puzzleID string) (*models.SyncTask, error)
	ListSyncTasks(ctx context.Context) ([]*models.SyncTask, error)
	DeleteSyncTask(ctx context.Context, puzzleID string) error
}

// SnapshotRepository is the bulk access used by backups and the archive.
type SnapshotRepository interface {
	AllPuzzles(ctx context.Context) ([]*models.Puzzle, error)
	AllStats(ctx context.Context) ([]*models.UserStats, error)
	CountPuzzles(ctx context.Context) (int, error)
	ImportPuzzles(ctx context.Context, puzzles []*models.Puzzle) (int, error)
	ImportStats(ctx context.Context, stats []*models.UserStats) (int, error)
	ArchivablePuzzles(ctx context.Context, cutoff time.Time) ([]*models.Puzzle, error)
	DeletePuzzles(ctx context.Context, ids []string) (int, error)
}

type StoreInterface interface {
	PuzzleRepository
	StatsRepository
	QuoteRepository
	SyncTaskRepository
	SnapshotRepository
	Close() error
}

type Store struct {
	db        *DB
	cache     providers.CacheProviderInterface
	logger    providers.Logger
	puzzleMu  *keylock.Mutex
	userMu    *keylock.Mutex
	now       func() time.Time
	randIndex func(n int) int
}

func NewStore(ctx context.Context, conf *structures.Config, logger providers.Logger, cache providers.CacheProviderInterface) (StoreInterface, error) {
	db, err := Open(ctx, conf.Storage.DBPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrPersistence, "open local store", err)
	}
	s := newStore(db, logger, cache)

	if conf.Storage.SeedFile != "" {
		n, err := s.SeedQuotes(ctx, conf.Storage.SeedFile)
		if err != nil {
			logger.Warnf(providers.TypeApp, "Quote seeding failed: %v", err)
		} else if n > 0 {
			logger.Infof(providers.TypeApp, "Seeded %d quotes from %s", n, conf.Storage.SeedFile)
		}
	}
	logger.Infof(providers.TypeApp, "Local store opened at %s", conf.Storage.DBPath)
	return s, nil
}

func newStore(db *DB, logger providers.Logger, cache providers.CacheProviderInterface) *Store {
	return &Store{
		db:        db,
		cache:     cache,
		logger:    logger,
		puzzleMu:  keylock.New(),
		userMu:    keylock.New(),
		now:       time.Now,
		randIndex: randomIndex,
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn in a transaction. fn must only use tx: the pool holds a
// single connection.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.ErrPersistence, "begin transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.ErrPersistence, "commit transaction", err)
	}
	return nil
}

func persistenceErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.AppError
	if errors.As(err, &appErr) || errors.Is(err, ErrStaleWrite) {
		return err
	}
	return apperr.Wrap(apperr.ErrPersistence, op, err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}
