package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	apperr "cryptogram/internal/errors"
	"cryptogram/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSavePuzzle_InsertThenGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	p := newTestPuzzle(t, "CAT")

	require.NoError(t, s.SavePuzzle(ctx, p))

	got, err := s.GetPuzzle(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Mapping, got.Mapping)
	assert.Equal(t, p.Encrypted, got.Encrypted)
	assert.Equal(t, p.CurrentDisplay, got.CurrentDisplay)
	assert.True(t, p.LastUpdateTime.Equal(got.LastUpdateTime))
}

func TestSavePuzzle_TimestampGuard(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	p := newTestPuzzle(t, "CAT")
	require.NoError(t, s.SavePuzzle(ctx, p))

	same := p.Clone()
	same.Mistakes = 3
	assert.ErrorIs(t, s.SavePuzzle(ctx, same), ErrStaleWrite)

	older := p.Clone()
	older.LastUpdateTime = p.LastUpdateTime.Add(-time.Second)
	assert.ErrorIs(t, s.SavePuzzle(ctx, older), ErrStaleWrite)

	newer := p.Clone()
	newer.Mistakes = 1
	newer.LastUpdateTime = p.LastUpdateTime.Add(time.Second)
	require.NoError(t, s.SavePuzzle(ctx, newer))

	got, err := s.GetPuzzle(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Mistakes)

	n, err := s.CountPuzzles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSavePuzzle_ConcurrentWritersKeepNewest(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	p := newTestPuzzle(t, "CAT")

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := p.Clone()
			c.Mistakes = i
			c.LastUpdateTime = p.LastUpdateTime.Add(time.Duration(i) * time.Second)
			err := s.SavePuzzle(ctx, c)
			if err != nil {
				assert.ErrorIs(t, err, ErrStaleWrite)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.GetPuzzle(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Mistakes)
	n, err := s.CountPuzzles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSavePuzzle_RejectsInvalidID(t *testing.T) {
	s, _ := newTestStore(t)
	p := newTestPuzzle(t, "CAT")
	p.ID = "puzzle-1"
	err := s.SavePuzzle(context.Background(), p)
	assert.True(t, apperr.Is(err, apperr.ErrInvalidInput))
}

func TestGetPuzzle_NotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.GetPuzzle(context.Background(), models.NewPuzzleID())
	assert.True(t, apperr.Is(err, apperr.ErrNotFound))
}

func TestFindInProgress(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	older := newTestPuzzle(t, "OLDER GAME")
	newer := newTestPuzzle(t, "NEWER GAME")
	newer.LastUpdateTime = older.LastUpdateTime.Add(time.Minute)
	won := newTestPuzzle(t, "WON GAME")
	won.HasWon = true
	won.LastUpdateTime = older.LastUpdateTime.Add(time.Hour)
	daily := newTestPuzzle(t, "DAILY GAME")
	daily.ID = models.DailyID(baseTime)
	daily.IsDaily = true
	other := newTestPuzzle(t, "OTHER USER")
	other.UserID = "u2"
	other.LastUpdateTime = older.LastUpdateTime.Add(2 * time.Hour)

	for _, p := range []*models.Puzzle{older, newer, won, daily, other} {
		require.NoError(t, s.SavePuzzle(ctx, p))
	}

	got, err := s.FindInProgress(ctx, "u1", false)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)

	got, err = s.FindInProgress(ctx, "u1", true)
	require.NoError(t, err)
	assert.Equal(t, daily.ID, got.ID)

	_, err = s.FindInProgress(ctx, "nobody", false)
	assert.True(t, apperr.Is(err, apperr.ErrNotFound))
}

func TestMarkAbandoned(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpdateStats(ctx, "u1", func(st *models.UserStats) error {
		st.CurrentStreak = 4
		st.BestStreak = 4
		return nil
	})
	require.NoError(t, err)

	p := newTestPuzzle(t, "CAT")
	require.NoError(t, s.SavePuzzle(ctx, p))

	abandoned, err := s.MarkAbandoned(ctx, p.ID, "u1")
	require.NoError(t, err)
	assert.True(t, abandoned.HasLost)
	assert.True(t, abandoned.LastUpdateTime.After(p.LastUpdateTime))

	stored, err := s.GetPuzzle(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasLost)
	assert.True(t, stored.Abandoned)
	assert.True(t, stored.Finalized)

	stats, err := s.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.CurrentStreak)
	assert.Equal(t, 4, stats.BestStreak)

	_, err = s.MarkAbandoned(ctx, p.ID, "u1")
	assert.True(t, apperr.Is(err, apperr.ErrInvalidState))
}

func TestMarkAbandoned_NotScoredAfterwards(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p := newTestPuzzle(t, "CAT")
	require.NoError(t, s.SavePuzzle(ctx, p))
	abandoned, err := s.MarkAbandoned(ctx, p.ID, "u1")
	require.NoError(t, err)

	applied, err := s.FinalizePuzzle(ctx, abandoned, models.GameResult{PlayedAt: abandoned.LastUpdateTime})
	require.NoError(t, err)
	assert.False(t, applied)

	stats, err := s.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.GamesPlayed)
}

func TestFinalizePuzzle_AppliesStatsOnce(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p := newTestPuzzle(t, "CAT")
	p.QuoteID = 5
	require.NoError(t, s.SavePuzzle(ctx, p))

	p.HasWon = true
	p.Score = 1200
	p.TimeTaken = 30
	p.LastUpdateTime = p.LastUpdateTime.Add(30 * time.Second)
	result := models.GameResult{Won: true, Score: 1200, Mistakes: 0, TimeTaken: 30, QuoteID: 5, PlayedAt: p.LastUpdateTime}

	applied, err := s.FinalizePuzzle(ctx, p, result)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.FinalizePuzzle(ctx, p, result)
	require.NoError(t, err)
	assert.False(t, applied)

	stats, err := s.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.GamesPlayed)
	assert.Equal(t, int64(1200), stats.TotalScore)
	assert.True(t, stats.HasPlayed(5))

	stored, err := s.GetPuzzle(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.Finalized)
	assert.Equal(t, 1200, stored.Score)
}

func TestFinalizePuzzle_InsertsMissingRecord(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	p := newTestPuzzle(t, "CAT")
	p.HasLost = true

	applied, err := s.FinalizePuzzle(ctx, p, models.GameResult{Mistakes: 5})
	require.NoError(t, err)
	assert.True(t, applied)

	stored, err := s.GetPuzzle(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.Finalized)
}

func TestFinalizePuzzle_RejectsInProgress(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.FinalizePuzzle(context.Background(), newTestPuzzle(t, "CAT"), models.GameResult{})
	assert.True(t, apperr.Is(err, apperr.ErrInvalidState))
}

func TestReconcileDuplicates_KeepsNewest(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p := newTestPuzzle(t, "CAT")
	mid := p.Clone()
	mid.Mistakes = 1
	mid.LastUpdateTime = p.LastUpdateTime.Add(time.Second)
	latest := p.Clone()
	latest.Mistakes = 2
	latest.LastUpdateTime = p.LastUpdateTime.Add(2 * time.Second)
	single := newTestPuzzle(t, "DOG")

	n, err := s.ImportPuzzles(ctx, []*models.Puzzle{mid, latest, p, single})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := s.GetPuzzle(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Mistakes, "reads prefer the newest duplicate")

	removed, err := s.ReconcileDuplicates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	count, err := s.CountPuzzles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err = s.GetPuzzle(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Mistakes)

	removed, err = s.ReconcileDuplicates(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestArchivableAndDeletePuzzles(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	done := newTestPuzzle(t, "CAT")
	done.HasWon = true
	_, err := s.FinalizePuzzle(ctx, done, models.GameResult{Won: true})
	require.NoError(t, err)
	require.NoError(t, s.MarkUploaded(ctx, done.ID))

	pending := newTestPuzzle(t, "DOG")
	pending.HasLost = true
	_, err = s.FinalizePuzzle(ctx, pending, models.GameResult{})
	require.NoError(t, err)

	list, err := s.ArchivablePuzzles(ctx, baseTime.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, done.ID, list[0].ID)
	assert.True(t, list[0].Uploaded)

	list, err = s.ArchivablePuzzles(ctx, baseTime)
	require.NoError(t, err)
	assert.Empty(t, list)

	n, err := s.DeletePuzzles(ctx, []string{done.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.DeletePuzzles(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
