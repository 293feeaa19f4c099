package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperr "cryptogram/internal/errors"
	"cryptogram/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStats_EmptyForNewUser(t *testing.T) {
	s, _ := newTestStore(t)
	stats, err := s.GetStats(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", stats.UserID)
	assert.Zero(t, stats.GamesPlayed)
	assert.NotNil(t, stats.PlayedQuotes)
}

func TestUpdateStats_PersistsAndRoundTrips(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	at := baseTime.Add(5 * time.Minute)

	updated, err := s.UpdateStats(ctx, "u1", func(st *models.UserStats) error {
		st.Apply(models.GameResult{Won: true, Score: 900, Mistakes: 2, TimeTaken: 80, QuoteID: 3, PlayedAt: at})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.GamesWon)

	got, err := s.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.GamesPlayed)
	assert.Equal(t, 1, got.CurrentStreak)
	assert.Equal(t, int64(900), got.TotalScore)
	assert.InDelta(t, 2.0, got.AverageMistakes, 1e-9)
	assert.True(t, at.Equal(got.LastPlayedDate))
	assert.Equal(t, []int64{3}, got.PlayedQuoteIDs())
}

func TestUpdateStats_FailedUpdateLeavesRecord(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, err := s.UpdateStats(ctx, "u1", func(st *models.UserStats) error {
		st.GamesPlayed = 1
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = s.UpdateStats(ctx, "u1", func(st *models.UserStats) error {
		st.GamesPlayed = 100
		return boom
	})
	assert.True(t, apperr.Is(err, apperr.ErrPersistence))
	assert.ErrorIs(t, err, boom)

	got, err := s.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.GamesPlayed)
}

func TestImportStats_SkipsExistingUsers(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, err := s.UpdateStats(ctx, "u1", func(st *models.UserStats) error {
		st.GamesPlayed = 7
		return nil
	})
	require.NoError(t, err)

	incoming := []*models.UserStats{
		{UserID: "u1", GamesPlayed: 1},
		{UserID: "u2", GamesPlayed: 2},
	}
	n, err := s.ImportStats(ctx, incoming)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := s.AllStats(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 7, all[0].GamesPlayed)
	assert.Equal(t, 2, all[1].GamesPlayed)
}

func TestFinalizePuzzle_ConcurrentResultsForOneUser(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	const games = 20

	var wg sync.WaitGroup
	errs := make(chan error, games)
	for i := 0; i < games; i++ {
		p := newTestPuzzle(t, "CAT")
		p.HasWon = i%2 == 0
		p.HasLost = !p.HasWon
		p.QuoteID = int64(i + 1)
		result := models.GameResult{
			Won:       p.HasWon,
			Score:     100 * (i + 1),
			Mistakes:  i % 4,
			TimeTaken: 10 * (i + 1),
			QuoteID:   p.QuoteID,
			PlayedAt:  baseTime,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.FinalizePuzzle(ctx, p, result)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stats, err := s.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, games, stats.GamesPlayed)
	assert.Equal(t, games/2, stats.GamesWon)
	assert.Equal(t, int64(21000), stats.TotalScore)
	assert.InDelta(t, 1.5, stats.AverageMistakes, 1e-9)
	assert.InDelta(t, 105.0, stats.AverageTime, 1e-9)
	assert.Len(t, stats.PlayedQuoteIDs(), games)
}

func TestUpdateStats_ConcurrentUpdatesAreSerialized(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	const games = 20

	var wg sync.WaitGroup
	for i := 0; i < games; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateStats(ctx, "u1", func(st *models.UserStats) error {
				st.Apply(models.GameResult{Won: true, Score: 10, Mistakes: 2, TimeTaken: 40, PlayedAt: baseTime})
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stats, err := s.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, games, stats.GamesPlayed)
	assert.Equal(t, games, stats.BestStreak)
	assert.Equal(t, int64(10*games), stats.TotalScore)
	assert.InDelta(t, 2.0, stats.AverageMistakes, 1e-9)
	assert.InDelta(t, 40.0, stats.AverageTime, 1e-9)
}
