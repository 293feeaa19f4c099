package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	apperr "cryptogram/internal/errors"
	"cryptogram/internal/models"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveQuote_NormalizesAndCounts(t *testing.T) {
	s, _ := newTestStore(t)
	q, err := s.SaveQuote(context.Background(), &models.Quote{Text: " to be or not to be ", Author: "Shakespeare", IsActive: true})
	require.NoError(t, err)
	assert.NotZero(t, q.ID)
	assert.Equal(t, "TO BE OR NOT TO BE", q.Text)
	assert.Equal(t, 6, q.UniqueLetters)

	_, err = s.SaveQuote(context.Background(), &models.Quote{Text: "   "})
	assert.True(t, apperr.Is(err, apperr.ErrInvalidInput))
}

func TestSaveQuote_DailyDateUpserts(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.SaveQuote(ctx, &models.Quote{Text: "FIRST", IsDaily: true, DailyDate: "2026-04-01", IsActive: true})
	require.NoError(t, err)
	second, err := s.SaveQuote(ctx, &models.Quote{Text: "SECOND", IsDaily: true, DailyDate: "2026-04-01", IsActive: true, ServerID: 99})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, err := s.FetchDailyQuote(ctx, "2026-04-01")
	require.NoError(t, err)
	assert.Equal(t, "SECOND", got.Text)
	assert.Equal(t, int64(99), got.ServerID)
	assert.True(t, got.IsDaily)

	_, err = s.FetchDailyQuote(ctx, "2026-04-02")
	assert.True(t, apperr.Is(err, apperr.ErrNotFound))
}

func TestFetchRandomActiveQuote_PrefersUnplayed(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a, err := s.SaveQuote(ctx, &models.Quote{Text: "ALPHA", IsActive: true})
	require.NoError(t, err)
	b, err := s.SaveQuote(ctx, &models.Quote{Text: "BRAVO", IsActive: true})
	require.NoError(t, err)
	_, err = s.SaveQuote(ctx, &models.Quote{Text: "RETIRED", IsActive: false})
	require.NoError(t, err)
	_, err = s.SaveQuote(ctx, &models.Quote{Text: "DAILY ONLY", IsActive: true, IsDaily: true, DailyDate: "2026-04-01"})
	require.NoError(t, err)

	played := roaring.New()
	played.Add(uint32(a.ID))
	for i := 0; i < 10; i++ {
		q, err := s.FetchRandomActiveQuote(ctx, played)
		require.NoError(t, err)
		assert.Equal(t, b.ID, q.ID)
	}

	played.Add(uint32(b.ID))
	q, err := s.FetchRandomActiveQuote(ctx, played)
	require.NoError(t, err)
	assert.Contains(t, []int64{a.ID, b.ID}, q.ID, "falls back to the whole pool once everything was played")
}

func TestFetchRandomActiveQuote_EmptyPool(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.FetchRandomActiveQuote(context.Background(), nil)
	assert.True(t, apperr.Is(err, apperr.ErrContentUnavailable))
}

func TestQuoteBySolution_UsesCache(t *testing.T) {
	s, cache := newTestStore(t)
	ctx := context.Background()
	saved, err := s.SaveQuote(ctx, &models.Quote{Text: "CAT", Author: "Anon", Attribution: "Tales", IsActive: true})
	require.NoError(t, err)

	q, err := s.QuoteBySolution(ctx, "cat")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, q.ID)
	assert.Equal(t, "Tales", q.Attribution)
	_, cached := cache.Get(quoteCachePrefix + "CAT")
	assert.True(t, cached)

	require.NoError(t, s.IncrementQuoteUsage(ctx, saved.ID))
	_, cached = cache.Get(quoteCachePrefix + "CAT")
	assert.False(t, cached, "usage bump invalidates the cached row")

	q, err = s.QuoteBySolution(ctx, "CAT")
	require.NoError(t, err)
	assert.Equal(t, 1, q.TimesUsed)

	_, err = s.QuoteBySolution(ctx, "DOG")
	assert.True(t, apperr.Is(err, apperr.ErrNotFound))
}

func TestIncrementQuoteUsage_Unknown(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.IncrementQuoteUsage(context.Background(), 404)
	assert.True(t, apperr.Is(err, apperr.ErrNotFound))
}

func TestSeedQuotes(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "quotes.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"text": "Be yourself; everyone else is already taken.", "author": "Oscar Wilde", "difficulty": 2},
		{"text": "", "author": "Nobody"},
		{"text": "So many books, so little time.", "author": "Frank Zappa"}
	]`), 0o600))

	n, err := s.SeedQuotes(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.SeedQuotes(ctx, path)
	require.NoError(t, err)
	assert.Zero(t, n, "a populated pool is not reseeded")

	q, err := s.FetchRandomActiveQuote(ctx, nil)
	require.NoError(t, err)
	assert.True(t, q.IsActive)
}

func TestSeedQuotes_MissingFile(t *testing.T) {
	s, _ := newTestStore(t)
	n, err := s.SeedQuotes(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Zero(t, n)
}
