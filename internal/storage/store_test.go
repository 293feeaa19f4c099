package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cryptogram/internal/cipher"
	"cryptogram/internal/models"
	"cryptogram/internal/testutil"

	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *testutil.MockCache) {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "cryptogram.db"))
	require.NoError(t, err)
	cache := testutil.NewMockCache()
	s := newStore(db, &testutil.MockLogger{}, cache)
	s.now = func() time.Time { return baseTime.Add(time.Hour) }
	t.Cleanup(func() { _ = s.Close() })
	return s, cache
}

func newTestPuzzle(t *testing.T, text string) *models.Puzzle {
	t.Helper()
	e := cipher.NewSeededEngine(7, 11, func() time.Time { return baseTime })
	p, err := e.Encrypt(text, models.DifficultyMedium)
	require.NoError(t, err)
	p.UserID = "u1"
	return p
}
