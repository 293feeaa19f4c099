package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cryptogram/internal/cipher"
	"cryptogram/internal/models"
	"cryptogram/internal/storage"
	"cryptogram/internal/structures"
	"cryptogram/internal/testutil"

	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func testConfig(dir string) *structures.Config {
	return &structures.Config{
		Storage: structures.StorageConfig{DBPath: filepath.Join(dir, "cryptogram.db")},
		Persistence: structures.Persistence{
			BackupPath:   filepath.Join(dir, "backup.zst"),
			SaveInterval: time.Second,
			ArchiveDir:   filepath.Join(dir, "archive"),
			ArchiveTTL:   24 * time.Hour,
		},
		Sync: structures.SyncConfig{Interval: time.Second},
	}
}

func newTestStore(t *testing.T, conf *structures.Config) storage.StoreInterface {
	t.Helper()
	store, err := storage.NewStore(context.Background(), conf, &testutil.MockLogger{}, testutil.NewMockCache())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newPuzzle(t *testing.T, seed uint64, text string) *models.Puzzle {
	t.Helper()
	e := cipher.NewSeededEngine(seed, seed+1, func() time.Time { return baseTime })
	p, err := e.Encrypt(text, models.DifficultyMedium)
	require.NoError(t, err)
	p.UserID = "u1"
	return p
}

// finishedPuzzle stores a won, finalized and uploaded puzzle last touched at.
func finishedPuzzle(t *testing.T, store storage.StoreInterface, seed uint64, at time.Time) *models.Puzzle {
	t.Helper()
	ctx := context.Background()
	p := newPuzzle(t, seed, "TO BE OR NOT TO BE")
	p.HasWon = true
	p.LastUpdateTime = at
	applied, err := store.FinalizePuzzle(ctx, p, models.GameResult{Won: true, PlayedAt: at})
	require.NoError(t, err)
	require.True(t, applied)
	require.NoError(t, store.MarkUploaded(ctx, p.ID))
	return p
}
