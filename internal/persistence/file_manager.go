package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cryptogram/internal/models"
	"cryptogram/internal/persistence/interfaces"
	"cryptogram/internal/providers"
	"cryptogram/internal/storage"

	json "github.com/goccy/go-json"
)

const snapshotVersion = 1

// Snapshot is the on-disk backup format.
type Snapshot struct {
	Version   int                 `json:"version"`
	CreatedAt time.Time           `json:"created_at"`
	Puzzles   []*models.Puzzle    `json:"puzzles"`
	Stats     []*models.UserStats `json:"stats"`
}

// FileManager writes and restores compressed snapshots of the local store.
type FileManager struct {
	store      storage.StoreInterface
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewFileManager(compressor interfaces.CompressorInterface, store storage.StoreInterface, logger providers.Logger) *FileManager {
	return &FileManager{
		compressor: compressor,
		store:      store,
		logger:     logger,
	}
}

// SaveToFile dumps every puzzle and stats record atomically (tmp + rename).
func (f *FileManager) SaveToFile(ctx context.Context, fileName string) error {
	puzzles, err := f.store.AllPuzzles(ctx)
	if err != nil {
		return err
	}
	stats, err := f.store.AllStats(ctx)
	if err != nil {
		return err
	}

	jsonData, err := json.Marshal(Snapshot{
		Version:   snapshotVersion,
		CreatedAt: time.Now().UTC(),
		Puzzles:   puzzles,
		Stats:     stats,
	})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	data, err := f.compressor.Compress(jsonData)
	if err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}
	return writeAtomic(fileName, data)
}

func writeAtomic(fileName string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(fileName), 0o755); err != nil {
		return err
	}

	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}

func (f *FileManager) Close() {
	f.compressor.Close()
}

// LoadFromFile restores a snapshot into an empty store and then collapses any
// duplicate puzzle records the backup carried. A populated store or a
// missing file is left untouched.
func (f *FileManager) LoadFromFile(ctx context.Context, fileName string) error {
	existing, err := f.store.CountPuzzles(ctx)
	if err != nil {
		return err
	}
	if existing > 0 {
		f.logger.Debugf(providers.TypeApp, "Local store already populated, skipping restore from %s", fileName)
		return nil
	}

	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	decompressed, err := f.compressor.Decompress(data)
	if err != nil {
		return fmt.Errorf("decompress snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(decompressed, &snapshot); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if snapshot.Version > snapshotVersion {
		return fmt.Errorf("snapshot version %d is newer than supported %d", snapshot.Version, snapshotVersion)
	}

	puzzles, err := f.store.ImportPuzzles(ctx, snapshot.Puzzles)
	if err != nil {
		return err
	}
	stats, err := f.store.ImportStats(ctx, snapshot.Stats)
	if err != nil {
		return err
	}
	removed, err := f.store.ReconcileDuplicates(ctx)
	if err != nil {
		return err
	}

	f.logger.Infof(providers.TypeApp, "Restored %d puzzles and %d stats records from %s (%d duplicates dropped)",
		puzzles, stats, fileName, removed)
	return nil
}
