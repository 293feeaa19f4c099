package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperr "cryptogram/internal/errors"
	"cryptogram/internal/models"
	"cryptogram/internal/persistence/interfaces"
	"cryptogram/internal/providers"
	"cryptogram/internal/storage"
	"cryptogram/internal/structures"

	json "github.com/goccy/go-json"
)

const archiveExt = ".archive.zst"

// ArchiveInterface is the cold tier for finished, uploaded games.
type ArchiveInterface interface {
	Has(id string) bool
	Restore(id string) (*models.Puzzle, error)
	Sweep(ctx context.Context) (int, error)
	Flush() error
	RestoreIndex() error
	Close()
}

// ArchiveEntry is one archived puzzle.
type ArchiveEntry struct {
	Puzzle     *models.Puzzle `json:"puzzle"`
	ArchivedAt time.Time      `json:"archived_at"`
}

// ArchiveFile is the on-disk format of one monthly bucket.
type ArchiveFile struct {
	Entries map[string]*ArchiveEntry `json:"entries"`
}

// Archive keeps puzzles in monthly buckets (by last update). Writes are
// buffered until Flush; restored entries are dropped from disk lazily.
type Archive struct {
	mu         sync.RWMutex
	dir        string
	ttl        time.Duration
	index      map[string]string                   // puzzle id → bucket
	pending    map[string]map[string]*ArchiveEntry // bucket → entries
	restored   map[string]map[string]struct{}      // bucket → ids to drop
	loaded     map[string]*ArchiveFile
	store      storage.StoreInterface
	compressor interfaces.CompressorInterface
	logger     providers.Logger
	now        func() time.Time
}

func NewArchive(conf *structures.Config, store storage.StoreInterface, compressor interfaces.CompressorInterface, logger providers.Logger) ArchiveInterface {
	return newArchive(conf.Persistence.ArchiveDir, conf.Persistence.ArchiveTTL, store, compressor, logger)
}

func newArchive(dir string, ttl time.Duration, store storage.StoreInterface, compressor interfaces.CompressorInterface, logger providers.Logger) *Archive {
	return &Archive{
		dir:        dir,
		ttl:        ttl,
		index:      make(map[string]string),
		pending:    make(map[string]map[string]*ArchiveEntry),
		restored:   make(map[string]map[string]struct{}),
		loaded:     make(map[string]*ArchiveFile),
		store:      store,
		compressor: compressor,
		logger:     logger,
		now:        time.Now,
	}
}

func bucketOf(p *models.Puzzle) string {
	return p.LastUpdateTime.UTC().Format("2006-01")
}

func (a *Archive) Has(id string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.index[id]
	return ok
}

// evict buffers p for the next Flush. No disk I/O.
func (a *Archive) evict(p *models.Puzzle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	bucket := bucketOf(p)
	if a.pending[bucket] == nil {
		a.pending[bucket] = make(map[string]*ArchiveEntry)
	}
	a.pending[bucket][p.ID] = &ArchiveEntry{Puzzle: p.Clone(), ArchivedAt: a.now()}
	a.index[p.ID] = bucket
}

// Restore returns an archived puzzle, from the pending buffer or disk, and
// removes it from the archive.
func (a *Archive) Restore(id string) (*models.Puzzle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	bucket, ok := a.index[id]
	if !ok {
		return nil, apperr.Newf(apperr.ErrNotFound, "puzzle %s is not archived", id)
	}

	if entries, ok := a.pending[bucket]; ok {
		if entry, ok := entries[id]; ok {
			delete(entries, id)
			if len(entries) == 0 {
				delete(a.pending, bucket)
			}
			delete(a.index, id)
			return entry.Puzzle, nil
		}
	}

	file := a.getOrLoad(bucket)
	if file == nil {
		delete(a.index, id)
		return nil, apperr.Newf(apperr.ErrNotFound, "archive bucket %s is unreadable", bucket)
	}
	entry, ok := file.Entries[id]
	if !ok {
		delete(a.index, id)
		return nil, apperr.Newf(apperr.ErrNotFound, "puzzle %s is not archived", id)
	}

	if a.restored[bucket] == nil {
		a.restored[bucket] = make(map[string]struct{})
	}
	a.restored[bucket][id] = struct{}{}
	delete(a.index, id)
	return entry.Puzzle, nil
}

// Sweep moves finished, uploaded puzzles older than the archive TTL out of
// the store. Records are deleted only after the archive is on disk.
func (a *Archive) Sweep(ctx context.Context) (int, error) {
	if a.ttl <= 0 || a.dir == "" {
		return 0, nil
	}
	candidates, err := a.store.ArchivablePuzzles(ctx, a.now().Add(-a.ttl))
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(candidates))
	for _, p := range candidates {
		a.evict(p)
		ids = append(ids, p.ID)
	}
	if err := a.Flush(); err != nil {
		return 0, fmt.Errorf("flush archive: %w", err)
	}
	if _, err := a.store.DeletePuzzles(ctx, ids); err != nil {
		return 0, err
	}
	a.logger.Infof(providers.TypeApp, "Archived %d finished puzzles", len(ids))
	return len(ids), nil
}

// Flush merges pending entries into their bucket files, applies lazy
// deletes and writes each touched bucket atomically. It is the only method
// that writes to disk.
func (a *Archive) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	buckets := make(map[string]struct{})
	for b := range a.pending {
		buckets[b] = struct{}{}
	}
	for b := range a.restored {
		buckets[b] = struct{}{}
	}

	for bucket := range buckets {
		file := a.getOrLoad(bucket)
		if file == nil {
			file = &ArchiveFile{Entries: make(map[string]*ArchiveEntry)}
		}
		for id := range a.restored[bucket] {
			delete(file.Entries, id)
		}
		for id, entry := range a.pending[bucket] {
			file.Entries[id] = entry
		}

		if len(file.Entries) > 0 {
			if err := a.writeFile(bucket, file); err != nil {
				return err
			}
			a.loaded[bucket] = file
		} else {
			os.Remove(a.bucketPath(bucket))
			delete(a.loaded, bucket)
		}

		delete(a.pending, bucket)
		delete(a.restored, bucket)
	}
	return nil
}

// RestoreIndex scans the archive directory and indexes puzzle ids. Called
// once at startup.
func (a *Archive) RestoreIndex() error {
	if a.dir == "" {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return err
	}
	files, err := filepath.Glob(filepath.Join(a.dir, "*"+archiveExt))
	if err != nil {
		return err
	}
	for _, path := range files {
		bucket := strings.TrimSuffix(filepath.Base(path), archiveExt)
		file := a.loadFromDisk(bucket)
		if file == nil {
			continue
		}
		for id := range file.Entries {
			a.index[id] = bucket
		}
	}
	return nil
}

func (a *Archive) Close() {
	a.compressor.Close()
}

// getOrLoad must be called with a.mu held.
func (a *Archive) getOrLoad(bucket string) *ArchiveFile {
	if f, ok := a.loaded[bucket]; ok {
		return f
	}
	f := a.loadFromDisk(bucket)
	if f != nil {
		a.loaded[bucket] = f
	}
	return f
}

func (a *Archive) loadFromDisk(bucket string) *ArchiveFile {
	path := a.bucketPath(bucket)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			a.logger.Errorf(providers.TypeApp, "Failed to read archive %s: %s", path, err)
		}
		return nil
	}

	decompressed, err := a.compressor.Decompress(data)
	if err != nil {
		a.logger.Errorf(providers.TypeApp, "Failed to decompress archive %s: %s", path, err)
		return nil
	}

	var f ArchiveFile
	if err := json.Unmarshal(decompressed, &f); err != nil {
		a.logger.Errorf(providers.TypeApp, "Failed to parse archive %s: %s", path, err)
		return nil
	}
	if f.Entries == nil {
		f.Entries = make(map[string]*ArchiveEntry)
	}
	return &f
}

func (a *Archive) writeFile(bucket string, f *ArchiveFile) error {
	jsonData, err := json.Marshal(f)
	if err != nil {
		return err
	}
	compressed, err := a.compressor.Compress(jsonData)
	if err != nil {
		return err
	}
	return writeAtomic(a.bucketPath(bucket), compressed)
}

func (a *Archive) bucketPath(bucket string) string {
	return filepath.Join(a.dir, bucket+archiveExt)
}
