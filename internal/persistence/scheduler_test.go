package persistence

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"cryptogram/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDrainer struct {
	calls atomic.Int32
}

func (d *countingDrainer) ProcessPending(context.Context) (int, error) {
	d.calls.Add(1)
	return 0, nil
}

func newTestScheduler(t *testing.T, comp *testutil.MockCompressor, drainer Drainer) (*Scheduler, *testutil.MockMetrics) {
	t.Helper()
	conf := testConfig(t.TempDir())
	store := newTestStore(t, conf)
	logger := &testutil.MockLogger{}
	metrics := &testutil.MockMetrics{}
	fm := NewFileManager(comp, store, logger)
	archive := NewArchive(conf, store, comp, logger)
	return NewScheduler(conf, logger, metrics, fm, archive, drainer).(*Scheduler), metrics
}

func TestScheduler_Restore_FileNotExist(t *testing.T) {
	s, _ := newTestScheduler(t, &testutil.MockCompressor{}, nil)
	assert.NoError(t, s.Restore())
	_, err := os.Stat(s.config.Persistence.ArchiveDir)
	assert.NoError(t, err, "archive directory is created on restore")
}

func TestScheduler_Restore_CorruptedFile(t *testing.T) {
	s, _ := newTestScheduler(t, &testutil.MockCompressor{}, nil)
	require.NoError(t, os.WriteFile(s.config.Persistence.BackupPath, []byte("not json"), 0o644))
	assert.Error(t, s.Restore())
}

func TestScheduler_Persist_Success(t *testing.T) {
	s, metrics := newTestScheduler(t, &testutil.MockCompressor{}, nil)
	require.NoError(t, s.Persist())

	_, err := os.Stat(s.config.Persistence.BackupPath)
	assert.NoError(t, err)
	assert.Equal(t, 1, metrics.Count("persist"))
}

func TestScheduler_Persist_WriteError(t *testing.T) {
	comp := &testutil.MockCompressor{
		CompressFn: func([]byte) ([]byte, error) { return nil, errors.New("compress error") },
	}
	s, _ := newTestScheduler(t, comp, nil)
	assert.Error(t, s.Persist())
}

func TestScheduler_StopNilCron(t *testing.T) {
	s, _ := newTestScheduler(t, &testutil.MockCompressor{}, nil)
	s.Stop()
}

func TestScheduler_InitRunsJobs(t *testing.T) {
	drainer := &countingDrainer{}
	s, metrics := newTestScheduler(t, &testutil.MockCompressor{}, drainer)
	s.Init()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return drainer.calls.Load() > 0 && metrics.Count("persist") > 0
	}, 5*time.Second, 50*time.Millisecond)
}
