package persistence

import (
	"context"
	"sync"
	"time"

	"cryptogram/internal/persistence/interfaces"
	"cryptogram/internal/providers"
	"cryptogram/internal/structures"

	"github.com/roylee0704/gron"
)

// Drainer works through queued uploads. Implemented by the sync coordinator.
type Drainer interface {
	ProcessPending(ctx context.Context) (int, error)
}

type Scheduler struct {
	config      *structures.Config
	logger      providers.Logger
	metrics     providers.MetricsProviderInterface
	fileManager *FileManager
	archive     ArchiveInterface
	drainer     Drainer
	cron        *gron.Cron
	opsMu       sync.Mutex
}

func (s *Scheduler) Init() {
	s.cron = gron.New()
	interval := s.config.Persistence.SaveInterval
	syncInterval := s.config.Sync.Interval

	s.cron.AddFunc(gron.Every(interval), func() {
		s.opsMu.Lock()
		defer s.opsMu.Unlock()

		if err := s.persist(); err != nil {
			s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
			return
		}
		s.logger.Infof(providers.TypeApp, "Persisted data to file %s", s.config.Persistence.BackupPath)

		if _, err := s.archive.Sweep(context.Background()); err != nil {
			s.logger.Errorf(providers.TypeApp, "Archive sweep failed: %s", err)
		}
	})

	if s.drainer != nil {
		s.cron.AddFunc(gron.Every(syncInterval), func() {
			ctx, cancel := context.WithTimeout(context.Background(), syncInterval)
			defer cancel()

			n, err := s.drainer.ProcessPending(ctx)
			if err != nil {
				s.logger.Warnf(providers.TypeSync, "Upload drain stopped: %s", err)
				return
			}
			if n > 0 {
				s.logger.Infof(providers.TypeSync, "Uploaded %d finished games", n)
			}
		})
	}

	s.cron.Start()
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Restore loads the backup into an empty store and indexes the archive.
func (s *Scheduler) Restore() error {
	err := s.fileManager.LoadFromFile(context.Background(), s.config.Persistence.BackupPath)
	if err != nil {
		return err
	}
	return s.archive.RestoreIndex()
}

func (s *Scheduler) Persist() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	s.logger.Infof(providers.TypeApp, "Persisting local store to file...")
	if err := s.persist(); err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
		return err
	}
	return nil
}

func (s *Scheduler) persist() error {
	start := time.Now()
	defer func() { s.metrics.ObservePersistenceDuration(time.Since(start)) }()

	if err := s.fileManager.SaveToFile(context.Background(), s.config.Persistence.BackupPath); err != nil {
		return err
	}
	return s.archive.Flush()
}

func NewScheduler(config *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface, fileManager *FileManager, archive ArchiveInterface, drainer Drainer) interfaces.SchedulerInterface {
	return &Scheduler{
		config:      config,
		logger:      logger,
		metrics:     metrics,
		fileManager: fileManager,
		archive:     archive,
		drainer:     drainer,
	}
}
