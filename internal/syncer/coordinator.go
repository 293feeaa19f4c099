// Package syncer fetches daily challenges and uploads finished games. Network
// work never blocks gameplay: uploads are queued in the local store and
// drained by a background worker.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"cryptogram/internal/cipher"
	apperr "cryptogram/internal/errors"
	"cryptogram/internal/keylock"
	"cryptogram/internal/models"
	"cryptogram/internal/providers"
	"cryptogram/internal/remote"
	"cryptogram/internal/storage"
	"cryptogram/internal/structures"

	"go.uber.org/atomic"
)

const (
	SourceCache  = "cache"
	SourceLocal  = "local"
	SourceRemote = "remote"
)

type CoordinatorInterface interface {
	FetchDaily(ctx context.Context, date string) (*models.Puzzle, error)
	EnqueueUpload(ctx context.Context, p *models.Puzzle) error
	ProcessPending(ctx context.Context) (int, error)
	RetryFailed(ctx context.Context) (int, error)
	Status(ctx context.Context) (Status, error)
	Start()
	Stop()
}

// Status summarizes the upload queue.
type Status struct {
	Pending int  `json:"pending"`
	Failed  int  `json:"failed"`
	Running bool `json:"running"`
}

type Coordinator struct {
	store    storage.StoreInterface
	client   remote.ClientInterface
	engine   cipher.EngineInterface
	identity providers.IdentityProviderInterface
	metrics  providers.MetricsProviderInterface
	logger   providers.Logger

	difficulty  models.Difficulty
	baseBackoff time.Duration
	maxBackoff  time.Duration
	maxAttempts int

	dateLocks *keylock.Mutex
	drainMu   sync.Mutex
	running   *atomic.Bool
	wake      chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}
	lifeMu    sync.Mutex
	now       func() time.Time
}

func NewCoordinator(
	conf *structures.Config,
	store storage.StoreInterface,
	client remote.ClientInterface,
	engine cipher.EngineInterface,
	identity providers.IdentityProviderInterface,
	metrics providers.MetricsProviderInterface,
	logger providers.Logger,
) CoordinatorInterface {
	return newCoordinator(conf, store, client, engine, identity, metrics, logger)
}

func newCoordinator(
	conf *structures.Config,
	store storage.StoreInterface,
	client remote.ClientInterface,
	engine cipher.EngineInterface,
	identity providers.IdentityProviderInterface,
	metrics providers.MetricsProviderInterface,
	logger providers.Logger,
) *Coordinator {
	maxAttempts := conf.Sync.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	base := conf.Sync.BaseBackoff
	if base <= 0 {
		base = 5 * time.Second
	}
	maxBackoff := conf.Sync.MaxBackoff
	if maxBackoff < base {
		maxBackoff = base
	}
	return &Coordinator{
		store:       store,
		client:      client,
		engine:      engine,
		identity:    identity,
		metrics:     metrics,
		logger:      logger,
		difficulty:  models.ParseDifficulty(conf.Game.DefaultDifficulty),
		baseBackoff: base,
		maxBackoff:  maxBackoff,
		maxAttempts: maxAttempts,
		dateLocks:   keylock.New(),
		running:     atomic.NewBool(false),
		wake:        make(chan struct{}, 1),
		now:         time.Now,
	}
}

// FetchDaily returns the daily puzzle for date (YYYY-MM-DD): the stored one
// if any, else one built from the local daily quote, else from the remote
// provider. Concurrent calls for one date are serialized so only one fetch
// happens. A cancelled ctx discards the result.
func (c *Coordinator) FetchDaily(ctx context.Context, date string) (*models.Puzzle, error) {
	day, err := time.Parse(models.DailyDateLayout, date)
	if err != nil {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "invalid daily date %q", date)
	}
	id := models.DailyID(day)

	unlock := c.dateLocks.Lock(date)
	defer unlock()

	if p, err := c.store.GetPuzzle(ctx, id); err == nil {
		c.metrics.IncDailyFetch(SourceCache)
		return p, nil
	} else if !apperr.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	source := SourceLocal
	quote, err := c.store.FetchDailyQuote(ctx, date)
	if apperr.Is(err, apperr.ErrNotFound) {
		source = SourceRemote
		quote, err = c.fetchRemote(ctx, date)
	}
	if err != nil {
		return nil, err
	}

	p, err := c.engine.Encrypt(quote.Text, c.difficulty)
	if err != nil {
		return nil, err
	}
	p.ID = id
	p.UserID = c.identity.UserID()
	p.QuoteID = quote.ID
	p.IsDaily = true
	p.DailyDate = date

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.store.SavePuzzle(ctx, p); err != nil {
		return nil, err
	}
	c.metrics.IncDailyFetch(source)
	c.logger.Infof(providers.TypeSync, "Daily puzzle for %s built from %s quote", date, source)
	return p, nil
}

// fetchRemote asks the provider and keeps the quote for offline replays.
func (c *Coordinator) fetchRemote(ctx context.Context, date string) (*models.Quote, error) {
	token, ok := c.identity.Token()
	if !ok {
		return nil, apperr.Newf(apperr.ErrAuthRequired, "sign in to fetch the daily challenge for %s", date)
	}
	quote, err := c.client.FetchDaily(ctx, date, token)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	saved, err := c.store.SaveQuote(ctx, quote)
	if err != nil {
		c.logger.Warnf(providers.TypeSync, "Could not keep daily quote for %s: %v", date, err)
		return quote, nil
	}
	return saved, nil
}

// EnqueueUpload queues a finished game once. Already uploaded or already
// queued games are left alone.
func (c *Coordinator) EnqueueUpload(ctx context.Context, p *models.Puzzle) error {
	if !p.IsTerminal() {
		return apperr.Newf(apperr.ErrInvalidState, "puzzle %s is still in progress", p.ID)
	}
	if p.Uploaded {
		return nil
	}

	now := c.now()
	created, err := c.store.CreateSyncTask(ctx, &models.SyncTask{
		PuzzleID:      p.ID,
		Summary:       models.NewUploadSummary(p),
		Status:        models.SyncStatusPending,
		MaxAttempts:   c.maxAttempts,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return err
	}
	if created {
		c.logger.Debugf(providers.TypeSync, "Queued upload of %s", p.ID)
		c.notify()
	}
	return nil
}

// ProcessPending uploads every due task and returns how many succeeded. A
// drain already in progress makes this call a no-op. Without a token nothing
// is attempted and ErrAuthRequired is returned.
func (c *Coordinator) ProcessPending(ctx context.Context) (int, error) {
	if !c.drainMu.TryLock() {
		return 0, nil
	}
	defer c.drainMu.Unlock()
	defer c.refreshGauge(ctx)

	tasks, err := c.store.ListSyncTasks(ctx)
	if err != nil {
		return 0, err
	}

	if len(tasks) == 0 {
		return 0, nil
	}
	// Without a token every attempt would fail; keep the tasks untouched.
	token, ok := c.identity.Token()
	if !ok {
		return 0, apperr.New(apperr.ErrAuthRequired, "uploads wait for sign-in")
	}
	uploaded := 0
	for _, task := range tasks {
		if !task.IsDue(c.now()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return uploaded, err
		}

		err := c.client.Upload(ctx, task.Summary, token)
		if err == nil {
			if err := c.store.MarkUploaded(ctx, task.PuzzleID); err != nil {
				return uploaded, err
			}
			c.metrics.IncUploads("success")
			uploaded++
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return uploaded, err
		}
		if err := c.recordFailure(ctx, task, err); err != nil {
			return uploaded, err
		}
	}
	return uploaded, nil
}

func (c *Coordinator) recordFailure(ctx context.Context, task *models.SyncTask, cause error) error {
	now := c.now()
	delay := c.backoff(task.Attempts)
	task.Attempts++
	task.LastError = cause.Error()
	task.UpdatedAt = now

	limit := task.MaxAttempts
	if limit <= 0 {
		limit = c.maxAttempts
	}
	if task.Attempts >= limit {
		task.Status = models.SyncStatusFailed
		c.metrics.IncUploads("failed")
		c.logger.Warnf(providers.TypeSync, "Giving up on upload of %s after %d attempts: %v", task.PuzzleID, task.Attempts, cause)
	} else {
		task.NextAttemptAt = now.Add(delay)
		c.metrics.IncUploads("retry")
		c.logger.Debugf(providers.TypeSync, "Upload of %s failed (attempt %d), retry in %s: %v", task.PuzzleID, task.Attempts, delay, cause)
	}
	return c.store.SaveSyncTask(ctx, task)
}

// backoff is base * 2^attempts, capped at maxBackoff.
func (c *Coordinator) backoff(attempts int) time.Duration {
	delay := c.baseBackoff
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= c.maxBackoff {
			return c.maxBackoff
		}
	}
	return delay
}

// RetryFailed puts every failed task back in the queue with a fresh budget.
func (c *Coordinator) RetryFailed(ctx context.Context) (int, error) {
	tasks, err := c.store.ListSyncTasks(ctx)
	if err != nil {
		return 0, err
	}
	now := c.now()
	n := 0
	for _, task := range tasks {
		if task.Status != models.SyncStatusFailed {
			continue
		}
		task.Status = models.SyncStatusPending
		task.Attempts = 0
		task.NextAttemptAt = now
		task.UpdatedAt = now
		if err := c.store.SaveSyncTask(ctx, task); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		c.notify()
	}
	c.refreshGauge(ctx)
	return n, nil
}

func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	tasks, err := c.store.ListSyncTasks(ctx)
	if err != nil {
		return Status{}, err
	}
	st := Status{Running: c.running.Load()}
	for _, task := range tasks {
		if task.Status == models.SyncStatusFailed {
			st.Failed++
		} else {
			st.Pending++
		}
	}
	return st, nil
}

func (c *Coordinator) refreshGauge(ctx context.Context) {
	st, err := c.Status(ctx)
	if err != nil {
		return
	}
	c.metrics.SetPendingUploads(st.Pending)
}

// Start launches the upload worker. It drains once on start and then each
// time an upload is queued.
func (c *Coordinator) Start() {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if !c.running.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.notify()

	go func(done chan struct{}) {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.wake:
				if _, err := c.ProcessPending(ctx); err != nil && ctx.Err() == nil {
					c.logger.Warnf(providers.TypeSync, "Upload worker: %v", err)
				}
			}
		}
	}(c.done)
	c.logger.Infof(providers.TypeSync, "Upload worker started")
}

// Stop cancels in-flight uploads and waits for the worker to exit.
func (c *Coordinator) Stop() {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	c.cancel()
	<-c.done
	c.logger.Infof(providers.TypeSync, "Upload worker stopped")
}

func (c *Coordinator) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}
