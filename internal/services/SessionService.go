// Package services holds the session controller that drives one player's
// game: it picks or resumes puzzles, routes actions into the state machine
// and persists, scores and queues results as side effects.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cryptogram/internal/cipher"
	apperr "cryptogram/internal/errors"
	"cryptogram/internal/game"
	"cryptogram/internal/models"
	"cryptogram/internal/providers"
	"cryptogram/internal/storage"
	"cryptogram/internal/structures"
	"cryptogram/internal/syncer"

	"github.com/RoaringBitmap/roaring/v2"
)

const usageTimeout = 5 * time.Second

type SessionServiceInterface interface {
	CheckForInProgress(ctx context.Context, isDaily bool) (*models.Puzzle, error)
	NewCustomGame(ctx context.Context, difficulty string) (*SessionState, error)
	NewDailyGame(ctx context.Context, date string) (*SessionState, error)
	ResumeGame(ctx context.Context, id string) (*SessionState, error)
	SelectLetter(ctx context.Context, letter rune) (*SessionState, error)
	ApplyGuess(ctx context.Context, letter rune) (*SessionState, error)
	ApplyHint(ctx context.Context) (*SessionState, error)
	EnableInfiniteMode(ctx context.Context) (*SessionState, error)
	Reset(ctx context.Context) (*SessionState, error)
	FinalizeIfTerminal(ctx context.Context) (*SessionState, error)
	CurrentState() (*SessionState, error)
	CleanupDuplicates(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*models.UserStats, error)
	SyncStatus(ctx context.Context) (syncer.Status, error)
	RetrySync(ctx context.Context) (int, error)
	Close()
}

// ArchiveReader gives access to puzzles moved out of the local store.
type ArchiveReader interface {
	Has(id string) bool
	Restore(id string) (*models.Puzzle, error)
}

type SessionService struct {
	mu        sync.Mutex
	machine   *game.Machine
	quote     *models.Quote
	finalized bool
	status    []string

	store       storage.StoreInterface
	coordinator syncer.CoordinatorInterface
	engine      cipher.EngineInterface
	archive     ArchiveReader
	identity    providers.IdentityProviderInterface
	metrics     providers.MetricsProviderInterface
	logger      providers.Logger

	policy     game.Policy
	difficulty models.Difficulty
	background sync.WaitGroup
	now        func() time.Time
}

func NewSessionService(
	conf *structures.Config,
	store storage.StoreInterface,
	coordinator syncer.CoordinatorInterface,
	engine cipher.EngineInterface,
	archive ArchiveReader,
	identity providers.IdentityProviderInterface,
	metrics providers.MetricsProviderInterface,
	logger providers.Logger,
) SessionServiceInterface {
	return newSessionService(conf, store, coordinator, engine, archive, identity, metrics, logger)
}

func newSessionService(
	conf *structures.Config,
	store storage.StoreInterface,
	coordinator syncer.CoordinatorInterface,
	engine cipher.EngineInterface,
	archive ArchiveReader,
	identity providers.IdentityProviderInterface,
	metrics providers.MetricsProviderInterface,
	logger providers.Logger,
) *SessionService {
	return &SessionService{
		store:       store,
		coordinator: coordinator,
		engine:      engine,
		archive:     archive,
		identity:    identity,
		metrics:     metrics,
		logger:      logger,
		policy: game.Policy{
			HintCost:         conf.Game.HintCost,
			InfiniteMistakes: models.InfiniteMistakes,
			Hints:            game.HintStrategyByName(conf.Game.HintStrategy),
		},
		difficulty: models.ParseDifficulty(conf.Game.DefaultDifficulty),
		now:        time.Now,
	}
}

// CheckForInProgress returns the resumable puzzle for the mode, or nil.
func (s *SessionService) CheckForInProgress(ctx context.Context, isDaily bool) (*models.Puzzle, error) {
	p, err := s.store.FindInProgress(ctx, s.identity.UserID(), isDaily)
	if apperr.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// NewCustomGame starts a puzzle from a quote the player has not seen yet,
// falling back to any active quote and then to the built-in phrase. An empty
// difficulty uses the configured default.
func (s *SessionService) NewCustomGame(ctx context.Context, difficulty string) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = nil
	return s.startCustom(ctx, s.parseDifficulty(difficulty))
}

func (s *SessionService) startCustom(ctx context.Context, difficulty models.Difficulty) (*SessionState, error) {
	userID := s.identity.UserID()

	var played *roaring.Bitmap
	if stats, err := s.store.GetStats(ctx, userID); err != nil {
		s.warn("stats unavailable: %v", err)
	} else {
		played = stats.PlayedQuotes
	}

	quote, err := s.store.FetchRandomActiveQuote(ctx, played)
	if err != nil {
		if !apperr.Is(err, apperr.ErrContentUnavailable) {
			s.warn("quote pool unavailable: %v", err)
		}
		fallback := cipher.FallbackQuote
		quote = &fallback
	}

	p, err := s.engine.Encrypt(quote.Text, difficulty)
	if err != nil {
		return nil, err
	}
	p.UserID = userID
	p.QuoteID = quote.ID

	s.install(p, quote)
	s.persist(ctx, p)
	s.metrics.IncGamesStarted("custom")
	s.logger.Infof(providers.TypeGame, "Started custom puzzle %s (%s)", p.ID, p.Difficulty)

	if quote.ID > 0 {
		s.incrementUsage(quote.ID)
	}
	return newSessionState(p, quote, s.status), nil
}

// NewDailyGame loads the daily puzzle for date (today when empty). The fetch
// runs without holding the session lock.
func (s *SessionService) NewDailyGame(ctx context.Context, date string) (*SessionState, error) {
	if date == "" {
		date = s.now().UTC().Format(models.DailyDateLayout)
	}
	p, err := s.coordinator.FetchDaily(ctx, date)
	if err != nil {
		return nil, err
	}
	quote := s.lookupQuote(ctx, p)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = nil
	s.install(p, quote)
	if !p.IsTerminal() {
		s.metrics.IncGamesStarted("daily")
	}
	s.logger.Infof(providers.TypeGame, "Loaded daily puzzle %s", p.ID)
	return s.snapshotState(), nil
}

// ResumeGame loads a stored puzzle, restoring it from the archive when it
// was moved there. A terminal puzzle that never got finalized is finalized.
func (s *SessionService) ResumeGame(ctx context.Context, id string) (*SessionState, error) {
	if !models.IsValidPuzzleID(id) {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "invalid puzzle id %q", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = nil

	p, err := s.store.GetPuzzle(ctx, id)
	if apperr.Is(err, apperr.ErrNotFound) && s.archive != nil && s.archive.Has(id) {
		p, err = s.archive.Restore(id)
		if err == nil {
			if _, ierr := s.store.ImportPuzzles(ctx, []*models.Puzzle{p}); ierr != nil {
				s.warn("restored puzzle not saved: %v", ierr)
			}
		}
	}
	if err != nil {
		return nil, err
	}

	s.install(p, s.lookupQuote(ctx, p))
	if p.IsTerminal() && !p.Finalized {
		s.finalize(ctx)
	}
	s.logger.Infof(providers.TypeGame, "Resumed puzzle %s", p.ID)
	return s.snapshotState(), nil
}

func (s *SessionService) SelectLetter(ctx context.Context, letter rune) (*SessionState, error) {
	return s.act(ctx, func(m *game.Machine) error {
		return m.SelectLetter(letter)
	}, nil)
}

func (s *SessionService) ApplyGuess(ctx context.Context, letter rune) (*SessionState, error) {
	var correct bool
	return s.act(ctx, func(m *game.Machine) error {
		ok, err := m.Guess(letter)
		if err != nil {
			return err
		}
		correct = ok
		if ok {
			s.metrics.IncGuesses("correct")
		} else {
			s.metrics.IncGuesses("incorrect")
		}
		return nil
	}, func(st *SessionState) {
		st.LastGuessCorrect = &correct
	})
}

func (s *SessionService) ApplyHint(ctx context.Context) (*SessionState, error) {
	var reveal game.HintResult
	return s.act(ctx, func(m *game.Machine) error {
		res, err := m.Hint()
		if err != nil {
			return err
		}
		reveal = res
		s.metrics.IncHints()
		return nil
	}, func(st *SessionState) {
		st.Hint = &HintReveal{Cipher: string(reveal.Cipher), Plain: string(reveal.Plain)}
	})
}

// EnableInfiniteMode reopens a lost puzzle for practice. Practice play is not
// persisted; the recorded loss stands.
func (s *SessionService) EnableInfiniteMode(ctx context.Context) (*SessionState, error) {
	return s.act(ctx, func(m *game.Machine) error {
		return m.EnableInfiniteMode()
	}, nil)
}

// Reset abandons the current in-progress puzzle, which costs the streak, and
// starts a fresh one in the same mode. Daily mode replays the date's quote
// under the same id.
func (s *SessionService) Reset(ctx context.Context) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = nil

	if s.machine == nil {
		return s.startCustom(ctx, s.difficulty)
	}
	current := s.machine.Snapshot()
	prev, err := s.abandon(ctx, current)
	if err != nil {
		return nil, err
	}
	if current.IsDaily {
		return s.restartDaily(ctx, prev)
	}
	return s.startCustom(ctx, current.Difficulty)
}

// abandon marks the stored record of current abandoned when it is still in
// progress and returns the latest known record. The stored state decides,
// not the machine: infinite mode may have cleared the loss in memory only.
func (s *SessionService) abandon(ctx context.Context, current *models.Puzzle) (*models.Puzzle, error) {
	stored, err := s.store.GetPuzzle(ctx, current.ID)
	if apperr.Is(err, apperr.ErrNotFound) {
		return current, nil
	}
	if err != nil {
		return nil, err
	}
	if stored.IsTerminal() {
		return stored, nil
	}

	abandoned, err := s.store.MarkAbandoned(ctx, stored.ID, s.identity.UserID())
	if err != nil {
		return nil, err
	}
	s.metrics.IncGamesFinished("abandoned")
	s.logger.Infof(providers.TypeGame, "Abandoned puzzle %s", abandoned.ID)
	return abandoned, nil
}

// restartDaily encrypts the daily quote afresh under the daily id. A daily
// that was already recorded stays recorded, so replaying it is practice; an
// abandoned one is played for real.
func (s *SessionService) restartDaily(ctx context.Context, prev *models.Puzzle) (*SessionState, error) {
	p, err := s.engine.Encrypt(prev.Solution, prev.Difficulty)
	if err != nil {
		return nil, err
	}
	p.ID = prev.ID
	p.UserID = s.identity.UserID()
	p.QuoteID = prev.QuoteID
	p.IsDaily = true
	p.DailyDate = prev.DailyDate
	if !prev.Abandoned {
		p.Finalized = prev.Finalized
		p.Uploaded = prev.Uploaded
	}
	if !p.LastUpdateTime.After(prev.LastUpdateTime) {
		p.LastUpdateTime = prev.LastUpdateTime.Add(time.Nanosecond)
	}

	s.install(p, s.lookupQuote(ctx, p))
	s.persist(ctx, p)
	if !p.Finalized {
		s.metrics.IncGamesStarted("daily")
	}
	s.logger.Infof(providers.TypeGame, "Restarted daily puzzle %s", p.ID)
	return s.snapshotState(), nil
}

// FinalizeIfTerminal scores and records the current puzzle if it is over and
// not yet recorded.
func (s *SessionService) FinalizeIfTerminal(ctx context.Context) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = nil
	if s.machine == nil {
		return nil, errNoActivePuzzle
	}
	s.finalize(ctx)
	return s.snapshotState(), nil
}

func (s *SessionService) CurrentState() (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine == nil {
		return nil, errNoActivePuzzle
	}
	return s.snapshotState(), nil
}

func (s *SessionService) CleanupDuplicates(ctx context.Context) (int, error) {
	return s.store.ReconcileDuplicates(ctx)
}

func (s *SessionService) Stats(ctx context.Context) (*models.UserStats, error) {
	return s.store.GetStats(ctx, s.identity.UserID())
}

func (s *SessionService) SyncStatus(ctx context.Context) (syncer.Status, error) {
	return s.coordinator.Status(ctx)
}

func (s *SessionService) RetrySync(ctx context.Context) (int, error) {
	return s.coordinator.RetryFailed(ctx)
}

// Close waits for background quote bookkeeping to finish.
func (s *SessionService) Close() {
	s.background.Wait()
}

var errNoActivePuzzle = apperr.New(apperr.ErrInvalidState, "no active puzzle")

// act runs one gameplay mutation: machine, then persist, then finalize if the
// puzzle just ended. A rejected action changes nothing and is not persisted.
func (s *SessionService) act(ctx context.Context, mutate func(*game.Machine) error, decorate func(*SessionState)) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = nil

	if s.machine == nil {
		return nil, errNoActivePuzzle
	}
	if err := mutate(s.machine); err != nil {
		return nil, err
	}

	p := s.machine.Snapshot()
	if !p.InfiniteMode {
		s.persist(ctx, p)
	}
	if p.IsTerminal() {
		s.finalize(ctx)
	}

	st := s.snapshotState()
	if decorate != nil {
		decorate(st)
	}
	return st, nil
}

func (s *SessionService) install(p *models.Puzzle, quote *models.Quote) {
	s.machine = game.NewMachine(p, s.policy, s.now)
	s.quote = quote
	s.finalized = p.Finalized
}

func (s *SessionService) snapshotState() *SessionState {
	return newSessionState(s.machine.Snapshot(), s.quote, s.status)
}

// persist writes p; a stale write means a newer state is already stored.
func (s *SessionService) persist(ctx context.Context, p *models.Puzzle) {
	err := s.store.SavePuzzle(ctx, p)
	if err == nil || errors.Is(err, storage.ErrStaleWrite) {
		return
	}
	s.warn("puzzle not saved: %v", err)
}

// finalize scores the terminal puzzle, folds it into the stats and queues
// the upload. Safe to call repeatedly; a failed attempt is retried on the
// next call.
func (s *SessionService) finalize(ctx context.Context) {
	p := s.machine.Snapshot()
	if !p.IsTerminal() || s.finalized || p.InfiniteMode {
		return
	}

	p.Score = game.CalculateScore(p)
	p.TimeTaken = game.TimeTaken(p)
	result := models.GameResult{
		Won:       p.HasWon,
		Score:     p.Score,
		Mistakes:  p.Mistakes,
		TimeTaken: p.TimeTaken,
		QuoteID:   p.QuoteID,
		PlayedAt:  p.LastUpdateTime,
	}

	applied, err := s.store.FinalizePuzzle(ctx, p, result)
	if err != nil {
		s.warn("result not recorded: %v", err)
		return
	}
	s.finalized = true
	p.Finalized = true
	if applied {
		s.metrics.IncGamesFinished(string(game.StateOf(p)))
		s.logger.Infof(providers.TypeGame, "Puzzle %s %s with score %d", p.ID, game.StateOf(p), p.Score)
	}

	if err := s.coordinator.EnqueueUpload(ctx, p); err != nil {
		s.warn("upload not queued: %v", err)
	}
}

// lookupQuote recovers author and attribution from the solution text.
func (s *SessionService) lookupQuote(ctx context.Context, p *models.Puzzle) *models.Quote {
	q, err := s.store.QuoteBySolution(ctx, p.Solution)
	if err != nil {
		if !apperr.Is(err, apperr.ErrNotFound) {
			s.logger.Warnf(providers.TypeGame, "Quote lookup for %s failed: %v", p.ID, err)
		}
		return nil
	}
	return q
}

func (s *SessionService) incrementUsage(id int64) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), usageTimeout)
		defer cancel()
		if err := s.store.IncrementQuoteUsage(ctx, id); err != nil {
			s.logger.Warnf(providers.TypeGame, "Quote %d usage not counted: %v", id, err)
		}
	}()
}

func (s *SessionService) parseDifficulty(label string) models.Difficulty {
	if label == "" {
		return s.difficulty
	}
	return models.ParseDifficulty(label)
}

// warn records a non-fatal problem for the caller and the log.
func (s *SessionService) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	s.status = append(s.status, msg)
	s.logger.Warnf(providers.TypeGame, "%s", msg)
}
