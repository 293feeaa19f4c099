package game

import (
	"sync"
	"testing"
	"time"

	"cryptogram/internal/cipher"
	apperr "cryptogram/internal/errors"
	"cryptogram/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// catPuzzle is plaintext CAT enciphered as XQZ (C→X, A→Q, T→Z).
func catPuzzle(maxMistakes int) *models.Puzzle {
	p := &models.Puzzle{
		ID:               models.NewPuzzleID(),
		Encrypted:        "XQZ",
		Solution:         "CAT",
		Mapping:          models.LetterMap{'X': 'C', 'Q': 'A', 'Z': 'T'},
		CorrectMappings:  models.LetterMap{},
		GuessedMappings:  models.LetterMap{},
		IncorrectGuesses: models.LetterSets{},
		MaxMistakes:      maxMistakes,
		Difficulty:       models.DifficultyMedium,
		StartTime:        start,
		LastUpdateTime:   start,
	}
	p.RecomputeDisplay()
	return p
}

func newMachine(p *models.Puzzle) *Machine {
	clock := &stepClock{now: start}
	return NewMachine(p, DefaultPolicy(), clock.Now)
}

func guess(t *testing.T, m *Machine, c, p rune) bool {
	t.Helper()
	require.NoError(t, m.SelectLetter(c))
	ok, err := m.Guess(p)
	require.NoError(t, err)
	return ok
}

func TestMachine_CatScenario(t *testing.T) {
	m := newMachine(catPuzzle(5))

	assert.False(t, guess(t, m, 'X', 'Q'))
	snap := m.Snapshot()
	assert.Equal(t, 1, snap.Mistakes)
	assert.Equal(t, "___", snap.CurrentDisplay)

	ok, err := m.Guess('C')
	require.NoError(t, err)
	assert.True(t, ok)
	snap = m.Snapshot()
	assert.Equal(t, "C__", snap.CurrentDisplay)
	assert.Equal(t, rune(0), snap.SelectedLetter)

	assert.True(t, guess(t, m, 'Q', 'A'))
	assert.True(t, guess(t, m, 'Z', 'T'))

	snap = m.Snapshot()
	assert.True(t, snap.HasWon)
	assert.False(t, snap.HasLost)
	assert.Equal(t, 1, snap.Mistakes)
	assert.Equal(t, "CAT", snap.CurrentDisplay)
	assert.Equal(t, StateWon, m.State())
}

func TestMachine_ThreeWrongGuessesLose(t *testing.T) {
	m := newMachine(catPuzzle(3))

	guess(t, m, 'X', 'A')
	guess(t, m, 'Q', 'T')
	require.NoError(t, m.SelectLetter('Z'))
	_, err := m.Guess('C')
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.True(t, snap.HasLost)
	assert.False(t, snap.HasWon)
	assert.Equal(t, 3, snap.Mistakes)
}

func TestMachine_RepeatWrongGuessDoesNotDoubleCount(t *testing.T) {
	m := newMachine(catPuzzle(5))

	guess(t, m, 'X', 'Q')
	ok, err := m.Guess('Q')
	require.NoError(t, err)
	assert.False(t, ok)

	snap := m.Snapshot()
	assert.Equal(t, 1, snap.Mistakes)
	assert.Equal(t, []rune{'Q'}, snap.IncorrectGuesses['X'])
}

func TestMachine_TerminalRejectsEverything(t *testing.T) {
	m := newMachine(catPuzzle(1))
	guess(t, m, 'X', 'Z')
	require.True(t, m.Snapshot().HasLost)
	before := m.Snapshot()

	err := m.SelectLetter('Q')
	assert.True(t, apperr.Is(err, apperr.ErrInvalidState))
	_, err = m.Guess('A')
	assert.True(t, apperr.Is(err, apperr.ErrInvalidState))
	_, err = m.Hint()
	assert.True(t, apperr.Is(err, apperr.ErrInvalidState))

	assert.Equal(t, before, m.Snapshot())
}

func TestMachine_GuessWithoutSelection(t *testing.T) {
	m := newMachine(catPuzzle(5))
	_, err := m.Guess('C')
	assert.True(t, apperr.Is(err, apperr.ErrInvalidState))
	assert.Equal(t, 0, m.Snapshot().Mistakes)
}

func TestMachine_SelectLetterValidation(t *testing.T) {
	m := newMachine(catPuzzle(5))

	err := m.SelectLetter('B')
	assert.True(t, apperr.Is(err, apperr.ErrInvalidInput))

	require.NoError(t, m.SelectLetter('x'))
	assert.Equal(t, 'X', m.Snapshot().SelectedLetter)

	guess(t, m, 'Q', 'A')
	require.NoError(t, m.SelectLetter('Q'))
	assert.Equal(t, rune(0), m.Snapshot().SelectedLetter, "solved letter cannot be selected")
}

func TestMachine_GuessRejectsNonLetters(t *testing.T) {
	m := newMachine(catPuzzle(5))
	require.NoError(t, m.SelectLetter('X'))
	_, err := m.Guess('7')
	assert.True(t, apperr.Is(err, apperr.ErrInvalidInput))
	assert.Equal(t, 0, m.Snapshot().Mistakes)
}

func TestMachine_HintRevealsMostFrequentAndCostsMistake(t *testing.T) {
	p := catPuzzle(5)
	p.Encrypted = "XQZ QQ Z"
	p.Solution = "CAT AA T"
	m := newMachine(p)

	res, err := m.Hint()
	require.NoError(t, err)
	assert.Equal(t, HintResult{Cipher: 'Q', Plain: 'A'}, res)

	snap := m.Snapshot()
	assert.Equal(t, 1, snap.Mistakes)
	assert.Equal(t, "_A_ AA _", snap.CurrentDisplay)
	assert.Equal(t, 'A', snap.CorrectMappings['Q'])
}

func TestMachine_HintRequiresMistakesBelowMax(t *testing.T) {
	p := catPuzzle(2)
	m := newMachine(p)
	guess(t, m, 'X', 'A')
	_, err := m.Hint()
	require.NoError(t, err)

	// second hint pushed mistakes to the ceiling and lost the game
	snap := m.Snapshot()
	assert.True(t, snap.HasLost)
	_, err = m.Hint()
	assert.True(t, apperr.Is(err, apperr.ErrInvalidState))
}

func TestMachine_HintCompletingPuzzleWins(t *testing.T) {
	m := newMachine(catPuzzle(3))
	guess(t, m, 'X', 'C')
	guess(t, m, 'Q', 'A')
	guess(t, m, 'Z', 'C')
	guess(t, m, 'Z', 'A')

	_, err := m.Hint()
	require.NoError(t, err)
	snap := m.Snapshot()
	assert.True(t, snap.HasWon)
	assert.False(t, snap.HasLost)
	assert.Equal(t, 3, snap.Mistakes)
}

func TestMachine_HintCostIsPolicy(t *testing.T) {
	policy := DefaultPolicy()
	policy.HintCost = 0
	m := NewMachine(catPuzzle(5), policy, nil)
	_, err := m.Hint()
	require.NoError(t, err)
	assert.Equal(t, 0, m.Snapshot().Mistakes)
}

func TestMachine_InfiniteModeReopensLostPuzzle(t *testing.T) {
	m := newMachine(catPuzzle(1))
	guess(t, m, 'X', 'A')
	require.True(t, m.Snapshot().HasLost)

	require.NoError(t, m.EnableInfiniteMode())
	snap := m.Snapshot()
	assert.False(t, snap.HasLost)
	assert.True(t, snap.InfiniteMode)
	assert.Equal(t, models.InfiniteMistakes, snap.MaxMistakes)

	for _, l := range "BDEFGHIJ" {
		guess(t, m, 'Q', l)
	}
	assert.False(t, m.Snapshot().HasLost)
	assert.True(t, guess(t, m, 'X', 'C'))
}

func TestMachine_InfiniteModeRejectedAfterWin(t *testing.T) {
	m := newMachine(catPuzzle(5))
	guess(t, m, 'X', 'C')
	guess(t, m, 'Q', 'A')
	guess(t, m, 'Z', 'T')
	assert.True(t, apperr.Is(m.EnableInfiniteMode(), apperr.ErrInvalidState))
}

func TestMachine_MistakesNeverDecrease(t *testing.T) {
	e := cipher.NewSeededEngine(42, 43, nil)
	p, err := e.Encrypt("NOW IS THE WINTER OF OUR DISCONTENT", models.DifficultyEasy)
	require.NoError(t, err)
	m := NewMachine(p, DefaultPolicy(), nil)

	last := 0
	for _, c := range p.Mapping.Keys() {
		if m.State() != StateInProgress {
			break
		}
		require.NoError(t, m.SelectLetter(c))
		for _, g := range "ETAOIN" {
			if m.State() != StateInProgress || m.Snapshot().SelectedLetter == 0 {
				break
			}
			_, err := m.Guess(g)
			require.NoError(t, err)
			snap := m.Snapshot()
			assert.GreaterOrEqual(t, snap.Mistakes, last)
			assert.False(t, snap.HasWon && snap.HasLost)
			last = snap.Mistakes
		}
	}
}

func TestMachine_LastUpdateTimeStrictlyIncreases(t *testing.T) {
	frozen := func() time.Time { return start }
	m := NewMachine(catPuzzle(5), DefaultPolicy(), frozen)

	prev := m.Snapshot().LastUpdateTime
	guess(t, m, 'X', 'A')
	next := m.Snapshot().LastUpdateTime
	assert.True(t, next.After(prev))
}

func TestMachine_SnapshotIsIsolated(t *testing.T) {
	m := newMachine(catPuzzle(5))
	snap := m.Snapshot()
	snap.CorrectMappings['X'] = 'C'
	snap.Mistakes = 4

	fresh := m.Snapshot()
	assert.Empty(t, fresh.CorrectMappings)
	assert.Equal(t, 0, fresh.Mistakes)
}

func TestMachine_ConcurrentGuessesAreSerialized(t *testing.T) {
	p := catPuzzle(models.InfiniteMistakes)
	m := newMachine(p)
	require.NoError(t, m.SelectLetter('X'))

	var wg sync.WaitGroup
	for _, l := range "ABDEFGHIJKLMNOPRSUVWY" {
		wg.Add(1)
		go func(l rune) {
			defer wg.Done()
			_, _ = m.Guess(l)
		}(l)
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, len(snap.IncorrectGuesses['X']), snap.Mistakes)
}

func TestStateOf(t *testing.T) {
	p := &models.Puzzle{}
	assert.Equal(t, StateInProgress, StateOf(p))
	p.HasLost = true
	assert.Equal(t, StateLost, StateOf(p))
	p.HasLost, p.HasWon = false, true
	assert.Equal(t, StateWon, StateOf(p))
}
