// Package game implements the puzzle state machine: letter selection,
// guessing, hints, win/loss detection and scoring.
package game

import (
	"sync"
	"time"

	apperr "cryptogram/internal/errors"
	"cryptogram/internal/models"
)

type State string

const (
	StateInProgress State = "in_progress"
	StateWon        State = "won"
	StateLost       State = "lost"
)

// Policy holds the tunable rules of play.
type Policy struct {
	// HintCost is the number of mistakes charged per hint.
	HintCost int
	// InfiniteMistakes replaces MaxMistakes when infinite mode is enabled.
	InfiniteMistakes int
	Hints            HintStrategy
}

func DefaultPolicy() Policy {
	return Policy{
		HintCost:         1,
		InfiniteMistakes: models.InfiniteMistakes,
		Hints:            FrequencyHint{},
	}
}

// HintResult is the pair revealed by a hint.
type HintResult struct {
	Cipher rune
	Plain  rune
}

// Machine owns one puzzle and serializes every mutation on it. The puzzle
// never leaves the machine by reference.
type Machine struct {
	mu     sync.Mutex
	puzzle *models.Puzzle
	policy Policy
	clock  func() time.Time
}

// NewMachine takes a private copy of p.
func NewMachine(p *models.Puzzle, policy Policy, clock func() time.Time) *Machine {
	if policy.Hints == nil {
		policy.Hints = FrequencyHint{}
	}
	if policy.InfiniteMistakes <= 0 {
		policy.InfiniteMistakes = models.InfiniteMistakes
	}
	if clock == nil {
		clock = time.Now
	}
	c := p.Clone()
	c.EnsureMaps()
	c.RecomputeDisplay()
	return &Machine{puzzle: c, policy: policy, clock: clock}
}

// Snapshot returns a deep copy of the current puzzle.
func (m *Machine) Snapshot() *models.Puzzle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puzzle.Clone()
}

func (m *Machine) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puzzle.ID
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return StateOf(m.puzzle)
}

// StateOf derives the lifecycle state from the won and lost flags.
func StateOf(p *models.Puzzle) State {
	switch {
	case p.HasWon:
		return StateWon
	case p.HasLost:
		return StateLost
	default:
		return StateInProgress
	}
}

// SelectLetter focuses a cipher letter. Selecting an already solved letter
// is a no-op.
func (m *Machine) SelectLetter(cipher rune) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireActive(); err != nil {
		return err
	}
	cipher = models.NormalizeLetter(cipher)
	if _, ok := m.puzzle.Mapping[cipher]; !ok {
		return apperr.Newf(apperr.ErrInvalidInput, "letter %q does not occur in the puzzle", cipher)
	}
	if m.puzzle.IsSolved(cipher) {
		return nil
	}
	m.puzzle.SelectedLetter = cipher
	return nil
}

// Guess proposes plain for the selected cipher letter and reports whether it
// was correct. Repeating an already rejected pair changes nothing.
func (m *Machine) Guess(plain rune) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireActive(); err != nil {
		return false, err
	}
	p := m.puzzle
	if p.SelectedLetter == 0 {
		return false, apperr.New(apperr.ErrInvalidState, "no letter selected")
	}
	plain = models.NormalizeLetter(plain)
	if !models.IsCipherLetter(plain) {
		return false, apperr.Newf(apperr.ErrInvalidInput, "guess %q is not a letter", plain)
	}

	cipher := p.SelectedLetter
	if p.Mapping[cipher] == plain {
		p.CorrectMappings[cipher] = plain
		p.GuessedMappings[cipher] = plain
		p.SelectedLetter = 0
		m.afterMutation()
		return true, nil
	}

	if !p.IncorrectGuesses.Add(cipher, plain) {
		return false, nil
	}
	p.Mistakes++
	m.afterMutation()
	return false, nil
}

// Hint reveals one unsolved pair chosen by the hint strategy and charges
// HintCost mistakes.
func (m *Machine) Hint() (HintResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireActive(); err != nil {
		return HintResult{}, err
	}
	p := m.puzzle
	if p.Mistakes >= p.MaxMistakes {
		return HintResult{}, apperr.New(apperr.ErrInvalidState, "no hints left")
	}
	cipher, ok := m.policy.Hints.Pick(p)
	if !ok {
		return HintResult{}, apperr.New(apperr.ErrInvalidState, "nothing left to reveal")
	}

	plain := p.Mapping[cipher]
	p.CorrectMappings[cipher] = plain
	p.GuessedMappings[cipher] = plain
	if p.SelectedLetter == cipher {
		p.SelectedLetter = 0
	}
	p.Mistakes += m.policy.HintCost
	m.afterMutation()
	return HintResult{Cipher: cipher, Plain: plain}, nil
}

// EnableInfiniteMode lifts the mistake ceiling and reopens a lost puzzle for
// practice. A won puzzle stays closed.
func (m *Machine) EnableInfiniteMode() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.puzzle
	if p.HasWon {
		return apperr.New(apperr.ErrInvalidState, "puzzle already solved")
	}
	p.InfiniteMode = true
	p.MaxMistakes = m.policy.InfiniteMistakes
	p.HasLost = false
	m.touch()
	return nil
}

func (m *Machine) requireActive() error {
	if m.puzzle.IsTerminal() {
		return apperr.Newf(apperr.ErrInvalidState, "puzzle %s is %s", m.puzzle.ID, StateOf(m.puzzle))
	}
	return nil
}

// afterMutation recomputes derived state and evaluates win, then loss.
func (m *Machine) afterMutation() {
	p := m.puzzle
	p.RecomputeDisplay()
	if allSolved(p) {
		p.HasWon = true
		p.SelectedLetter = 0
	} else if p.Mistakes >= p.MaxMistakes {
		p.HasLost = true
		p.SelectedLetter = 0
	}
	m.touch()
}

func allSolved(p *models.Puzzle) bool {
	for c, plain := range p.Mapping {
		if got, ok := p.CorrectMappings[c]; !ok || got != plain {
			return false
		}
	}
	return true
}

// touch stamps LastUpdateTime, strictly increasing per machine.
func (m *Machine) touch() {
	now := m.clock()
	if !now.After(m.puzzle.LastUpdateTime) {
		now = m.puzzle.LastUpdateTime.Add(time.Nanosecond)
	}
	m.puzzle.LastUpdateTime = now
}
