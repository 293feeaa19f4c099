package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaskChar stands in for an unsolved letter in CurrentDisplay.
const MaskChar = '_'

const dailyIDPrefix = "daily-"

// DailyDateLayout is the calendar-date layout used in daily ids.
const DailyDateLayout = "2006-01-02"

// Puzzle is one cryptogram game, active or persisted. Mutation goes through
// game.Machine; everything else works on copies.
type Puzzle struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id,omitempty"`
	QuoteID          int64      `json:"quote_id,omitempty"`
	Encrypted        string     `json:"encrypted"`
	Solution         string     `json:"solution"`
	CurrentDisplay   string     `json:"current_display"`
	Mapping          LetterMap  `json:"mapping"`
	CorrectMappings  LetterMap  `json:"correct_mappings"`
	GuessedMappings  LetterMap  `json:"guessed_mappings"`
	IncorrectGuesses LetterSets `json:"incorrect_guesses"`
	SelectedLetter   rune       `json:"-"`
	Mistakes         int        `json:"mistakes"`
	MaxMistakes      int        `json:"max_mistakes"`
	HasWon           bool       `json:"has_won"`
	HasLost          bool       `json:"has_lost"`
	InfiniteMode     bool       `json:"infinite_mode"`
	Difficulty       Difficulty `json:"difficulty"`
	StartTime        time.Time  `json:"start_time"`
	LastUpdateTime   time.Time  `json:"last_update_time"`
	IsDaily          bool       `json:"is_daily"`
	DailyDate        string     `json:"daily_date,omitempty"`
	Finalized        bool       `json:"finalized"`
	Abandoned        bool       `json:"abandoned,omitempty"`
	Score            int        `json:"score"`
	TimeTaken        int        `json:"time_taken"`
	Uploaded         bool       `json:"uploaded"`
}

// NewPuzzleID returns a fresh UUID v4 string.
func NewPuzzleID() string {
	return uuid.NewString()
}

// IsValidPuzzleID accepts UUIDs and canonical daily ids.
func IsValidPuzzleID(id string) bool {
	if date, ok := strings.CutPrefix(id, dailyIDPrefix); ok {
		_, err := time.Parse(DailyDateLayout, date)
		return err == nil
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// DailyID builds the canonical id of the daily puzzle for date.
func DailyID(date time.Time) string {
	return dailyIDPrefix + date.Format(DailyDateLayout)
}

// IsTerminal reports whether the puzzle has been won or lost.
func (p *Puzzle) IsTerminal() bool {
	return p.HasWon || p.HasLost
}

// Elapsed is the play time used for scoring.
func (p *Puzzle) Elapsed() time.Duration {
	d := p.LastUpdateTime.Sub(p.StartTime)
	if d < 0 {
		return 0
	}
	return d
}

// IsSolved reports whether the letter has been confirmed.
func (p *Puzzle) IsSolved(cipher rune) bool {
	_, ok := p.CorrectMappings[cipher]
	return ok
}

// UnsolvedLetters returns cipher letters not yet confirmed, sorted.
func (p *Puzzle) UnsolvedLetters() []rune {
	var out []rune
	for _, c := range p.Mapping.Keys() {
		if !p.IsSolved(c) {
			out = append(out, c)
		}
	}
	return out
}

// RecomputeDisplay rebuilds CurrentDisplay from the ciphertext and the
// confirmed mappings.
func (p *Puzzle) RecomputeDisplay() {
	var b strings.Builder
	b.Grow(len(p.Encrypted))
	for _, r := range p.Encrypted {
		if !IsCipherLetter(r) {
			b.WriteRune(r)
			continue
		}
		if plain, ok := p.CorrectMappings[r]; ok {
			b.WriteRune(plain)
		} else {
			b.WriteRune(MaskChar)
		}
	}
	p.CurrentDisplay = b.String()
}

// Clone returns a deep copy.
func (p *Puzzle) Clone() *Puzzle {
	if p == nil {
		return nil
	}
	c := *p
	c.Mapping = p.Mapping.Clone()
	c.CorrectMappings = p.CorrectMappings.Clone()
	c.GuessedMappings = p.GuessedMappings.Clone()
	c.IncorrectGuesses = p.IncorrectGuesses.Clone()
	return &c
}

// EnsureMaps replaces nil maps, e.g. after decoding a sparse record.
func (p *Puzzle) EnsureMaps() {
	if p.Mapping == nil {
		p.Mapping = LetterMap{}
	}
	if p.CorrectMappings == nil {
		p.CorrectMappings = LetterMap{}
	}
	if p.GuessedMappings == nil {
		p.GuessedMappings = LetterMap{}
	}
	if p.IncorrectGuesses == nil {
		p.IncorrectGuesses = LetterSets{}
	}
}
