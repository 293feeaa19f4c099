package services

import (
	"time"

	"cryptogram/internal/game"
	"cryptogram/internal/models"
)

// SessionState is what the presentation layer sees after each action. The
// solution is only revealed once the puzzle is over.
type SessionState struct {
	PuzzleID         string            `json:"puzzle_id"`
	State            game.State        `json:"state"`
	Encrypted        string            `json:"encrypted"`
	Display          string            `json:"display"`
	SelectedLetter   string            `json:"selected_letter,omitempty"`
	Solved           models.LetterMap  `json:"solved"`
	IncorrectGuesses models.LetterSets `json:"incorrect_guesses"`
	Mistakes         int               `json:"mistakes"`
	MaxMistakes      int               `json:"max_mistakes"`
	Difficulty       models.Difficulty `json:"difficulty"`
	InfiniteMode     bool              `json:"infinite_mode"`
	IsDaily          bool              `json:"is_daily"`
	DailyDate        string            `json:"daily_date,omitempty"`
	StartTime        time.Time         `json:"start_time"`
	Score            int               `json:"score"`
	TimeTaken        int               `json:"time_taken"`
	Solution         string            `json:"solution,omitempty"`
	Author           string            `json:"author,omitempty"`
	Attribution      string            `json:"attribution,omitempty"`

	LastGuessCorrect *bool       `json:"last_guess_correct,omitempty"`
	Hint             *HintReveal `json:"hint,omitempty"`

	// Status lists non-fatal persistence or sync problems hit by the action.
	Status []string `json:"status,omitempty"`

	Puzzle *models.Puzzle `json:"-"`
}

type HintReveal struct {
	Cipher string `json:"cipher"`
	Plain  string `json:"plain"`
}

func newSessionState(p *models.Puzzle, quote *models.Quote, status []string) *SessionState {
	st := &SessionState{
		PuzzleID:         p.ID,
		State:            game.StateOf(p),
		Encrypted:        p.Encrypted,
		Display:          p.CurrentDisplay,
		Solved:           p.CorrectMappings.Clone(),
		IncorrectGuesses: p.IncorrectGuesses.Clone(),
		Mistakes:         p.Mistakes,
		MaxMistakes:      p.MaxMistakes,
		Difficulty:       p.Difficulty,
		InfiniteMode:     p.InfiniteMode,
		IsDaily:          p.IsDaily,
		DailyDate:        p.DailyDate,
		StartTime:        p.StartTime,
		TimeTaken:        game.TimeTaken(p),
		Status:           status,
		Puzzle:           p,
	}
	if p.SelectedLetter != 0 {
		st.SelectedLetter = string(p.SelectedLetter)
	}
	if p.IsTerminal() {
		st.Score = game.CalculateScore(p)
		st.Solution = p.Solution
	}
	if quote != nil {
		st.Author = quote.Author
		st.Attribution = quote.Attribution
	}
	return st
}
