package models

import "strings"

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// InfiniteMistakes is the ceiling used by infinite mode; no real game reaches it.
const InfiniteMistakes = 999

// ParseDifficulty normalizes a label, falling back to medium for anything unknown.
func ParseDifficulty(label string) Difficulty {
	switch Difficulty(strings.ToLower(strings.TrimSpace(label))) {
	case DifficultyEasy:
		return DifficultyEasy
	case DifficultyHard:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// MaxMistakes returns the mistake ceiling for the difficulty.
func (d Difficulty) MaxMistakes() int {
	switch d {
	case DifficultyEasy:
		return 8
	case DifficultyHard:
		return 3
	default:
		return 5
	}
}

// Multiplier scales the final score.
func (d Difficulty) Multiplier() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyHard:
		return 3
	default:
		return 2
	}
}
