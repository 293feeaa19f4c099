package models

import (
	"strings"
	"unicode"
)

// Quote is a source phrase from the local pool. Only TimesUsed changes after
// authoring.
type Quote struct {
	ID            int64   `json:"id"`
	Text          string  `json:"text"`
	Author        string  `json:"author"`
	Attribution   string  `json:"attribution,omitempty"`
	Difficulty    float64 `json:"difficulty"`
	IsActive      bool    `json:"is_active"`
	IsDaily       bool    `json:"is_daily"`
	DailyDate     string  `json:"daily_date,omitempty"`
	ServerID      int64   `json:"server_id,omitempty"`
	UniqueLetters int     `json:"unique_letters"`
	TimesUsed     int     `json:"times_used"`
}

// NormalizeText uppercases a phrase and trims surrounding whitespace.
func NormalizeText(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// CountUniqueLetters counts distinct A-Z letters in s after normalization.
func CountUniqueLetters(s string) int {
	seen := make(map[rune]struct{})
	for _, r := range NormalizeText(s) {
		if IsCipherLetter(r) {
			seen[r] = struct{}{}
		}
	}
	return len(seen)
}

// IsCipherLetter reports whether r takes part in the substitution.
func IsCipherLetter(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

// NormalizeLetter uppercases a single player-entered letter.
func NormalizeLetter(r rune) rune {
	return unicode.ToUpper(r)
}
