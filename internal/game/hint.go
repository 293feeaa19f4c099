package game

import "cryptogram/internal/models"

// HintStrategy picks which unsolved cipher letter a hint reveals.
type HintStrategy interface {
	Pick(p *models.Puzzle) (rune, bool)
}

// FrequencyHint reveals the unsolved cipher letter that occurs most often in
// the ciphertext; ties go to the alphabetically first letter.
type FrequencyHint struct{}

func (FrequencyHint) Pick(p *models.Puzzle) (rune, bool) {
	counts := make(map[rune]int)
	for _, r := range p.Encrypted {
		if _, ok := p.Mapping[r]; ok && !p.IsSolved(r) {
			counts[r]++
		}
	}
	var best rune
	bestCount := 0
	for _, c := range p.UnsolvedLetters() {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best, bestCount > 0
}

// FirstUnsolvedHint reveals the first unsolved letter in reading order.
type FirstUnsolvedHint struct{}

func (FirstUnsolvedHint) Pick(p *models.Puzzle) (rune, bool) {
	for _, r := range p.Encrypted {
		if _, ok := p.Mapping[r]; ok && !p.IsSolved(r) {
			return r, true
		}
	}
	return 0, false
}

// HintStrategyByName resolves the configured strategy name.
func HintStrategyByName(name string) HintStrategy {
	switch name {
	case "first":
		return FirstUnsolvedHint{}
	default:
		return FrequencyHint{}
	}
}
