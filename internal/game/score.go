package game

import "cryptogram/internal/models"

const (
	scoreBase         = 1000
	scorePerMistake   = 100
	scoreBonusWindow  = 600 // seconds
	scoreBonusDivisor = 2
)

// CalculateScore is a pure function of the final state:
//
//	lost or unsolved: 0
//	won: max(0, 1000 - 100*mistakes + max(0, 600-elapsedSeconds)/2) * multiplier
//
// with multiplier easy=1, medium=2, hard=3.
func CalculateScore(p *models.Puzzle) int {
	if !p.HasWon {
		return 0
	}
	elapsed := int(p.Elapsed().Seconds())
	bonus := 0
	if elapsed < scoreBonusWindow {
		bonus = (scoreBonusWindow - elapsed) / scoreBonusDivisor
	}
	raw := scoreBase - scorePerMistake*p.Mistakes + bonus
	if raw < 0 {
		raw = 0
	}
	return raw * p.Difficulty.Multiplier()
}

// TimeTaken is the elapsed play time in whole seconds.
func TimeTaken(p *models.Puzzle) int {
	return int(p.Elapsed().Seconds())
}
