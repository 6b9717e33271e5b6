package rounds

import (
	"math"

	"neurotrainer/internal/gamedata"
)

const (
	smoothing      = 0.15
	missPenalty    = 0.20
	minPerformance = 100
	perfectMs      = 1500
)

// ApplyCorrect moves score toward the round's raw points and promotes at most
// one tier. Score never decreases on a correct round.
func ApplyCorrect(score float64, tier gamedata.Tier, speedMs float64) (float64, gamedata.Tier) {
	performance := math.Max(minPerformance, perfectMs-speedMs)
	raw := performance * tier.Multiplier() * 10
	if delta := (raw - score) * smoothing; delta > 0 {
		score += delta
	}
	return score, tier.Promote(speedMs)
}

// ApplyIncorrect takes the miss penalty and demotes at most one tier when the
// speed was too slow to hold the current one.
func ApplyIncorrect(score float64, tier gamedata.Tier, speedMs float64) (float64, gamedata.Tier) {
	score = math.Max(0, score-score*missPenalty)
	return score, tier.Demote(speedMs)
}

func nextStreak(streak int, correct bool) int {
	if correct {
		return max(0, streak) + 1
	}
	return min(0, streak) - 1
}
