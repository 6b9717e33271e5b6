package engine

import (
	"math/rand/v2"

	"neurotrainer/internal/gamedata"
)

type Question string

const (
	QuestionCenter      = Question("CENTER")
	QuestionSatellite   = Question("SATELLITE")
	QuestionColor       = Question("COLOR")
	QuestionDirection   = Question("DIRECTION")
	QuestionTargetColor = Question("TARGET_COLOR")
	QuestionSat2Shape   = Question("SAT2_SHAPE")
	QuestionSat2Dir     = Question("SAT2_DIR")
	QuestionPolarity    = Question("POLARITY")
)

const rouletteSize = 3

// Choices is the number of options the question offers.
func (q Question) Choices() int {
	switch q {
	case QuestionCenter, QuestionSatellite, QuestionSat2Shape:
		return len(gamedata.Shapes)
	case QuestionColor, QuestionTargetColor:
		return len(gamedata.Colors)
	case QuestionDirection, QuestionSat2Dir:
		return gamedata.DirectionCount
	case QuestionPolarity:
		return 2
	}
	return 0
}

// BuildQueue always opens with the core shape. T1-T3 then ask every unlocked
// question in order; from T4 up to three are sampled from the unlocked pool.
func BuildQueue(tier gamedata.Tier, rng *rand.Rand) []Question {
	queue := []Question{QuestionCenter}
	if !tier.Roulette() {
		queue = append(queue, QuestionSatellite)
		if tier.HasColor() {
			queue = append(queue, QuestionColor)
		}
		if tier.HasDirection() {
			queue = append(queue, QuestionDirection)
		}
		return queue
	}

	pool := []Question{QuestionSatellite, QuestionColor, QuestionDirection, QuestionTargetColor}
	if tier.HasSecondSat() {
		pool = append(pool, QuestionSat2Shape, QuestionSat2Dir)
	}
	if tier.HasPolarity() {
		pool = append(pool, QuestionPolarity)
	}
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return append(queue, pool[:rouletteSize]...)
}

// apply records choice as the answer to q.
func apply(a *gamedata.Answer, q Question, choice int) {
	switch q {
	case QuestionCenter:
		s := gamedata.Shapes[choice]
		a.Shape = &s
	case QuestionSatellite:
		s := gamedata.Shapes[choice]
		a.Sat = &s
	case QuestionColor:
		a.Color = &choice
	case QuestionDirection:
		a.Dir = &choice
	case QuestionTargetColor:
		a.TargetColor = &choice
	case QuestionSat2Shape:
		s := gamedata.Shapes[choice]
		a.Sat2Shape = &s
	case QuestionSat2Dir:
		a.Sat2Dir = &choice
	case QuestionPolarity:
		solid := choice == 1
		a.Solid = &solid
	}
}

// CorrectChoice is the option index that answers q for m.
func CorrectChoice(m gamedata.Manifest, q Question) int {
	switch q {
	case QuestionCenter:
		return gamedata.ShapeIndex(m.TargetShape)
	case QuestionSatellite:
		return gamedata.ShapeIndex(m.SatShape)
	case QuestionColor:
		return m.SatColorIdx
	case QuestionDirection:
		return m.SatDirIdx
	case QuestionTargetColor:
		return m.TargetColorIdx
	case QuestionSat2Shape:
		return gamedata.ShapeIndex(m.Sat2Shape)
	case QuestionSat2Dir:
		return m.Sat2DirIdx
	case QuestionPolarity:
		if m.TargetSolid {
			return 1
		}
		return 0
	}
	return -1
}
