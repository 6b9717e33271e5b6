// Package difficulty adapts stimulus difficulty after every round to keep the
// player's rolling accuracy near a target band.
//
// Four dimensions are tracked: flash duration, distractor count, distractor
// similarity and peripheral distance. The accuracy regime (above, inside or
// below the band) decides which dimensions move; reaction time only scales the
// size of the flash-duration step.
package difficulty

import (
	"encoding/json"
	"math"
	"math/rand/v2"

	"neurotrainer/internal/gamedata"
	"neurotrainer/internal/utility"
)

const (
	DefaultFlashDurationMs      = 450
	DefaultDistractorCount      = 12
	DefaultDistractorSimilarity = 0
	DefaultPeripheralDistance   = 0.35

	TargetAccuracy = 0.75
	WindowSize     = 20
	UpperBand      = 0.82
	LowerBand      = 0.62

	MinFlashMs        = 30
	MaxFlashMs        = 800
	MaxDistractors    = 18
	MinPeripheral     = 0.22
	MaxPeripheral     = 0.45
	minDistractorPull = 8
	maxPeripheralPull = 0.42
)

// Outcome is one entry of the rolling window.
type Outcome struct {
	Correct    bool    `json:"correct"`
	ReactionMs float64 `json:"reactionMs"`
}

// Parameters are the values the stimulus layout reads for the next round.
type Parameters struct {
	FlashDurationMs      int     `json:"flashDurationMs"`
	DistractorCount      int     `json:"distractorCount"`
	DistractorSimilarity float64 `json:"distractorSimilarity"`
	PeripheralDistance   float64 `json:"peripheralDistance"`
}

// State is the full persisted form of a Controller.
type State struct {
	FlashDuration        float64   `json:"flashDuration"`
	DistractorCount      float64   `json:"distractorCount"`
	DistractorSimilarity float64   `json:"distractorSimilarity"`
	PeripheralDistance   float64   `json:"peripheralDistance"`
	RecentResults        []Outcome `json:"recentResults"`
	TotalRounds          int       `json:"totalRounds"`
}

// Controller is not safe for concurrent use.
type Controller struct {
	flash       float64
	distractors float64
	similarity  float64
	peripheral  float64
	window      []Outcome
	totalRounds int

	rng *rand.Rand
}

func New() *Controller {
	return &Controller{
		flash:       DefaultFlashDurationMs,
		distractors: DefaultDistractorCount,
		similarity:  DefaultDistractorSimilarity,
		peripheral:  DefaultPeripheralDistance,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Restore rebuilds a controller from st. Zero dimensions fall back to the
// defaults and out-of-range values are clamped.
func Restore(st State) *Controller {
	c := New()
	c.restore(st)
	return c
}

func (c *Controller) restore(st State) {
	if st.FlashDuration > 0 {
		c.flash = utility.Clamp(st.FlashDuration, MinFlashMs, MaxFlashMs)
	}
	if st.DistractorCount > 0 {
		c.distractors = math.Min(st.DistractorCount, MaxDistractors)
	}
	c.similarity = utility.Clamp(st.DistractorSimilarity, 0, 1)
	if st.PeripheralDistance > 0 {
		c.peripheral = utility.Clamp(st.PeripheralDistance, MinPeripheral, MaxPeripheral)
	}
	c.window = nil
	if n := len(st.RecentResults); n > 0 {
		c.window = append([]Outcome(nil), st.RecentResults[max(0, n-WindowSize):]...)
	}
	c.totalRounds = max(0, st.TotalRounds)
}

// Seed makes distractor generation deterministic.
func (c *Controller) Seed(seed uint64) {
	c.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func (c *Controller) Adapt(correct bool, reactionMs float64) {
	c.totalRounds++
	c.window = append(c.window, Outcome{Correct: correct, ReactionMs: reactionMs})
	if len(c.window) > WindowSize {
		c.window = c.window[len(c.window)-WindowSize:]
	}

	accuracy := c.RollingAccuracy()
	rf := reactionFactor(reactionMs)

	switch {
	case correct && accuracy > UpperBand:
		c.harder(rf)
	case correct && accuracy > LowerBand:
		if rf > 0.8 {
			c.flash = math.Max(MinFlashMs, c.flash*0.99)
		}
	case !correct && accuracy < LowerBand:
		c.easier()
	case !correct:
		c.flash = math.Min(MaxFlashMs, c.flash+8)
	}
}

func (c *Controller) harder(rf float64) {
	step := 0.96
	if rf > 0.7 {
		step = 0.92
	}
	c.flash = math.Max(MinFlashMs, c.flash*step)

	if c.totalRounds > 5 && c.distractors < MaxDistractors {
		c.distractors = math.Min(MaxDistractors, c.distractors+0.3)
	}
	if c.totalRounds > 10 && c.similarity < 1 {
		c.similarity = math.Min(1, c.similarity+0.02)
	}
	if c.totalRounds > 15 && c.peripheral > MinPeripheral {
		c.peripheral = math.Max(MinPeripheral, c.peripheral-0.003)
	}
}

// easier shrinks its flash recovery as the player accumulates rounds: 40ms
// early on, 16ms from round 50.
func (c *Controller) easier() {
	progress := math.Min(1, float64(c.totalRounds)/50)
	c.flash = math.Min(MaxFlashMs, c.flash+40*(1-progress*0.6))

	if c.distractors > minDistractorPull {
		c.distractors -= 0.5
	}
	if c.similarity > 0.05 {
		c.similarity -= 0.03
	}
	if c.peripheral < maxPeripheralPull {
		c.peripheral += 0.005
	}
}

func reactionFactor(reactionMs float64) float64 {
	return utility.Clamp((5000-reactionMs)/4500, 0, 1)
}

// RollingAccuracy is the correct fraction of the window, or TargetAccuracy
// while the window is empty.
func (c *Controller) RollingAccuracy() float64 {
	if len(c.window) == 0 {
		return TargetAccuracy
	}
	correct := 0
	for _, o := range c.window {
		if o.Correct {
			correct++
		}
	}
	return float64(correct) / float64(len(c.window))
}

func (c *Controller) Parameters() Parameters {
	return Parameters{
		FlashDurationMs:      c.FlashDuration(),
		DistractorCount:      int(math.Round(c.distractors)),
		DistractorSimilarity: utility.Clamp(c.similarity, 0, 1),
		PeripheralDistance:   c.peripheral,
	}
}

func (c *Controller) FlashDuration() int {
	return int(math.Round(c.flash))
}

func (c *Controller) TotalRounds() int {
	return c.totalRounds
}

// DifficultyLevel is a 0-100 composite for display: flash duration is worth
// 40 points and each other dimension 20.
func (c *Controller) DifficultyLevel() int {
	flash := math.Max(0, (DefaultFlashDurationMs-c.flash)/400) * 40
	distractors := math.Max(0, (c.distractors-6)/12) * 20
	similarity := c.similarity * 20
	distance := math.Max(0, (MaxPeripheral-c.peripheral)/0.2) * 20
	return min(100, int(math.Round(flash+distractors+similarity+distance)))
}

// GenerateDistractorShapes picks count shapes. With probability
// similarity*0.6 each one is a neighbour of target in gamedata.Shapes.
func (c *Controller) GenerateDistractorShapes(target gamedata.Shape, count int) []gamedata.Shape {
	shapes := make([]gamedata.Shape, 0, max(0, count))
	similarity := utility.Clamp(c.similarity, 0, 1)
	n := len(gamedata.Shapes)
	idx := gamedata.ShapeIndex(target)

	for i := 0; i < count; i++ {
		if idx >= 0 && similarity > 0 && c.rng.Float64() < similarity*0.6 {
			offset := 1
			if c.rng.IntN(2) == 0 {
				offset = -1
			}
			shapes = append(shapes, gamedata.Shapes[(idx+offset+n)%n])
			continue
		}
		shapes = append(shapes, gamedata.Shapes[c.rng.IntN(n)])
	}
	return shapes
}

func (c *Controller) State() State {
	return State{
		FlashDuration:        c.flash,
		DistractorCount:      c.distractors,
		DistractorSimilarity: c.similarity,
		PeripheralDistance:   c.peripheral,
		RecentResults:        append([]Outcome(nil), c.window...),
		TotalRounds:          c.totalRounds,
	}
}

func (c *Controller) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.State())
}

func (c *Controller) UnmarshalJSON(b []byte) error {
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return err
	}
	if c.rng == nil {
		*c = *New()
	}
	c.restore(st)
	return nil
}
