package engine

import (
	"math"
	"math/rand/v2"

	"neurotrainer/internal/gamedata"
)

const (
	DefaultWidth  = 600
	DefaultHeight = 400

	// satelliteClearance keeps distractors off the satellite's bearing.
	satelliteClearance = 0.6
	jitter             = 20
)

type Viewport struct {
	Width  float64
	Height float64
}

func (v Viewport) MinDim() float64 {
	return math.Min(v.Width, v.Height)
}

func (v Viewport) Center() (float64, float64) {
	return v.Width / 2, v.Height / 2
}

type Distractor struct {
	X     float64
	Y     float64
	Shape gamedata.Shape
}

// Layout places count distractors evenly on a ring of radius around the
// centre, skipping slots that would crowd the satellite at satDirIdx.
func Layout(vp Viewport, radius float64, satDirIdx int, shapes []gamedata.Shape, rng *rand.Rand) []Distractor {
	count := len(shapes)
	if count == 0 {
		return nil
	}
	cx, cy := vp.Center()
	satAngle := float64(satDirIdx) * math.Pi / 4
	step := 2 * math.Pi / float64(count)

	out := make([]Distractor, 0, count)
	for i := 0; i < count; i++ {
		a := float64(i) * step
		if math.Abs(math.Atan2(math.Sin(a-satAngle), math.Cos(a-satAngle))) <= satelliteClearance {
			continue
		}
		out = append(out, Distractor{
			X:     cx + math.Cos(a)*radius + (rng.Float64()-0.5)*jitter,
			Y:     cy + math.Sin(a)*radius + (rng.Float64()-0.5)*jitter,
			Shape: shapes[i],
		})
	}
	return out
}
