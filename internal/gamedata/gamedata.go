package gamedata

import "fmt"

type Shape string

const (
	ShapeCircle   = Shape("circle")
	ShapeSquare   = Shape("square")
	ShapeTriangle = Shape("triangle")
	ShapeDiamond  = Shape("diamond")
	ShapeCross    = Shape("cross")
)

// Shapes is the fixed shape ordering. Neighbours in this slice are the
// "confusable" pairs used for similar distractors.
var Shapes = []Shape{ShapeCircle, ShapeSquare, ShapeTriangle, ShapeDiamond, ShapeCross}

// Colors are the satellite/target palette, addressed by index.
var Colors = []string{"#22d3ee", "#4ade80", "#f472b6", "#fbbf24"}

// DirectionCount is the number of compass directions a satellite can sit in.
// Index 0 points right and indices advance clockwise in 45 degree steps.
const DirectionCount = 8

func ShapeIndex(s Shape) int {
	for i, v := range Shapes {
		if v == s {
			return i
		}
	}
	return -1
}

func (s Shape) Valid() bool {
	return ShapeIndex(s) >= 0
}

type Mode string

const (
	ModeStandard    = Mode("STANDARD")
	ModeDailyCasual = Mode("DAILY_CASUAL")
	ModeDailyDeath  = Mode("DAILY_DEATH")
)

func (m Mode) Daily() bool {
	return m == ModeDailyCasual || m == ModeDailyDeath
}

// ParseMode accepts an empty string as STANDARD.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeStandard:
		return ModeStandard, nil
	case ModeDailyCasual, ModeDailyDeath:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Manifest is the public portion of a round's answer key.
type Manifest struct {
	TargetShape    Shape  `json:"targetShape"`
	SatShape       Shape  `json:"satShape"`
	SatColorIdx    int    `json:"satColorIdx"`
	SatDirIdx      int    `json:"satDirIdx"`
	TargetColorIdx int    `json:"targetColorIdx"`
	Sat2Shape      Shape  `json:"sat2Shape"`
	Sat2DirIdx     int    `json:"sat2DirIdx"`
	TargetSolid    bool   `json:"targetSolid"`
	SessionSalt    string `json:"sessionSalt"`
}

// Answer holds the fields a client collected. A nil field was not asked.
type Answer struct {
	Shape       *Shape `json:"uShape,omitempty"`
	Sat         *Shape `json:"uSat,omitempty"`
	Color       *int   `json:"uColor,omitempty"`
	Dir         *int   `json:"uDir,omitempty"`
	TargetColor *int   `json:"uTargetColor,omitempty"`
	Sat2Shape   *Shape `json:"uSat2Shape,omitempty"`
	Sat2Dir     *int   `json:"uSat2Dir,omitempty"`
	Solid       *bool  `json:"uSolid,omitempty"`
}

const (
	ReasonTemporalAnomaly = "TEMPORAL_ANOMALY"
	ReasonStaleRound      = "STALE_ROUND"
	ReasonTimeout         = "TIMEOUT"
	ReasonWrongAnswer     = "WRONG_ANSWER"
)

type SubmitResult struct {
	Correct  bool   `json:"correct"`
	NewScore int    `json:"newScore"`
	NewTier  Tier   `json:"newTier"`
	Reason   string `json:"reason,omitempty"`
}

type GenerateRequest struct {
	UserID string `json:"userId"`
}

// SaltEcho is the part of the manifest a client sends back with its answer.
type SaltEcho struct {
	Salt string `json:"salt"`
}

type SubmitRequest struct {
	UserID   string   `json:"userId"`
	Answer   Answer   `json:"answer"`
	Speed    float64  `json:"speed"`
	Manifest SaltEcho `json:"manifest"`
	Mode     Mode     `json:"mode,omitempty"`
	TimedOut bool     `json:"timedOut,omitempty"`
}
