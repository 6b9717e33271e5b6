package gamedata

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Tier is the skill ladder position. T1 is the lowest.
type Tier int

const (
	T1 Tier = iota + 1
	T2
	T3
	T4
	T5
	T6
)

const (
	MinTier = T1
	MaxTier = T6
)

var tierMultipliers = [...]float64{1.0, 1.5, 2.5, 3.2, 4.0, 5.0}

// Speed thresholds in ms, measured against the flash duration the player is
// handling. promoteAt[t] promotes t to t+1 when the speed is at or under it;
// demoteAbove[t] drops t to t-1 when a miss comes at a slower speed.
// Every demote threshold sits well above the promote threshold that leads into
// the same tier so borderline speeds do not bounce between tiers.
var (
	promoteAt   = map[Tier]float64{T1: 350, T2: 250, T3: 200, T4: 160, T5: 130}
	demoteAbove = map[Tier]float64{T2: 600, T3: 500, T4: 420, T5: 360, T6: 300}
)

func (t Tier) Valid() bool {
	return t >= MinTier && t <= MaxTier
}

func (t Tier) String() string {
	if !t.Valid() {
		return "T?"
	}
	return fmt.Sprintf("T%d", int(t))
}

func ParseTier(s string) (Tier, error) {
	digits, ok := strings.CutPrefix(s, "T")
	n, err := strconv.Atoi(digits)
	if !ok || err != nil || strconv.Itoa(n) != digits {
		return 0, fmt.Errorf("parsing tier %q: want T1..T6", s)
	}
	t := Tier(n)
	if !t.Valid() {
		return 0, fmt.Errorf("tier %q out of range", s)
	}
	return t, nil
}

func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Tier) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Tier) Multiplier() float64 {
	if !t.Valid() {
		return tierMultipliers[0]
	}
	return tierMultipliers[t-1]
}

// Promote returns the tier after a correct round at speedMs.
func (t Tier) Promote(speedMs float64) Tier {
	limit, ok := promoteAt[t]
	if ok && speedMs <= limit {
		return t + 1
	}
	return t
}

// Demote returns the tier after an incorrect round at speedMs.
func (t Tier) Demote(speedMs float64) Tier {
	limit, ok := demoteAbove[t]
	if ok && speedMs > limit {
		return t - 1
	}
	return t
}

func (t Tier) HasColor() bool       { return t >= T2 }
func (t Tier) HasDirection() bool   { return t >= T3 }
func (t Tier) HasTargetColor() bool { return t >= T4 }
func (t Tier) HasSecondSat() bool   { return t >= T5 }
func (t Tier) HasPolarity() bool    { return t >= T6 }

// Roulette reports whether the interrogation samples from the unlocked pool
// instead of asking every unlocked question in order.
func (t Tier) Roulette() bool { return t >= T4 }
