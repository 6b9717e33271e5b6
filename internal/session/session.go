// Package session groups rounds into fixed-length training sessions and
// schedules booster reminders.
package session

import (
	"math"
	"sync"
	"time"
)

const (
	TargetDuration = 10 * time.Minute
	BlockSize      = 7
	minTrendRounds = 6
)

var BoosterIntervalsDays = []int{7, 30, 90}

type Trend string

const (
	TrendImproving = Trend("improving")
	TrendStable    = Trend("stable")
	TrendDeclining = Trend("declining")
)

// Round is one recorded outcome.
type Round struct {
	Correct         bool      `json:"correct"`
	ReactionMs      float64   `json:"reactionMs"`
	FlashDuration   float64   `json:"flashDuration"`
	DifficultyLevel int       `json:"difficulty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Summary is the immutable result of an ended session.
type Summary struct {
	Date           time.Time `json:"date"`
	DurationMs     int64     `json:"durationMs"`
	RoundsPlayed   int       `json:"roundsPlayed"`
	Accuracy       int       `json:"accuracy"`
	AvgReactionMs  int       `json:"avgReactionMs"`
	BestReactionMs int       `json:"bestReactionMs"`
	DifficultyEnd  int       `json:"difficultyEnd"`
	SpeedTrend     Trend     `json:"speedTrend"`
}

// Stats describe the running session.
type Stats struct {
	Elapsed         time.Duration
	Target          time.Duration
	ProgressPct     float64
	RoundsPlayed    int
	Accuracy        int
	AvgReactionMs   int
	BestReactionMs  int
	DifficultyLevel int
	SpeedTrend      Trend
}

type Tracker struct {
	mu       sync.Mutex
	now      func() time.Time
	active   bool
	start    time.Time
	rounds   []Round
	paused   time.Duration
	pausedAt time.Time
}

// NewTracker uses now as its clock; nil means time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

func (t *Tracker) StartSession() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = true
	t.start = t.now()
	t.rounds = nil
	t.paused = 0
	t.pausedAt = time.Time{}
}

func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// RecordRound is a no-op without an active session.
func (t *Tracker) RecordRound(r Round) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = t.now()
	}
	t.rounds = append(t.rounds, r)
}

func (t *Tracker) RoundsPlayed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rounds)
}

func (t *Tracker) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active || !t.pausedAt.IsZero() {
		return
	}
	t.pausedAt = t.now()
}

func (t *Tracker) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pausedAt.IsZero() {
		return
	}
	t.paused += t.now().Sub(t.pausedAt)
	t.pausedAt = time.Time{}
}

func (t *Tracker) elapsed() time.Duration {
	if !t.active {
		return 0
	}
	now := t.now()
	d := now.Sub(t.start) - t.paused
	if !t.pausedAt.IsZero() {
		d -= now.Sub(t.pausedAt)
	}
	return max(0, d)
}

// ShouldEndSession reports whether the active session has run for
// TargetDuration, not counting paused time.
func (t *Tracker) ShouldEndSession() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active && t.elapsed() >= TargetDuration
}

// EndSession returns nil when no session is active.
func (t *Tracker) EndSession() *Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return nil
	}
	st := t.stats()
	t.active = false
	return &Summary{
		Date:           t.now().UTC(),
		DurationMs:     st.Elapsed.Milliseconds(),
		RoundsPlayed:   st.RoundsPlayed,
		Accuracy:       st.Accuracy,
		AvgReactionMs:  st.AvgReactionMs,
		BestReactionMs: st.BestReactionMs,
		DifficultyEnd:  st.DifficultyLevel,
		SpeedTrend:     st.SpeedTrend,
	}
}

func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats()
}

func (t *Tracker) stats() Stats {
	elapsed := min(t.elapsed(), TargetDuration)
	st := Stats{
		Elapsed:      elapsed,
		Target:       TargetDuration,
		ProgressPct:  math.Min(100, float64(elapsed)/float64(TargetDuration)*100),
		RoundsPlayed: len(t.rounds),
		SpeedTrend:   TrendStable,
	}
	if len(t.rounds) == 0 {
		return st
	}

	var correct int
	var sum float64
	best := math.Inf(1)
	for _, r := range t.rounds {
		if !r.Correct {
			continue
		}
		correct++
		sum += r.ReactionMs
		best = math.Min(best, r.ReactionMs)
	}
	st.Accuracy = int(math.Round(float64(correct) / float64(len(t.rounds)) * 100))
	if correct > 0 {
		st.AvgReactionMs = int(math.Round(sum / float64(correct)))
		st.BestReactionMs = int(math.Round(best))
	}
	st.DifficultyLevel = t.rounds[len(t.rounds)-1].DifficultyLevel
	st.SpeedTrend = SpeedTrend(t.rounds)
	return st
}

// SpeedTrend compares the mean flash duration of correct rounds in the first
// and second half. Fewer than six rounds is always stable.
func SpeedTrend(rounds []Round) Trend {
	if len(rounds) < minTrendRounds {
		return TrendStable
	}
	half := len(rounds) / 2
	first, okFirst := meanCorrectFlash(rounds[:half])
	second, okSecond := meanCorrectFlash(rounds[half:])
	if !okFirst || !okSecond {
		return TrendStable
	}
	switch {
	case second <= first*0.92:
		return TrendImproving
	case second >= first*1.08:
		return TrendDeclining
	}
	return TrendStable
}

func meanCorrectFlash(rounds []Round) (float64, bool) {
	var sum float64
	n := 0
	for _, r := range rounds {
		if r.Correct {
			sum += r.FlashDuration
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
