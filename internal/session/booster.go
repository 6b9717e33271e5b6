package session

import (
	"math"
	"slices"
	"time"
)

type BoosterStatus struct {
	IsDue           bool `json:"isDue"`
	Interval        int  `json:"interval,omitempty"`
	BlocksCompleted int  `json:"blocksCompleted"`
	SessionsInBlock int  `json:"sessionsInBlock"`
	BlockSize       int  `json:"blockSize"`
}

// Booster reports whether a booster session is due at now. It needs a full
// training block; the reference date is lastBooster, or the last session when
// lastBooster is zero. A booster is due from one day before to three days
// after each interval.
func Booster(sessions []Summary, lastBooster, now time.Time) BoosterStatus {
	if len(sessions) < BlockSize {
		return BoosterStatus{SessionsInBlock: len(sessions), BlockSize: BlockSize}
	}
	st := BoosterStatus{
		BlocksCompleted: len(sessions) / BlockSize,
		SessionsInBlock: len(sessions) % BlockSize,
		BlockSize:       BlockSize,
	}

	ref := lastBooster
	if ref.IsZero() {
		ref = sessions[len(sessions)-1].Date
	}
	if ref.IsZero() {
		return st
	}

	days := now.Sub(ref).Hours() / 24
	for _, interval := range BoosterIntervalsDays {
		if days >= float64(interval-1) && days <= float64(interval+3) {
			st.IsDue = true
			st.Interval = interval
			return st
		}
	}
	return st
}

type Progress struct {
	TotalSessions int     `json:"totalSessions"`
	TotalRounds   int     `json:"totalRounds"`
	AvgAccuracy   int     `json:"avgAccuracy"`
	BestAccuracy  int     `json:"bestAccuracy"`
	TotalHours    float64 `json:"totalTimeHrs"`
}

func ProgressSummary(sessions []Summary) Progress {
	if len(sessions) == 0 {
		return Progress{}
	}
	var p Progress
	var accSum int
	var totalMs int64
	for _, s := range sessions {
		p.TotalRounds += s.RoundsPlayed
		accSum += s.Accuracy
		totalMs += s.DurationMs
		p.BestAccuracy = max(p.BestAccuracy, s.Accuracy)
	}
	p.TotalSessions = len(sessions)
	p.AvgAccuracy = int(math.Round(float64(accSum) / float64(len(sessions))))
	p.TotalHours = math.Round(float64(totalMs)/float64(time.Hour.Milliseconds())*10) / 10
	return p
}

// AppendBounded appends v and evicts the oldest entries beyond limit.
func AppendBounded[T any](history []T, v T, limit int) []T {
	history = append(history, v)
	if over := len(history) - limit; over > 0 {
		history = slices.Delete(history, 0, over)
	}
	return history
}
