package store

import (
	"math"
	"time"

	"neurotrainer/internal/gamedata"
)

// AnswerKey is the server's copy of one round. A user owns at most one slot;
// generating a round overwrites it.
type AnswerKey struct {
	UserID         string
	TargetShape    gamedata.Shape
	SatShape       gamedata.Shape
	SatColorIdx    int
	SatDirIdx      int
	TargetColorIdx int
	Sat2Shape      gamedata.Shape
	Sat2DirIdx     int
	TargetSolid    bool
	Salt           string
	CreatedAt      time.Time
	Active         bool
}

func (k AnswerKey) Manifest() gamedata.Manifest {
	return gamedata.Manifest{
		TargetShape:    k.TargetShape,
		SatShape:       k.SatShape,
		SatColorIdx:    k.SatColorIdx,
		SatDirIdx:      k.SatDirIdx,
		TargetColorIdx: k.TargetColorIdx,
		Sat2Shape:      k.Sat2Shape,
		Sat2DirIdx:     k.Sat2DirIdx,
		TargetSolid:    k.TargetSolid,
		SessionSalt:    k.Salt,
	}
}

type Profile struct {
	UserID        string
	DisplayName   string
	Score         float64
	Tier          gamedata.Tier
	Speed         float64
	Streak        int
	Pin           string
	TotalSessions int
	TrainingBlock int
	DailyStreak   int
	UpdatedAt     time.Time
}

// NewProfile is the profile of a user that has never been judged.
func NewProfile(userID string) Profile {
	return Profile{UserID: userID, DisplayName: userID, Tier: gamedata.T1}
}

func (p Profile) ScoreInt() int {
	return int(math.Floor(p.Score))
}

// DailyProfile is the per-mode profile for one UTC day.
type DailyProfile struct {
	UserID    string
	Mode      gamedata.Mode
	Day       string
	Score     float64
	Tier      gamedata.Tier
	Rounds    int
	UpdatedAt time.Time
}

// ProfileSync carries the display fields a client may push.
// Score and tier are deliberately absent.
type ProfileSync struct {
	DisplayName   string `json:"name"`
	TotalSessions int    `json:"totalSessions"`
	TrainingBlock int    `json:"trainingBlock"`
	DailyStreak   int    `json:"dailyStreak"`
}

type LeaderboardEntry struct {
	Rank   int           `json:"rank"`
	UserID string        `json:"userId"`
	Name   string        `json:"name"`
	Score  int           `json:"score"`
	Tier   gamedata.Tier `json:"tier"`
}
