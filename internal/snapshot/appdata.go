// Package snapshot holds the client's locally persisted state.
package snapshot

import (
	"time"

	"neurotrainer/internal/difficulty"
	"neurotrainer/internal/gamedata"
	"neurotrainer/internal/session"
	"neurotrainer/internal/utility"
)

const (
	HistoryLimit        = 500
	SessionHistoryLimit = 100
)

type Result struct {
	Correct    bool    `json:"correct"`
	ReactionMs float64 `json:"reactionMs"`
	Date       string  `json:"date"`
}

// UserData is one local player.
type UserData struct {
	Name      string        `json:"name"`
	Score     int           `json:"score"`
	PeakScore int           `json:"peakScore"`
	Tier      gamedata.Tier `json:"tier"`
	// Speed is the standard-mode flash duration in ms.
	Speed  int `json:"speed"`
	Streak int `json:"streak"`

	History        []int             `json:"history"`
	ResultsHistory []Result          `json:"resultsHistory"`
	Difficulty     *difficulty.State `json:"difficulty,omitempty"`
	Sessions       []session.Summary `json:"sessions"`

	TotalSessions   int       `json:"totalSessions"`
	TrainingBlock   int       `json:"trainingBlock"`
	DailyStreak     int       `json:"dailyStreak"`
	LastPlayDate    string    `json:"lastPlayDate,omitempty"`
	LastBoosterDate time.Time `json:"lastBoosterDate,omitzero"`
	Pin             string    `json:"pin,omitempty"`
	SessionZone     int       `json:"sessionZone"`

	DailyCasualDate  string `json:"dailyCasualDate,omitempty"`
	DailyDeathDate   string `json:"dailyDeathDate,omitempty"`
	DailyCasualScore int    `json:"dailyCasualScore"`
	DailyDeathScore  int    `json:"dailyDeathScore"`
}

func NewUser(name string) *UserData {
	return &UserData{
		Name:    name,
		Tier:    gamedata.T1,
		Speed:   difficulty.DefaultFlashDurationMs,
		History: []int{difficulty.DefaultFlashDurationMs},
	}
}

// DailyDate is the last UTC day the user played mode, or "".
func (u *UserData) DailyDate(mode gamedata.Mode) string {
	switch mode {
	case gamedata.ModeDailyCasual:
		return u.DailyCasualDate
	case gamedata.ModeDailyDeath:
		return u.DailyDeathDate
	}
	return ""
}

func (u *UserData) DailyScore(mode gamedata.Mode) int {
	switch mode {
	case gamedata.ModeDailyCasual:
		return u.DailyCasualScore
	case gamedata.ModeDailyDeath:
		return u.DailyDeathScore
	}
	return 0
}

func (u *UserData) SetDailyResult(mode gamedata.Mode, score int, day string) {
	switch mode {
	case gamedata.ModeDailyCasual:
		u.DailyCasualScore, u.DailyCasualDate = score, day
	case gamedata.ModeDailyDeath:
		u.DailyDeathScore, u.DailyDeathDate = score, day
	}
}

// CheckDailyStreak extends the streak when the previous play was yesterday
// and restarts it after a gap.
func (u *UserData) CheckDailyStreak(now time.Time) {
	today := utility.DayKey(now)
	if u.LastPlayDate == "" {
		u.LastPlayDate = today
		u.DailyStreak = 1
		return
	}
	if u.LastPlayDate == today {
		return
	}
	last, err := time.Parse("2006-01-02", u.LastPlayDate)
	switch {
	case err != nil || utility.DaysBetween(last, now) >= 2:
		u.DailyStreak = 1
	case utility.DaysBetween(last, now) == 1:
		u.DailyStreak++
	}
	u.LastPlayDate = today
}

func (u *UserData) RecordResult(r Result, flashMs int) {
	u.History = session.AppendBounded(u.History, flashMs, HistoryLimit)
	u.ResultsHistory = session.AppendBounded(u.ResultsHistory, r, HistoryLimit)
}

// AddSession appends s to the bounded history and advances the block count.
func (u *UserData) AddSession(s session.Summary) {
	u.Sessions = session.AppendBounded(u.Sessions, s, SessionHistoryLimit)
	u.TotalSessions++
	u.TrainingBlock = u.TotalSessions / session.BlockSize
}

// AppData is the whole local document.
type AppData struct {
	Users       map[string]*UserData `json:"users"`
	CurrentUser string               `json:"currentUser"`
}

func New() *AppData {
	return &AppData{Users: make(map[string]*UserData)}
}

func (a *AppData) User(name string) *UserData {
	if a == nil || a.Users == nil {
		return nil
	}
	return a.Users[name]
}

func (a *AppData) Current() *UserData {
	return a.User(a.CurrentUser)
}

// AddUser returns the existing user when name is taken.
func (a *AppData) AddUser(name string) *UserData {
	if a.Users == nil {
		a.Users = make(map[string]*UserData)
	}
	if u, ok := a.Users[name]; ok {
		return u
	}
	u := NewUser(name)
	a.Users[name] = u
	return u
}
