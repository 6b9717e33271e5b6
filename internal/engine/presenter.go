package engine

import (
	"time"

	"neurotrainer/internal/gamedata"
	"neurotrainer/internal/session"
)

// Scene is everything needed to render one flash.
type Scene struct {
	Manifest      gamedata.Manifest
	Tier          gamedata.Tier
	FlashDuration time.Duration
	Anomaly       bool
	Radius        float64
	Distractors   []Distractor
}

type Cue string

const (
	CueFlash   = Cue("flash")
	CueStatic  = Cue("static")
	CueLock    = Cue("lock")
	CueSuccess = Cue("success")
	CueFail    = Cue("fail")
	CueLevelUp = Cue("levelUp")
)

type MessageKind string

const (
	MessageInfo    = MessageKind("info")
	MessageAlert   = MessageKind("alert")
	MessageUpgrade = MessageKind("upgrade")
)

type Message struct {
	Kind MessageKind
	Text string
}

// Outcome is reported after every judged round.
type Outcome struct {
	Mode            gamedata.Mode
	Correct         bool
	Reason          string
	ReactionMs      float64
	Score           int
	Tier            gamedata.Tier
	Promoted        bool
	Streak          int
	SessionZone     int
	DifficultyLevel int
}

// Presenter renders and plays what the engine decides. Calls are made without
// the engine lock held, so implementations may call back into the engine.
type Presenter interface {
	Flash(Scene)
	Static()
	Ask(Question)
	Sound(Cue)
	Message(Message)
	RoundComplete(Outcome)
	SessionEnded(session.Summary)
}

type NopPresenter struct{}

func (NopPresenter) Flash(Scene)                  {}
func (NopPresenter) Static()                      {}
func (NopPresenter) Ask(Question)                 {}
func (NopPresenter) Sound(Cue)                    {}
func (NopPresenter) Message(Message)              {}
func (NopPresenter) RoundComplete(Outcome)        {}
func (NopPresenter) SessionEnded(session.Summary) {}
