// Package engine drives one player's rounds on the client:
// IDLE -> FETCHING -> FLASHING -> QUESTIONING -> VALIDATING -> IDLE.
//
// Network calls run on the caller's goroutine and timers fire on their own, so
// every callback carries the sequence number of the round it belongs to and is
// dropped when the engine has moved on.
package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"neurotrainer/internal/difficulty"
	"neurotrainer/internal/gamedata"
	"neurotrainer/internal/session"
	"neurotrainer/internal/snapshot"
)

type State int

const (
	StateIdle State = iota
	StateFetching
	StateFlashing
	StateQuestioning
	StateValidating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateFetching:
		return "FETCHING"
	case StateFlashing:
		return "FLASHING"
	case StateQuestioning:
		return "QUESTIONING"
	case StateValidating:
		return "VALIDATING"
	}
	return "UNKNOWN"
}

const (
	StaticBurst     = 60 * time.Millisecond
	LockoutDelay    = 320 * time.Millisecond
	QuestionTimeout = 15 * time.Second
	SubmitTimeout   = 10 * time.Second

	anomalyChance   = 0.1
	anomalyMinFlash = 50
)

var (
	ErrBusy           = errors.New("round already in progress")
	ErrNoUser         = errors.New("no current user")
	ErrStale          = errors.New("round abandoned")
	ErrNotQuestioning = errors.New("not accepting answers")
	ErrInputLocked    = errors.New("answer already pending")
	ErrInvalidChoice  = errors.New("choice out of range")
	ErrDailyPlayed    = errors.New("daily run already played today")
)

type RoundAPI interface {
	GenerateRound(ctx context.Context, userID string) (gamedata.Manifest, error)
	SubmitRound(ctx context.Context, req gamedata.SubmitRequest) (gamedata.SubmitResult, error)
}

type Persister interface {
	Save(ctx context.Context, app *snapshot.AppData) error
}

type Timer interface {
	Stop() bool
}

type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Config struct {
	API       RoundAPI
	Presenter Presenter
	Persister Persister
	Scheduler Scheduler
	Now       func() time.Time
	Rand      *rand.Rand
	Viewport  Viewport
}

type Engine struct {
	mu sync.Mutex

	api       RoundAPI
	presenter Presenter
	persister Persister
	sched     Scheduler
	now       func() time.Time
	rng       *rand.Rand
	viewport  Viewport

	app        *snapshot.AppData
	difficulty *difficulty.Controller
	// run holds the daily-mode controller and tier; the standard ones are
	// never touched by a daily run.
	run     *difficulty.Controller
	runTier gamedata.Tier
	session *session.Tracker
	mode    gamedata.Mode

	state State
	seq   uint64
	round *round
}

type round struct {
	seq      uint64
	manifest gamedata.Manifest
	started  time.Time
	queue    []Question
	current  Question
	answer   gamedata.Answer
	locked   bool
	timeout  Timer
}

func New(app *snapshot.AppData, cfg Config) *Engine {
	if app == nil {
		app = snapshot.New()
	}
	e := &Engine{
		api:        cfg.API,
		presenter:  cfg.Presenter,
		persister:  cfg.Persister,
		sched:      cfg.Scheduler,
		now:        cfg.Now,
		rng:        cfg.Rand,
		viewport:   cfg.Viewport,
		app:        app,
		difficulty: difficulty.New(),
		run:        difficulty.New(),
		runTier:    gamedata.T1,
		mode:       gamedata.ModeStandard,
	}
	if e.presenter == nil {
		e.presenter = NopPresenter{}
	}
	if e.sched == nil {
		e.sched = realScheduler{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if e.viewport.Width <= 0 || e.viewport.Height <= 0 {
		e.viewport = Viewport{Width: DefaultWidth, Height: DefaultHeight}
	}
	e.session = session.NewTracker(e.now)
	if u := app.Current(); u != nil {
		e.restoreUser(u)
	}
	return e
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Mode() gamedata.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

func (e *Engine) Parameters() difficulty.Parameters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.controller().Parameters()
}

func (e *Engine) tracker() *session.Tracker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

func (e *Engine) SessionStats() session.Stats { return e.tracker().Stats() }
func (e *Engine) Pause()                      { e.tracker().Pause() }
func (e *Engine) Resume()                     { e.tracker().Resume() }

// SelectUser abandons any round in flight and makes name the current user,
// creating it when unknown.
func (e *Engine) SelectUser(name string) error {
	if name == "" {
		return ErrNoUser
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
	e.app.CurrentUser = name
	u := e.app.AddUser(name)
	u.CheckDailyStreak(e.now())
	e.restoreUser(u)
	e.session = session.NewTracker(e.now)
	e.mode = gamedata.ModeStandard
	return nil
}

func (e *Engine) restoreUser(u *snapshot.UserData) {
	if u.Difficulty != nil {
		e.difficulty = difficulty.Restore(*u.Difficulty)
	} else {
		e.difficulty = difficulty.New()
	}
	if !u.Tier.Valid() {
		u.Tier = gamedata.T1
	}
}

// SetMode switches between standard and daily play. Any session in progress
// is dropped.
func (e *Engine) SetMode(mode gamedata.Mode) error {
	if _, err := gamedata.ParseMode(string(mode)); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		return ErrBusy
	}
	if mode == e.mode {
		return nil
	}
	e.mode = mode
	e.session = session.NewTracker(e.now)
	return nil
}

// Abandon returns to IDLE. The server-side key is left to be superseded by
// the next round.
func (e *Engine) Abandon() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

func (e *Engine) resetLocked() {
	if e.round != nil && e.round.timeout != nil {
		e.round.timeout.Stop()
	}
	e.seq++
	e.round = nil
	e.state = StateIdle
}

func (e *Engine) controller() *difficulty.Controller {
	if e.mode.Daily() {
		return e.run
	}
	return e.difficulty
}

func (e *Engine) tier() gamedata.Tier {
	if e.mode.Daily() {
		return e.runTier
	}
	if u := e.app.Current(); u != nil && u.Tier.Valid() {
		return u.Tier
	}
	return gamedata.T1
}

func (e *Engine) saveLocked() error {
	if e.persister == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), SubmitTimeout)
	defer cancel()
	return e.persister.Save(ctx, e.app)
}
