package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"neurotrainer/internal/difficulty"
	"neurotrainer/internal/gamedata"
	"neurotrainer/internal/session"
	"neurotrainer/internal/snapshot"
	"neurotrainer/internal/utility"
)

// Start fetches a round and begins the flash. It returns ErrStale when the
// round was abandoned while the request was in flight.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return ErrBusy
	}
	u := e.app.Current()
	if u == nil {
		e.mu.Unlock()
		return ErrNoUser
	}
	if e.mode.Daily() && !e.session.Active() && u.DailyDate(e.mode) == utility.DayKey(e.now()) {
		e.mu.Unlock()
		return ErrDailyPlayed
	}
	if !e.session.Active() {
		e.session.StartSession()
		if e.mode.Daily() {
			e.run = difficulty.New()
			e.runTier = gamedata.T1
		}
	}
	e.state = StateFetching
	e.seq++
	seq := e.seq
	userID := u.Name
	e.mu.Unlock()

	manifest, err := e.api.GenerateRound(ctx, userID)

	e.mu.Lock()
	if e.seq != seq || e.state != StateFetching {
		e.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		e.state = StateIdle
		e.mu.Unlock()
		e.presenter.Message(Message{Kind: MessageAlert, Text: "SERVER LINK LOST"})
		return fmt.Errorf("fetching round: %w", err)
	}

	tier := e.tier()
	ctrl := e.controller()
	params := ctrl.Parameters()

	flash := params.FlashDurationMs
	anomaly := tier.HasColor() && e.rng.Float64() < anomalyChance
	if anomaly {
		flash = max(anomalyMinFlash, int(math.Round(float64(flash)*0.5)))
	}
	radius := e.viewport.MinDim() * params.PeripheralDistance
	shapes := ctrl.GenerateDistractorShapes(manifest.TargetShape, params.DistractorCount)

	scene := Scene{
		Manifest:      manifest,
		Tier:          tier,
		FlashDuration: time.Duration(flash) * time.Millisecond,
		Anomaly:       anomaly,
		Radius:        radius,
		Distractors:   Layout(e.viewport, radius, manifest.SatDirIdx, shapes, e.rng),
	}
	e.round = &round{seq: seq, manifest: manifest, started: e.now()}
	e.state = StateFlashing
	e.sched.AfterFunc(scene.FlashDuration, func() { e.endFlash(seq) })
	e.mu.Unlock()

	if anomaly {
		e.presenter.Message(Message{Kind: MessageAlert, Text: "ANOMALY DETECTED: TEMPORAL COMPRESSION"})
	}
	e.presenter.Sound(CueFlash)
	e.presenter.Flash(scene)
	return nil
}

func (e *Engine) current(seq uint64, want State) bool {
	return e.seq == seq && e.state == want && e.round != nil
}

func (e *Engine) endFlash(seq uint64) {
	e.mu.Lock()
	if !e.current(seq, StateFlashing) {
		e.mu.Unlock()
		return
	}
	e.sched.AfterFunc(StaticBurst, func() { e.beginQuestions(seq) })
	e.mu.Unlock()

	e.presenter.Sound(CueStatic)
	e.presenter.Static()
}

func (e *Engine) beginQuestions(seq uint64) {
	e.mu.Lock()
	if !e.current(seq, StateFlashing) {
		e.mu.Unlock()
		return
	}
	r := e.round
	r.queue = BuildQueue(e.tier(), e.rng)
	r.current, r.queue = r.queue[0], r.queue[1:]
	r.timeout = e.sched.AfterFunc(QuestionTimeout, func() { e.finalize(seq, true) })
	e.state = StateQuestioning
	q := r.current
	e.mu.Unlock()

	e.presenter.Ask(q)
}

// CurrentQuestion is empty outside QUESTIONING.
func (e *Engine) CurrentQuestion() Question {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateQuestioning || e.round == nil {
		return ""
	}
	return e.round.current
}

// Answer locks in choice for the current question. The choice is applied
// after LockoutDelay; input is refused until then.
func (e *Engine) Answer(choice int) error {
	e.mu.Lock()
	if e.state != StateQuestioning || e.round == nil {
		e.mu.Unlock()
		return ErrNotQuestioning
	}
	r := e.round
	if r.locked {
		e.mu.Unlock()
		return ErrInputLocked
	}
	if choice < 0 || choice >= r.current.Choices() {
		e.mu.Unlock()
		return ErrInvalidChoice
	}
	r.locked = true
	seq, q := r.seq, r.current
	e.sched.AfterFunc(LockoutDelay, func() { e.applyAnswer(seq, q, choice) })
	e.mu.Unlock()

	e.presenter.Sound(CueLock)
	return nil
}

func (e *Engine) applyAnswer(seq uint64, q Question, choice int) {
	e.mu.Lock()
	if !e.current(seq, StateQuestioning) {
		e.mu.Unlock()
		return
	}
	r := e.round
	r.locked = false
	apply(&r.answer, q, choice)
	if len(r.queue) == 0 {
		e.mu.Unlock()
		e.finalize(seq, false)
		return
	}
	r.current, r.queue = r.queue[0], r.queue[1:]
	next := r.current
	e.mu.Unlock()

	e.presenter.Ask(next)
}

// finalize runs at most once per round: whichever of the last answer and the
// timeout gets here first moves the round to VALIDATING.
func (e *Engine) finalize(seq uint64, timedOut bool) {
	e.mu.Lock()
	if !e.current(seq, StateQuestioning) {
		e.mu.Unlock()
		return
	}
	r := e.round
	e.state = StateValidating
	if r.timeout != nil {
		r.timeout.Stop()
	}
	reactionMs := float64(e.now().Sub(r.started).Milliseconds())
	mode := e.mode
	// The judge ranks players by the flash duration they can handle; the
	// measured reaction only drives local adaptation.
	req := gamedata.SubmitRequest{
		UserID:   e.app.CurrentUser,
		Answer:   r.answer,
		Speed:    float64(e.controller().FlashDuration()),
		Manifest: gamedata.SaltEcho{Salt: r.manifest.SessionSalt},
		Mode:     mode,
		TimedOut: timedOut,
	}
	e.mu.Unlock()

	if timedOut {
		e.presenter.Message(Message{Kind: MessageAlert, Text: "NEURAL LINK SEVERED (TIMEOUT)"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), SubmitTimeout)
	res, err := e.api.SubmitRound(ctx, req)
	cancel()

	e.mu.Lock()
	if !e.current(seq, StateValidating) {
		e.mu.Unlock()
		return
	}
	if err != nil {
		e.round = nil
		e.state = StateIdle
		e.mu.Unlock()
		e.presenter.Message(Message{Kind: MessageAlert, Text: "NETWORK ERROR"})
		return
	}

	outcome, summary, runOver := e.applyResult(mode, res, reactionMs, timedOut)
	e.round = nil
	e.state = StateIdle
	saveErr := e.saveLocked()
	e.mu.Unlock()

	e.report(outcome)
	if saveErr != nil {
		e.presenter.Message(Message{Kind: MessageAlert, Text: "SAVE FAILED"})
	}
	if summary != nil {
		e.presenter.SessionEnded(*summary)
	}
	if runOver {
		e.presenter.Message(Message{Kind: MessageAlert, Text: "RUN TERMINATED"})
	}
}

// applyResult folds a judged round into local state. It reports the session
// summary when the session ended and whether a death run is over.
func (e *Engine) applyResult(mode gamedata.Mode, res gamedata.SubmitResult, reactionMs float64, timedOut bool) (Outcome, *session.Summary, bool) {
	u := e.app.Current()
	now := e.now()
	today := utility.DayKey(now)
	ctrl := e.controller()

	prevTier := e.tier()
	if res.Reason == gamedata.ReasonStaleRound || res.Reason == gamedata.ReasonTemporalAnomaly {
		// The round did not count; keep the local ladder where it was.
		score := u.Score
		if mode.Daily() {
			score = u.DailyScore(mode)
		}
		return Outcome{
			Mode:            mode,
			Reason:          res.Reason,
			ReactionMs:      reactionMs,
			Score:           score,
			Tier:            prevTier,
			Streak:          u.Streak,
			SessionZone:     u.SessionZone,
			DifficultyLevel: ctrl.DifficultyLevel(),
		}, nil, false
	}
	if mode.Daily() {
		u.SetDailyResult(mode, res.NewScore, today)
		e.runTier = res.NewTier
	} else {
		u.Score = res.NewScore
		u.PeakScore = max(u.PeakScore, u.Score)
		u.Tier = res.NewTier
	}

	ctrl.Adapt(res.Correct, reactionMs)
	if !mode.Daily() {
		u.Speed = ctrl.FlashDuration()
		st := ctrl.State()
		u.Difficulty = &st
	}

	e.session.RecordRound(session.Round{
		Correct:         res.Correct,
		ReactionMs:      reactionMs,
		FlashDuration:   float64(ctrl.FlashDuration()),
		DifficultyLevel: ctrl.DifficultyLevel(),
	})

	if res.Correct {
		u.Streak = max(0, u.Streak) + 1
		u.SessionZone++
	} else {
		u.Streak = min(0, u.Streak) - 1
		u.SessionZone = 0
	}
	u.RecordResult(snapshot.Result{Correct: res.Correct, ReactionMs: reactionMs, Date: today}, u.Speed)

	reason := res.Reason
	if !res.Correct && timedOut {
		reason = gamedata.ReasonTimeout
	}
	outcome := Outcome{
		Mode:            mode,
		Correct:         res.Correct,
		Reason:          reason,
		ReactionMs:      reactionMs,
		Score:           res.NewScore,
		Tier:            res.NewTier,
		Promoted:        res.Correct && res.NewTier > prevTier,
		Streak:          u.Streak,
		SessionZone:     u.SessionZone,
		DifficultyLevel: ctrl.DifficultyLevel(),
	}

	runOver := mode == gamedata.ModeDailyDeath && !res.Correct
	if runOver || e.session.ShouldEndSession() {
		summary := e.session.EndSession()
		if summary != nil {
			u.AddSession(*summary)
		}
		return outcome, summary, runOver
	}
	return outcome, nil, false
}

func (e *Engine) report(o Outcome) {
	if o.Correct {
		e.presenter.Sound(CueSuccess)
	} else {
		e.presenter.Sound(CueFail)
	}
	if o.Promoted {
		e.presenter.Sound(CueLevelUp)
		e.presenter.Message(Message{Kind: MessageUpgrade, Text: fmt.Sprintf("PROMOTION: %s UNLOCKED", o.Tier)})
	}
	e.presenter.RoundComplete(o)
}
