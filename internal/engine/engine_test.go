package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"neurotrainer/internal/difficulty"
	"neurotrainer/internal/gamedata"
	"neurotrainer/internal/session"
	"neurotrainer/internal/snapshot"
)

type fakeTimer struct {
	d       time.Duration
	at      time.Time
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeScheduler struct {
	mu      sync.Mutex
	pending []*fakeTimer
	// clk, when set, stamps deadlines so step can run timers in time order.
	clk *fakeClock
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	if s.clk != nil {
		t.at = s.clk.now().Add(d)
	}
	s.pending = append(s.pending, t)
	return t
}

// step moves the clock to the earliest live deadline and runs that timer.
func (s *fakeScheduler) step(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	var next *fakeTimer
	for _, ft := range s.pending {
		if !ft.stopped && (next == nil || ft.at.Before(next.at)) {
			next = ft
		}
	}
	s.mu.Unlock()
	require.NotNil(t, next, "no pending timer")
	timer := s.take(func(ft *fakeTimer) bool { return ft == next })
	s.clk.set(timer.at)
	timer.f()
}

func (s *fakeScheduler) take(match func(*fakeTimer) bool) *fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.pending {
		if !t.stopped && match(t) {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return t
		}
	}
	return nil
}

// fireFirst runs the oldest live timer.
func (s *fakeScheduler) fireFirst(t *testing.T) {
	t.Helper()
	timer := s.take(func(*fakeTimer) bool { return true })
	require.NotNil(t, timer, "no pending timer")
	timer.f()
}

func (s *fakeScheduler) fire(t *testing.T, d time.Duration) *fakeTimer {
	t.Helper()
	timer := s.take(func(ft *fakeTimer) bool { return ft.d == d })
	require.NotNil(t, timer, "no pending %s timer", d)
	timer.f()
	return timer
}

func (s *fakeScheduler) live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.pending {
		if !t.stopped {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.t) {
		c.t = t
	}
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeAPI struct {
	mu         sync.Mutex
	manifest   gamedata.Manifest
	genErr     error
	onGenerate func()
	result     gamedata.SubmitResult
	submitErr  error
	onSubmit   func()
	submits    []gamedata.SubmitRequest
}

func (a *fakeAPI) GenerateRound(context.Context, string) (gamedata.Manifest, error) {
	if a.onGenerate != nil {
		a.onGenerate()
	}
	return a.manifest, a.genErr
}

func (a *fakeAPI) SubmitRound(_ context.Context, req gamedata.SubmitRequest) (gamedata.SubmitResult, error) {
	a.mu.Lock()
	a.submits = append(a.submits, req)
	a.mu.Unlock()
	if a.onSubmit != nil {
		a.onSubmit()
	}
	return a.result, a.submitErr
}

func (a *fakeAPI) submissions() []gamedata.SubmitRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]gamedata.SubmitRequest(nil), a.submits...)
}

type recordingPresenter struct {
	NopPresenter
	mu       sync.Mutex
	scene    Scene
	asked    []Question
	outcomes []Outcome
	messages []Message
	ended    []session.Summary
}

func (p *recordingPresenter) Flash(s Scene) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scene = s
}

func (p *recordingPresenter) manifest() gamedata.Manifest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scene.Manifest
}

func (p *recordingPresenter) Ask(q Question) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asked = append(p.asked, q)
}

func (p *recordingPresenter) Message(m Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, m)
}

func (p *recordingPresenter) RoundComplete(o Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes = append(p.outcomes, o)
}

func (p *recordingPresenter) SessionEnded(s session.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended = append(p.ended, s)
}

type countingPersister struct{ saves int }

func (p *countingPersister) Save(context.Context, *snapshot.AppData) error {
	p.saves++
	return nil
}

var testManifest = gamedata.Manifest{
	TargetShape:    gamedata.ShapeDiamond,
	SatShape:       gamedata.ShapeCross,
	SatColorIdx:    2,
	SatDirIdx:      5,
	TargetColorIdx: 1,
	Sat2Shape:      gamedata.ShapeCircle,
	Sat2DirIdx:     3,
	TargetSolid:    true,
	SessionSalt:    "SALT123",
}

type harness struct {
	e     *Engine
	app   *snapshot.AppData
	api   *fakeAPI
	sched *fakeScheduler
	clk   *fakeClock
	pres  *recordingPresenter
	store *countingPersister
}

func newHarness(t *testing.T, tier gamedata.Tier) *harness {
	t.Helper()
	app := snapshot.New()
	u := app.AddUser("alice")
	u.Tier = tier
	app.CurrentUser = "alice"

	h := &harness{
		app:   app,
		api:   &fakeAPI{manifest: testManifest, result: gamedata.SubmitResult{Correct: true, NewScore: 1950, NewTier: gamedata.T2}},
		sched: &fakeScheduler{},
		clk:   &fakeClock{t: time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)},
		pres:  &recordingPresenter{},
		store: &countingPersister{},
	}
	h.e = New(app, Config{
		API:       h.api,
		Presenter: h.pres,
		Persister: h.store,
		Scheduler: h.sched,
		Now:       h.clk.now,
		Rand:      rand.New(rand.NewPCG(1, 2)),
	})
	return h
}

func (h *harness) toQuestioning(t *testing.T) {
	t.Helper()
	require.NoError(t, h.e.Start(context.Background()))
	require.Equal(t, StateFlashing, h.e.State())
	h.sched.fireFirst(t) // flash
	require.Equal(t, StateFlashing, h.e.State())
	h.sched.fireFirst(t) // static burst
	require.Equal(t, StateQuestioning, h.e.State())
}

func (h *harness) answerAll(t *testing.T) {
	t.Helper()
	for h.e.State() == StateQuestioning {
		q := h.e.CurrentQuestion()
		require.NoError(t, h.e.Answer(CorrectChoice(testManifest, q)))
		h.sched.fire(t, LockoutDelay)
	}
}

func TestStart_NoUser(t *testing.T) {
	e := New(snapshot.New(), Config{API: &fakeAPI{}, Scheduler: &fakeScheduler{}})
	require.ErrorIs(t, e.Start(context.Background()), ErrNoUser)
	require.Equal(t, StateIdle, e.State())
}

func TestRound_StandardHappyPath(t *testing.T) {
	h := newHarness(t, gamedata.T1)
	h.toQuestioning(t)
	h.clk.advance(700 * time.Millisecond)
	h.answerAll(t)

	require.Equal(t, StateIdle, h.e.State())
	require.Equal(t, []Question{QuestionCenter, QuestionSatellite}, h.pres.asked)

	subs := h.api.submissions()
	require.Len(t, subs, 1)
	sub := subs[0]
	require.Equal(t, "alice", sub.UserID)
	require.Equal(t, "SALT123", sub.Manifest.Salt)
	require.Equal(t, gamedata.ModeStandard, sub.Mode)
	require.False(t, sub.TimedOut)
	require.Equal(t, float64(difficulty.DefaultFlashDurationMs), sub.Speed, "speed is the flash duration")
	require.NotNil(t, sub.Answer.Shape)
	require.Equal(t, gamedata.ShapeDiamond, *sub.Answer.Shape)
	require.NotNil(t, sub.Answer.Sat)
	require.Nil(t, sub.Answer.Color)
	require.Nil(t, sub.Answer.Dir)

	u := h.app.Current()
	require.Equal(t, 1950, u.Score)
	require.Equal(t, 1950, u.PeakScore)
	require.Equal(t, gamedata.T2, u.Tier)
	require.Equal(t, 1, u.Streak)
	require.NotNil(t, u.Difficulty)
	require.Equal(t, 1, u.Difficulty.TotalRounds)
	require.Len(t, u.ResultsHistory, 1)

	require.Len(t, h.pres.outcomes, 1)
	require.True(t, h.pres.outcomes[0].Promoted)
	require.Equal(t, 700.0, h.pres.outcomes[0].ReactionMs)
	require.Equal(t, 1, h.store.saves)
	require.Equal(t, 1, h.e.SessionStats().RoundsPlayed)
}

func TestRound_T3AsksEveryUnlockedQuestion(t *testing.T) {
	h := newHarness(t, gamedata.T3)
	h.api.result = gamedata.SubmitResult{Correct: true, NewScore: 100, NewTier: gamedata.T3}
	h.toQuestioning(t)
	h.answerAll(t)

	require.Equal(t, []Question{QuestionCenter, QuestionSatellite, QuestionColor, QuestionDirection}, h.pres.asked)
	sub := h.api.submissions()[0]
	require.Equal(t, testManifest.SatColorIdx, *sub.Answer.Color)
	require.Equal(t, testManifest.SatDirIdx, *sub.Answer.Dir)
}

func TestStart_BusyWhileRoundActive(t *testing.T) {
	h := newHarness(t, gamedata.T1)
	require.NoError(t, h.e.Start(context.Background()))
	require.ErrorIs(t, h.e.Start(context.Background()), ErrBusy)
}

func TestStart_NetworkFailureRevertsToIdle(t *testing.T) {
	h := newHarness(t, gamedata.T1)
	h.api.genErr = errors.New("connection refused")

	err := h.e.Start(context.Background())
	require.Error(t, err)
	require.Equal(t, StateIdle, h.e.State())
	require.Equal(t, 0, h.sched.live())
	require.NotEmpty(t, h.pres.messages)

	h.api.genErr = nil
	require.NoError(t, h.e.Start(context.Background()))
}

func TestStart_AbandonDuringFetchDiscardsResponse(t *testing.T) {
	h := newHarness(t, gamedata.T1)
	h.api.onGenerate = h.e.Abandon

	require.ErrorIs(t, h.e.Start(context.Background()), ErrStale)
	require.Equal(t, StateIdle, h.e.State())
	require.Equal(t, 0, h.sched.live())
}

func TestTimeout_SubmitsCollectedFieldsOnce(t *testing.T) {
	h := newHarness(t, gamedata.T1)
	h.api.result = gamedata.SubmitResult{Correct: false, NewScore: 0, NewTier: gamedata.T1}
	h.toQuestioning(t)

	require.NoError(t, h.e.Answer(CorrectChoice(testManifest, QuestionCenter)))
	h.sched.fire(t, LockoutDelay)
	require.Equal(t, QuestionSatellite, h.e.CurrentQuestion())

	timeout := h.sched.fire(t, QuestionTimeout)
	require.Equal(t, StateIdle, h.e.State())

	// A late tick of the same timer must not finalize again.
	timeout.f()

	subs := h.api.submissions()
	require.Len(t, subs, 1)
	require.True(t, subs[0].TimedOut)
	require.NotNil(t, subs[0].Answer.Shape)
	require.Nil(t, subs[0].Answer.Sat)

	require.Len(t, h.pres.outcomes, 1)
	require.Equal(t, gamedata.ReasonTimeout, h.pres.outcomes[0].Reason)
	require.Equal(t, -1, h.app.Current().Streak)
}

func TestAnswer_PendingWhenTimeoutFiresIsDropped(t *testing.T) {
	h := newHarness(t, gamedata.T1)
	h.toQuestioning(t)

	require.NoError(t, h.e.Answer(0))
	h.sched.fire(t, QuestionTimeout)
	h.sched.fire(t, LockoutDelay)

	require.Len(t, h.api.submissions(), 1)
	require.Nil(t, h.api.submissions()[0].Answer.Shape)
}

func TestFinalize_AfterCompletionIsNoop(t *testing.T) {
	h := newHarness(t, gamedata.T1)
	h.toQuestioning(t)
	seq := h.e.round.seq
	h.answerAll(t)

	h.e.finalize(seq, true)
	require.Len(t, h.api.submissions(), 1)
}

func TestAnswer_Guards(t *testing.T) {
	h := newHarness(t, gamedata.T1)
	require.ErrorIs(t, h.e.Answer(0), ErrNotQuestioning)

	h.toQuestioning(t)
	require.ErrorIs(t, h.e.Answer(len(gamedata.Shapes)), ErrInvalidChoice)
	require.ErrorIs(t, h.e.Answer(-1), ErrInvalidChoice)
	require.NoError(t, h.e.Answer(1))
	require.ErrorIs(t, h.e.Answer(2), ErrInputLocked)
}

func TestSubmit_NetworkFailureDoesNotScore(t *testing.T) {
	h := newHarness(t, gamedata.T1)
	h.api.submitErr = errors.New("timeout")
	h.toQuestioning(t)
	h.answerAll(t)

	require.Equal(t, StateIdle, h.e.State())
	require.Equal(t, 0, h.app.Current().Score)
	require.Empty(t, h.pres.outcomes)
	require.Equal(t, 0, h.store.saves)
}

func TestSubmit_StaleResponseDiscarded(t *testing.T) {
	h := newHarness(t, gamedata.T1)
	h.api.onSubmit = h.e.Abandon
	h.toQuestioning(t)
	h.answerAll(t)

	require.Equal(t, StateIdle, h.e.State())
	require.Equal(t, gamedata.T1, h.app.Current().Tier)
	require.Empty(t, h.pres.outcomes)
}

func TestDaily_FirstRoundStartsAtT1(t *testing.T) {
	h := newHarness(t, gamedata.T4)
	h.app.Current().Score = 9000
	h.api.result = gamedata.SubmitResult{Correct: true, NewScore: 750, NewTier: gamedata.T1}
	require.NoError(t, h.e.SetMode(gamedata.ModeDailyCasual))

	h.toQuestioning(t)
	h.answerAll(t)

	require.Equal(t, []Question{QuestionCenter, QuestionSatellite}, h.pres.asked)
	u := h.app.Current()
	require.Equal(t, gamedata.T4, u.Tier)
	require.Equal(t, 9000, u.Score)
	require.Equal(t, 750, u.DailyCasualScore)
	require.Equal(t, "2026-07-01", u.DailyCasualDate)
	require.Nil(t, u.Difficulty, "standard difficulty must not be saved from a daily run")
	require.Equal(t, gamedata.ModeDailyCasual, h.api.submissions()[0].Mode)
}

func TestDailyDeath_MissEndsRun(t *testing.T) {
	h := newHarness(t, gamedata.T1)
	h.api.result = gamedata.SubmitResult{Correct: false, NewScore: 0, NewTier: gamedata.T1}
	require.NoError(t, h.e.SetMode(gamedata.ModeDailyDeath))

	h.toQuestioning(t)
	h.answerAll(t)

	require.Equal(t, StateIdle, h.e.State())
	require.False(t, h.e.tracker().Active())
	require.Len(t, h.pres.ended, 1)
	require.Equal(t, 1, h.pres.ended[0].RoundsPlayed)
	require.Equal(t, 0, h.pres.ended[0].Accuracy)
	require.Len(t, h.app.Current().Sessions, 1)
	require.Equal(t, "RUN TERMINATED", h.pres.messages[len(h.pres.messages)-1].Text)
	require.ErrorIs(t, h.e.Start(context.Background()), ErrDailyPlayed)

	h.clk.advance(24 * time.Hour)
	require.NoError(t, h.e.Start(context.Background()))
}

func TestDailyCasual_SessionSummaryKeptInHistory(t *testing.T) {
	h := newHarness(t, gamedata.T1)
	h.api.result = gamedata.SubmitResult{Correct: true, NewScore: 750, NewTier: gamedata.T1}
	require.NoError(t, h.e.SetMode(gamedata.ModeDailyCasual))
	h.toQuestioning(t)
	h.clk.advance(session.TargetDuration)
	h.answerAll(t)

	require.Len(t, h.pres.ended, 1)
	require.Len(t, h.app.Current().Sessions, 1)
	require.Equal(t, 1, h.app.Current().TotalSessions)
}

func TestSubmit_SoftRejectionKeepsLocalLadder(t *testing.T) {
	for _, reason := range []string{gamedata.ReasonStaleRound, gamedata.ReasonTemporalAnomaly} {
		t.Run(reason, func(t *testing.T) {
			h := newHarness(t, gamedata.T3)
			u := h.app.Current()
			u.Score, u.Streak = 4200, 3
			h.api.result = gamedata.SubmitResult{Correct: false, NewScore: 0, NewTier: gamedata.T1, Reason: reason}
			h.toQuestioning(t)
			h.answerAll(t)

			require.Equal(t, StateIdle, h.e.State())
			require.Equal(t, gamedata.T3, u.Tier)
			require.Equal(t, 4200, u.Score)
			require.Equal(t, 3, u.Streak)
			require.Nil(t, u.Difficulty)
			require.Empty(t, u.ResultsHistory)
			require.Equal(t, 0, h.e.SessionStats().RoundsPlayed)

			require.Len(t, h.pres.outcomes, 1)
			o := h.pres.outcomes[0]
			require.False(t, o.Correct)
			require.Equal(t, reason, o.Reason)
			require.Equal(t, gamedata.T3, o.Tier)
			require.Equal(t, 4200, o.Score)

			h.pres.asked = nil
			h.toQuestioning(t)
			h.answerAll(t)
			require.Equal(t, []Question{QuestionCenter, QuestionSatellite, QuestionColor, QuestionDirection}, h.pres.asked,
				"next round is still built for T3")
		})
	}
}

func TestSession_EndsAfterTarget(t *testing.T) {
	h := newHarness(t, gamedata.T1)
	h.toQuestioning(t)
	h.clk.advance(session.TargetDuration)
	h.answerAll(t)

	require.Len(t, h.pres.ended, 1)
	u := h.app.Current()
	require.Len(t, u.Sessions, 1)
	require.Equal(t, 1, u.TotalSessions)
	require.Equal(t, 1, u.Sessions[0].RoundsPlayed)
}

func TestSelectUser_RestoresDifficulty(t *testing.T) {
	h := newHarness(t, gamedata.T1)
	bob := h.app.AddUser("bob")
	st := difficulty.Restore(difficulty.State{FlashDuration: 200}).State()
	bob.Difficulty = &st

	require.NoError(t, h.e.SelectUser("bob"))
	require.Equal(t, 200, h.e.Parameters().FlashDurationMs)
	require.Equal(t, "bob", h.app.CurrentUser)
	require.Equal(t, 1, bob.DailyStreak)

	require.ErrorIs(t, h.e.SelectUser(""), ErrNoUser)
}

func TestSelectUser_AbandonsRound(t *testing.T) {
	h := newHarness(t, gamedata.T1)
	h.toQuestioning(t)

	require.NoError(t, h.e.SelectUser("carol"))
	require.Equal(t, StateIdle, h.e.State())
	require.Equal(t, 0, h.sched.live())
	require.NotNil(t, h.app.User("carol"))
}

func TestSetMode_RefusedMidRound(t *testing.T) {
	h := newHarness(t, gamedata.T1)
	require.NoError(t, h.e.Start(context.Background()))
	require.ErrorIs(t, h.e.SetMode(gamedata.ModeDailyDeath), ErrBusy)
	require.Error(t, h.e.SetMode("WEEKLY"))
}
