package main

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"neurotrainer/internal/engine"
	"neurotrainer/internal/gamedata"
	"neurotrainer/internal/session"
)

// answerer is an engine.Presenter that remembers the last flash and answers
// each question itself after a think delay.
type answerer struct {
	engine.NopPresenter

	accuracy float64
	think    time.Duration
	rng      *rand.Rand

	mu       sync.Mutex
	eng      *engine.Engine
	manifest gamedata.Manifest

	outcomes chan engine.Outcome
	ended    chan session.Summary
}

func newAnswerer(accuracy float64, think time.Duration, seed uint64) *answerer {
	return &answerer{
		accuracy: accuracy,
		think:    think,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		outcomes: make(chan engine.Outcome, 1),
		ended:    make(chan session.Summary, 1),
	}
}

func (a *answerer) attach(e *engine.Engine) {
	a.mu.Lock()
	a.eng = e
	a.mu.Unlock()
}

func (a *answerer) Flash(s engine.Scene) {
	a.mu.Lock()
	a.manifest = s.Manifest
	a.mu.Unlock()
	log.Debug().Str("tier", s.Tier.String()).Dur("flash", s.FlashDuration).Bool("anomaly", s.Anomaly).Msg("flash")
}

func (a *answerer) Ask(q engine.Question) {
	a.mu.Lock()
	e, m := a.eng, a.manifest
	choice := engine.CorrectChoice(m, q)
	if a.rng.Float64() >= a.accuracy {
		choice = (choice + 1 + a.rng.IntN(q.Choices()-1)) % q.Choices()
	}
	a.mu.Unlock()

	go func() {
		time.Sleep(a.think)
		if err := e.Answer(choice); err != nil {
			log.Debug().Err(err).Str("question", string(q)).Msg("answer refused")
		}
	}()
}

func (a *answerer) Message(m engine.Message) {
	log.Info().Str("kind", string(m.Kind)).Msg(m.Text)
}

func (a *answerer) RoundComplete(o engine.Outcome) {
	a.outcomes <- o
}

func (a *answerer) SessionEnded(s session.Summary) {
	select {
	case a.ended <- s:
	default:
	}
}
