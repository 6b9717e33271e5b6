// Package rounds issues answer keys and judges submissions against them.
package rounds

import (
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"

	"neurotrainer/internal/events"
	"neurotrainer/internal/metrics"
	"neurotrainer/internal/store"
)

var tracer = otel.Tracer("neurotrainer/internal/rounds")

const (
	defaultLeaderboardMax      = 100
	defaultDailyLeaderboardMax = 50
	defaultLeaderboardCount    = 20
	dailyStaleAfter            = 24 * time.Hour
)

type Options struct {
	Events  *events.Bus
	Metrics *metrics.Metrics
	// StrictFields makes the judge decide from the stored tier which answer
	// fields are mandatory; a missing mandatory field is a wrong answer.
	StrictFields        bool
	LeaderboardMax      int
	DailyLeaderboardMax int
}

type Service struct {
	store   store.Store
	events  *events.Bus
	metrics *metrics.Metrics
	strict  bool

	leaderboardMax      int
	dailyLeaderboardMax int

	now  func() time.Time
	intn func(int) int
}

func NewService(st store.Store, opts Options) *Service {
	s := &Service{
		store:               st,
		events:              opts.Events,
		metrics:             opts.Metrics,
		strict:              opts.StrictFields,
		leaderboardMax:      opts.LeaderboardMax,
		dailyLeaderboardMax: opts.DailyLeaderboardMax,
		now:                 time.Now,
		intn:                rand.IntN,
	}
	if s.leaderboardMax <= 0 {
		s.leaderboardMax = defaultLeaderboardMax
	}
	if s.dailyLeaderboardMax <= 0 {
		s.dailyLeaderboardMax = defaultDailyLeaderboardMax
	}
	return s
}
