package events

import "time"

// RoundJudgedEvent is published once per judged submission.
type RoundJudgedEvent struct {
	UserID  string
	Mode    string
	Correct bool
	Score   int
	Tier    string
	Reason  string
	At      time.Time
}

type Bus struct {
	RoundsJudged chan RoundJudgedEvent
}

func NewBus() *Bus {
	return &Bus{
		RoundsJudged: make(chan RoundJudgedEvent, 64),
	}
}

// PublishJudged never blocks; it reports false when the buffer is full.
func (b *Bus) PublishJudged(ev RoundJudgedEvent) bool {
	if b == nil {
		return false
	}
	select {
	case b.RoundsJudged <- ev:
		return true
	default:
		return false
	}
}
