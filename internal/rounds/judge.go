package rounds

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"neurotrainer/internal/events"
	"neurotrainer/internal/gamedata"
	"neurotrainer/internal/store"
	"neurotrainer/internal/utility"
)

// Submission is one client answer to the user's active round.
type Submission struct {
	UserID string
	Answer gamedata.Answer
	// Speed is the flash duration in ms the player answered under.
	Speed float64
	// Salt is optional; when set it must match the stored key.
	Salt     string
	Mode     gamedata.Mode
	TimedOut bool
}

func (sub Submission) validate() error {
	if strings.TrimSpace(sub.UserID) == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidArgument)
	}
	if math.IsNaN(sub.Speed) || math.IsInf(sub.Speed, 0) || sub.Speed < 0 {
		return fmt.Errorf("%w: speed must be a non-negative number", ErrInvalidArgument)
	}
	switch sub.Mode {
	case gamedata.ModeStandard, gamedata.ModeDailyCasual, gamedata.ModeDailyDeath:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidArgument, sub.Mode)
	}
	return nil
}

func rejected(reason string) gamedata.SubmitResult {
	return gamedata.SubmitResult{Correct: false, NewScore: 0, NewTier: gamedata.T1, Reason: reason}
}

// Submit judges sub against the stored key. Stale rounds and salt mismatches
// are soft rejections and leave storage untouched. A judged key is scored
// and deactivated in one transaction, so it can never be scored twice.
func (s *Service) Submit(ctx context.Context, sub Submission) (gamedata.SubmitResult, error) {
	ctx, span := tracer.Start(ctx, "rounds.Submit")
	defer span.End()

	if sub.Mode == "" {
		sub.Mode = gamedata.ModeStandard
	}
	sub.UserID = strings.TrimSpace(sub.UserID)
	if err := sub.validate(); err != nil {
		return gamedata.SubmitResult{}, err
	}
	span.SetAttributes(
		attribute.String("user.id", sub.UserID),
		attribute.String("round.mode", string(sub.Mode)),
	)

	started := time.Now()
	var result gamedata.SubmitResult
	judged := false

	err := s.store.WithinTx(ctx, sub.UserID, func(tx store.Tx) error {
		key, err := tx.Key(ctx)
		if err != nil {
			return fmt.Errorf("reading answer key: %w", err)
		}
		if key == nil || !key.Active {
			result = rejected(gamedata.ReasonStaleRound)
			return nil
		}
		if sub.Salt != "" && !saltMatches(sub.Salt, key.Salt) {
			result = rejected(gamedata.ReasonTemporalAnomaly)
			return nil
		}

		if sub.Mode == gamedata.ModeStandard {
			result, err = s.judgeStandard(ctx, tx, key, sub)
		} else {
			result, err = s.judgeDaily(ctx, tx, key, sub)
		}
		if err != nil {
			return err
		}

		if err := tx.DeactivateKey(ctx); err != nil {
			return fmt.Errorf("deactivating answer key: %w", err)
		}
		judged = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		log.Error().Str("component", "rounds").Err(err).Str("user", sub.UserID).Msg("judging round")
		return gamedata.SubmitResult{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	if !judged {
		s.metrics.RoundRejected(result.Reason)
		log.Info().Str("component", "rounds").Str("user", sub.UserID).Str("reason", result.Reason).Msg("submission rejected")
		return result, nil
	}

	s.metrics.RoundJudged(string(sub.Mode), result.Correct, time.Since(started))
	s.events.PublishJudged(events.RoundJudgedEvent{
		UserID:  sub.UserID,
		Mode:    string(sub.Mode),
		Correct: result.Correct,
		Score:   result.NewScore,
		Tier:    result.NewTier.String(),
		Reason:  result.Reason,
		At:      s.now().UTC(),
	})
	log.Debug().
		Str("component", "rounds").
		Str("user", sub.UserID).
		Str("mode", string(sub.Mode)).
		Bool("correct", result.Correct).
		Int("score", result.NewScore).
		Stringer("tier", result.NewTier).
		Msg("round judged")
	return result, nil
}

func (s *Service) judgeStandard(ctx context.Context, tx store.Tx, key *store.AnswerKey, sub Submission) (gamedata.SubmitResult, error) {
	current, err := tx.Profile(ctx)
	if err != nil {
		return gamedata.SubmitResult{}, fmt.Errorf("reading profile: %w", err)
	}
	p := store.NewProfile(sub.UserID)
	if current != nil {
		p = *current
	}
	if !p.Tier.Valid() {
		p.Tier = gamedata.T1
	}

	correct, reason := s.check(key, sub, p.Tier)
	if correct {
		p.Score, p.Tier = ApplyCorrect(p.Score, p.Tier, sub.Speed)
	} else {
		p.Score, p.Tier = ApplyIncorrect(p.Score, p.Tier, sub.Speed)
	}
	p.Score = math.Floor(p.Score)
	p.Speed = sub.Speed
	p.Streak = nextStreak(p.Streak, correct)
	p.UpdatedAt = s.now().UTC()

	if err := tx.PutProfile(ctx, p); err != nil {
		return gamedata.SubmitResult{}, fmt.Errorf("writing profile: %w", err)
	}
	return gamedata.SubmitResult{Correct: correct, NewScore: p.ScoreInt(), NewTier: p.Tier, Reason: reason}, nil
}

func (s *Service) judgeDaily(ctx context.Context, tx store.Tx, key *store.AnswerKey, sub Submission) (gamedata.SubmitResult, error) {
	now := s.now().UTC()
	today := utility.DayKey(now)

	current, err := tx.DailyProfile(ctx, sub.Mode)
	if err != nil {
		return gamedata.SubmitResult{}, fmt.Errorf("reading daily profile: %w", err)
	}
	// A profile from an earlier day is a finished run.
	d := store.DailyProfile{UserID: sub.UserID, Mode: sub.Mode, Day: today, Tier: gamedata.T1}
	if current != nil && current.Day == today {
		d = *current
	}
	if !d.Tier.Valid() {
		d.Tier = gamedata.T1
	}

	correct, reason := s.check(key, sub, d.Tier)
	if correct {
		d.Score, d.Tier = ApplyCorrect(d.Score, d.Tier, sub.Speed)
	} else {
		d.Score, d.Tier = ApplyIncorrect(d.Score, d.Tier, sub.Speed)
	}
	d.Score = math.Floor(d.Score)
	d.Rounds++
	d.UpdatedAt = now

	if err := tx.PutDailyProfile(ctx, d); err != nil {
		return gamedata.SubmitResult{}, fmt.Errorf("writing daily profile: %w", err)
	}
	return gamedata.SubmitResult{Correct: correct, NewScore: int(d.Score), NewTier: d.Tier, Reason: reason}, nil
}

func (s *Service) check(key *store.AnswerKey, sub Submission, tier gamedata.Tier) (bool, string) {
	if sub.TimedOut {
		return false, gamedata.ReasonTimeout
	}
	if !Matches(key, sub.Answer) {
		return false, gamedata.ReasonWrongAnswer
	}
	if s.strict && MissingRequired(tier, sub.Answer) {
		return false, gamedata.ReasonWrongAnswer
	}
	return true, ""
}

// Matches compares every supplied answer field to the key. Omitted fields
// are not checked.
func Matches(key *store.AnswerKey, a gamedata.Answer) bool {
	switch {
	case a.Shape != nil && *a.Shape != key.TargetShape,
		a.Sat != nil && *a.Sat != key.SatShape,
		a.Color != nil && *a.Color != key.SatColorIdx,
		a.Dir != nil && *a.Dir != key.SatDirIdx,
		a.TargetColor != nil && *a.TargetColor != key.TargetColorIdx,
		a.Sat2Shape != nil && *a.Sat2Shape != key.Sat2Shape,
		a.Sat2Dir != nil && *a.Sat2Dir != key.Sat2DirIdx,
		a.Solid != nil && *a.Solid != key.TargetSolid:
		return false
	}
	return true
}

// MissingRequired reports whether a field that tier always asks for is absent.
// From T4 the interrogation samples its questions, so only the core shape is
// guaranteed.
func MissingRequired(tier gamedata.Tier, a gamedata.Answer) bool {
	if a.Shape == nil {
		return true
	}
	if tier.Roulette() {
		return false
	}
	if a.Sat == nil {
		return true
	}
	if tier.HasColor() && a.Color == nil {
		return true
	}
	if tier.HasDirection() && a.Dir == nil {
		return true
	}
	return false
}
