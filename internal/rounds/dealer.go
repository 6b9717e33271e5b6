package rounds

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"neurotrainer/internal/gamedata"
	"neurotrainer/internal/store"
)

// Generate draws a fresh answer key for userID, stores it as the user's only
// active key and returns its public manifest.
func (s *Service) Generate(ctx context.Context, userID string) (gamedata.Manifest, error) {
	ctx, span := tracer.Start(ctx, "rounds.Generate")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return gamedata.Manifest{}, fmt.Errorf("%w: userId is required", ErrInvalidArgument)
	}
	span.SetAttributes(attribute.String("user.id", userID))

	salt, err := NewSalt(SaltLength)
	if err != nil {
		return gamedata.Manifest{}, fmt.Errorf("%w: generating salt: %w", ErrInternal, err)
	}

	key := s.drawKey(userID, salt)
	if err := s.store.PutKey(ctx, key); err != nil {
		span.RecordError(err)
		log.Error().Str("component", "rounds").Err(err).Str("user", userID).Msg("storing answer key")
		return gamedata.Manifest{}, fmt.Errorf("%w: storing answer key: %w", ErrInternal, err)
	}

	s.metrics.RoundGenerated()
	log.Debug().Str("component", "rounds").Str("user", userID).Msg("round generated")
	return key.Manifest(), nil
}

func (s *Service) drawKey(userID, salt string) store.AnswerKey {
	shapes := gamedata.Shapes
	colors := len(gamedata.Colors)
	return store.AnswerKey{
		UserID:         userID,
		TargetShape:    shapes[s.intn(len(shapes))],
		SatShape:       shapes[s.intn(len(shapes))],
		SatColorIdx:    s.intn(colors),
		SatDirIdx:      s.intn(gamedata.DirectionCount),
		TargetColorIdx: s.intn(colors),
		Sat2Shape:      shapes[s.intn(len(shapes))],
		Sat2DirIdx:     s.intn(gamedata.DirectionCount),
		TargetSolid:    s.intn(2) == 1,
		Salt:           salt,
		CreatedAt:      s.now().UTC(),
		Active:         true,
	}
}
