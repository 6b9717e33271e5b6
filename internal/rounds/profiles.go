package rounds

import (
	"context"
	"fmt"
	"strings"

	"neurotrainer/internal/gamedata"
	"neurotrainer/internal/store"
	"neurotrainer/internal/utility"
)

func (s *Service) SetPin(ctx context.Context, userID, pin string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidArgument)
	}
	if pin == "" {
		return fmt.Errorf("%w: pin is required", ErrInvalidArgument)
	}
	if err := s.store.SetPin(ctx, userID, pin); err != nil {
		return fmt.Errorf("%w: setting pin: %w", ErrInternal, err)
	}
	return nil
}

func (s *Service) SyncProfile(ctx context.Context, userID string, sync store.ProfileSync) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidArgument)
	}
	if sync.TotalSessions < 0 || sync.TrainingBlock < 0 || sync.DailyStreak < 0 {
		return fmt.Errorf("%w: profile counters must be non-negative", ErrInvalidArgument)
	}
	if err := s.store.SyncProfile(ctx, userID, sync); err != nil {
		return fmt.Errorf("%w: syncing profile: %w", ErrInternal, err)
	}
	return nil
}

// Leaderboard returns up to count entries for mode, capped per mode. Daily
// boards only include today's entries updated within the last day.
func (s *Service) Leaderboard(ctx context.Context, mode gamedata.Mode, count int) ([]store.LeaderboardEntry, error) {
	if mode == "" {
		mode = gamedata.ModeStandard
	}
	if _, err := gamedata.ParseMode(string(mode)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	limit := s.leaderboardMax
	if mode.Daily() {
		limit = s.dailyLeaderboardMax
	}
	if count <= 0 {
		count = defaultLeaderboardCount
	}
	count = min(count, limit)

	now := s.now().UTC()
	entries, err := s.store.Leaderboard(ctx, mode, utility.DayKey(now), now.Add(-dailyStaleAfter), count)
	if err != nil {
		return nil, fmt.Errorf("%w: loading leaderboard: %w", ErrInternal, err)
	}
	return entries, nil
}
