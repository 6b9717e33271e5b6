package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"neurotrainer/internal/store"
)

const profileColumns = `user_id, display_name, score, tier, speed, streak, COALESCE(pin, ''), total_sessions, training_block, daily_streak, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*store.Profile, error) {
	var p store.Profile
	err := row.Scan(&p.UserID, &p.DisplayName, &p.Score, &p.Tier, &p.Speed, &p.Streak, &p.Pin, &p.TotalSessions, &p.TrainingBlock, &p.DailyStreak, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DB) Profile(ctx context.Context, userID string) (*store.Profile, error) {
	p, err := scanProfile(d.conn.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return p, nil
}

func (d *DB) SetPin(ctx context.Context, userID, pin string) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO profiles (user_id, display_name, pin)
		VALUES ($1, $1, $2)
		ON CONFLICT (user_id) DO UPDATE SET pin = $2, updated_at = now()
	`, userID, pin)
	if err != nil {
		return fmt.Errorf("setting pin: %w", err)
	}
	return nil
}

func (d *DB) SyncProfile(ctx context.Context, userID string, s store.ProfileSync) error {
	name := s.DisplayName
	if name == "" {
		name = userID
	}
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO profiles (user_id, display_name, total_sessions, training_block, daily_streak)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = $2, total_sessions = $3, training_block = $4, daily_streak = $5, updated_at = now()
	`, userID, name, s.TotalSessions, s.TrainingBlock, s.DailyStreak)
	if err != nil {
		return fmt.Errorf("syncing profile: %w", err)
	}
	return nil
}

func putProfile(ctx context.Context, tx *sql.Tx, p store.Profile) error {
	var pin any
	if p.Pin != "" {
		pin = p.Pin
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (user_id, display_name, score, tier, speed, streak, pin, total_sessions, training_block, daily_streak, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = $2, score = $3, tier = $4, speed = $5, streak = $6, pin = $7,
			total_sessions = $8, training_block = $9, daily_streak = $10, updated_at = now()
	`, p.UserID, p.DisplayName, p.Score, p.Tier, p.Speed, p.Streak, pin, p.TotalSessions, p.TrainingBlock, p.DailyStreak)
	if err != nil {
		return fmt.Errorf("storing profile: %w", err)
	}
	return nil
}

func getDailyProfile(ctx context.Context, tx *sql.Tx, userID, mode string) (*store.DailyProfile, error) {
	var dp store.DailyProfile
	err := tx.QueryRowContext(ctx, `
		SELECT user_id, mode, day, score, tier, rounds, updated_at
		FROM daily_profiles WHERE user_id = $1 AND mode = $2
	`, userID, mode).Scan(&dp.UserID, &dp.Mode, &dp.Day, &dp.Score, &dp.Tier, &dp.Rounds, &dp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting daily profile: %w", err)
	}
	return &dp, nil
}

func putDailyProfile(ctx context.Context, tx *sql.Tx, dp store.DailyProfile) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO daily_profiles (user_id, mode, day, score, tier, rounds, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (user_id, mode) DO UPDATE SET
			day = $3, score = $4, tier = $5, rounds = $6, updated_at = now()
	`, dp.UserID, dp.Mode, dp.Day, dp.Score, dp.Tier, dp.Rounds)
	if err != nil {
		return fmt.Errorf("storing daily profile: %w", err)
	}
	return nil
}
