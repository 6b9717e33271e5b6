package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"neurotrainer/internal/store"
)

func (d *DB) PutKey(ctx context.Context, k store.AnswerKey) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO answer_keys (user_id, target_shape, sat_shape, sat_color_idx, sat_dir_idx, target_color_idx, sat2_shape, sat2_dir_idx, target_solid, salt, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id) DO UPDATE SET
			target_shape = $2, sat_shape = $3, sat_color_idx = $4, sat_dir_idx = $5,
			target_color_idx = $6, sat2_shape = $7, sat2_dir_idx = $8, target_solid = $9,
			salt = $10, active = $11, created_at = $12
	`, k.UserID, k.TargetShape, k.SatShape, k.SatColorIdx, k.SatDirIdx, k.TargetColorIdx, k.Sat2Shape, k.Sat2DirIdx, k.TargetSolid, k.Salt, k.Active, k.CreatedAt)
	if err != nil {
		return fmt.Errorf("storing answer key: %w", err)
	}
	return nil
}

// lockKey reads the key row with FOR UPDATE so concurrent submissions for the
// same user queue behind the first one.
func lockKey(ctx context.Context, tx *sql.Tx, userID string) (*store.AnswerKey, error) {
	var k store.AnswerKey
	err := tx.QueryRowContext(ctx, `
		SELECT user_id, target_shape, sat_shape, sat_color_idx, sat_dir_idx, target_color_idx, sat2_shape, sat2_dir_idx, target_solid, salt, active, created_at
		FROM answer_keys WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&k.UserID, &k.TargetShape, &k.SatShape, &k.SatColorIdx, &k.SatDirIdx, &k.TargetColorIdx, &k.Sat2Shape, &k.Sat2DirIdx, &k.TargetSolid, &k.Salt, &k.Active, &k.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting answer key: %w", err)
	}
	return &k, nil
}
