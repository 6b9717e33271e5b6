package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"neurotrainer/internal/gamedata"
	"neurotrainer/internal/store"
)

func (d *DB) WithinTx(ctx context.Context, userID string, fn func(tx store.Tx) error) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx, userID: userID}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type sqlTx struct {
	tx     *sql.Tx
	userID string
}

func (t *sqlTx) Key(ctx context.Context) (*store.AnswerKey, error) {
	return lockKey(ctx, t.tx, t.userID)
}

func (t *sqlTx) DeactivateKey(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, `UPDATE answer_keys SET active = FALSE WHERE user_id = $1`, t.userID); err != nil {
		return fmt.Errorf("deactivating answer key: %w", err)
	}
	return nil
}

func (t *sqlTx) Profile(ctx context.Context) (*store.Profile, error) {
	p, err := scanProfile(t.tx.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1 FOR UPDATE`, t.userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return p, nil
}

func (t *sqlTx) PutProfile(ctx context.Context, p store.Profile) error {
	p.UserID = t.userID
	return putProfile(ctx, t.tx, p)
}

func (t *sqlTx) DailyProfile(ctx context.Context, mode gamedata.Mode) (*store.DailyProfile, error) {
	return getDailyProfile(ctx, t.tx, t.userID, string(mode))
}

func (t *sqlTx) PutDailyProfile(ctx context.Context, dp store.DailyProfile) error {
	dp.UserID = t.userID
	return putDailyProfile(ctx, t.tx, dp)
}
