package store

import (
	"context"
	"errors"
	"time"

	"neurotrainer/internal/gamedata"
)

var ErrNotFound = errors.New("not found")

// Store persists answer keys and profiles.
type Store interface {
	// PutKey replaces the user's key slot.
	PutKey(ctx context.Context, key AnswerKey) error
	// WithinTx runs fn against a consistent view of one user's key and
	// profiles. Writes made through the Tx are committed together only when
	// fn returns nil; concurrent transactions for the same user serialize.
	WithinTx(ctx context.Context, userID string, fn func(tx Tx) error) error
	Profile(ctx context.Context, userID string) (*Profile, error)
	SetPin(ctx context.Context, userID, pin string) error
	SyncProfile(ctx context.Context, userID string, sync ProfileSync) error
	// Leaderboard ranks profiles by score. For daily modes only entries
	// for day updated after since are included.
	Leaderboard(ctx context.Context, mode gamedata.Mode, day string, since time.Time, limit int) ([]LeaderboardEntry, error)
}

type Tx interface {
	// Key returns the user's key slot or nil when the slot is empty.
	Key(ctx context.Context) (*AnswerKey, error)
	DeactivateKey(ctx context.Context) error
	// Profile returns nil when the user has no stored profile.
	Profile(ctx context.Context) (*Profile, error)
	PutProfile(ctx context.Context, p Profile) error
	// DailyProfile returns nil when the user has none for mode.
	DailyProfile(ctx context.Context, mode gamedata.Mode) (*DailyProfile, error)
	PutDailyProfile(ctx context.Context, d DailyProfile) error
}
