package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"neurotrainer/internal/gamedata"
	"neurotrainer/internal/store"
)

func (d *DB) Leaderboard(ctx context.Context, mode gamedata.Mode, day string, since time.Time, limit int) ([]store.LeaderboardEntry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if mode.Daily() {
		rows, err = d.conn.QueryContext(ctx, `
			SELECT dp.user_id, COALESCE(p.display_name, dp.user_id), FLOOR(dp.score)::int, dp.tier
			FROM daily_profiles dp
			LEFT JOIN profiles p ON p.user_id = dp.user_id
			WHERE dp.mode = $1 AND dp.day = $2 AND dp.updated_at > $3
			ORDER BY dp.score DESC, dp.user_id
			LIMIT $4`, string(mode), day, since, limit)
	} else {
		rows, err = d.conn.QueryContext(ctx, `
			SELECT user_id, display_name, FLOOR(score)::int, tier
			FROM profiles
			ORDER BY score DESC, user_id
			LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("getting leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []store.LeaderboardEntry
	rank := 1
	for rows.Next() {
		var e store.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Name, &e.Score, &e.Tier); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
