package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	payload BLOB NOT NULL,
	checksum TEXT NOT NULL,
	saved_at INTEGER NOT NULL
)`

// Vault keeps a single snapshot document in a SQLite file.
type Vault struct {
	db *sql.DB
}

func OpenVault(path string) (*Vault, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("vault path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	return &Vault{db: db}, nil
}

func (v *Vault) Close() error {
	if v == nil || v.db == nil {
		return nil
	}
	return v.db.Close()
}

// Load returns a fresh AppData when nothing is stored or the stored copy
// fails its checksum.
func (v *Vault) Load(ctx context.Context) (*AppData, error) {
	var payload []byte
	var sum string
	err := v.db.QueryRowContext(ctx, `SELECT payload, checksum FROM snapshots WHERE id = 1`).Scan(&payload, &sum)
	if errors.Is(err, sql.ErrNoRows) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	a, err := Decode(payload, sum)
	if errors.Is(err, ErrChecksum) {
		log.Warn().Str("component", "snapshot").Msg("discarding snapshot with bad checksum")
		return New(), nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (v *Vault) Save(ctx context.Context, a *AppData) error {
	payload, sum, err := Encode(a)
	if err != nil {
		return err
	}
	_, err = v.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, payload, checksum, saved_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, checksum = excluded.checksum, saved_at = excluded.saved_at`,
		payload, sum, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
