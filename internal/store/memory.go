package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"neurotrainer/internal/gamedata"
)

type dailyKey struct {
	userID string
	mode   gamedata.Mode
}

// Memory is the in-process Store used when no database is configured.
type Memory struct {
	mu       sync.Mutex
	keys     map[string]AnswerKey
	profiles map[string]Profile
	daily    map[dailyKey]DailyProfile
}

func NewMemory() *Memory {
	return &Memory{
		keys:     make(map[string]AnswerKey),
		profiles: make(map[string]Profile),
		daily:    make(map[dailyKey]DailyProfile),
	}
}

func (m *Memory) PutKey(_ context.Context, key AnswerKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key.UserID] = key
	return nil
}

// Key reads a slot outside of a transaction.
func (m *Memory) Key(userID string) (AnswerKey, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[userID]
	return k, ok
}

func (m *Memory) WithinTx(ctx context.Context, userID string, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{m: m, userID: userID}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *Memory) Profile(_ context.Context, userID string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) SetPin(_ context.Context, userID, pin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		p = NewProfile(userID)
	}
	p.Pin = pin
	p.UpdatedAt = time.Now()
	m.profiles[userID] = p
	return nil
}

func (m *Memory) SyncProfile(_ context.Context, userID string, sync ProfileSync) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		p = NewProfile(userID)
	}
	if sync.DisplayName != "" {
		p.DisplayName = sync.DisplayName
	}
	p.TotalSessions = sync.TotalSessions
	p.TrainingBlock = sync.TrainingBlock
	p.DailyStreak = sync.DailyStreak
	p.UpdatedAt = time.Now()
	m.profiles[userID] = p
	return nil
}

func (m *Memory) Leaderboard(_ context.Context, mode gamedata.Mode, day string, since time.Time, limit int) ([]LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []LeaderboardEntry
	if mode.Daily() {
		for k, d := range m.daily {
			if k.mode != mode || d.Day != day || !d.UpdatedAt.After(since) {
				continue
			}
			name := d.UserID
			if p, ok := m.profiles[d.UserID]; ok && p.DisplayName != "" {
				name = p.DisplayName
			}
			entries = append(entries, LeaderboardEntry{UserID: d.UserID, Name: name, Score: int(d.Score), Tier: d.Tier})
		}
	} else {
		for _, p := range m.profiles {
			entries = append(entries, LeaderboardEntry{UserID: p.UserID, Name: p.DisplayName, Score: p.ScoreInt(), Tier: p.Tier})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// memTx stages writes until commit. The store mutex is held for its lifetime.
type memTx struct {
	m      *Memory
	userID string

	key     *AnswerKey
	profile *Profile
	daily   map[gamedata.Mode]DailyProfile
}

func (t *memTx) Key(context.Context) (*AnswerKey, error) {
	if t.key != nil {
		k := *t.key
		return &k, nil
	}
	k, ok := t.m.keys[t.userID]
	if !ok {
		return nil, nil
	}
	return &k, nil
}

func (t *memTx) DeactivateKey(ctx context.Context) error {
	k, err := t.Key(ctx)
	if err != nil || k == nil {
		return err
	}
	k.Active = false
	t.key = k
	return nil
}

func (t *memTx) Profile(context.Context) (*Profile, error) {
	if t.profile != nil {
		p := *t.profile
		return &p, nil
	}
	p, ok := t.m.profiles[t.userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *memTx) PutProfile(_ context.Context, p Profile) error {
	p.UserID = t.userID
	t.profile = &p
	return nil
}

func (t *memTx) DailyProfile(_ context.Context, mode gamedata.Mode) (*DailyProfile, error) {
	if d, ok := t.daily[mode]; ok {
		return &d, nil
	}
	d, ok := t.m.daily[dailyKey{t.userID, mode}]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (t *memTx) PutDailyProfile(_ context.Context, d DailyProfile) error {
	d.UserID = t.userID
	if t.daily == nil {
		t.daily = make(map[gamedata.Mode]DailyProfile)
	}
	t.daily[d.Mode] = d
	return nil
}

func (t *memTx) commit() {
	if t.key != nil {
		t.m.keys[t.userID] = *t.key
	}
	if t.profile != nil {
		t.m.profiles[t.userID] = *t.profile
	}
	for mode, d := range t.daily {
		t.m.daily[dailyKey{t.userID, mode}] = d
	}
}
