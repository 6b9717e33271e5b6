package snapshot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"neurotrainer/internal/difficulty"
	"neurotrainer/internal/gamedata"
	"neurotrainer/internal/session"
)

func sampleData() *AppData {
	a := New()
	u := a.AddUser("alice")
	u.Score = 1950
	u.Tier = gamedata.T2
	st := difficulty.New().State()
	u.Difficulty = &st
	u.AddSession(session.Summary{RoundsPlayed: 12, Accuracy: 75, SpeedTrend: session.TrendStable})
	a.CurrentUser = "alice"
	return a
}

func TestEncodeDecode(t *testing.T) {
	payload, sum, err := Encode(sampleData())
	require.NoError(t, err)

	got, err := Decode(payload, sum)
	require.NoError(t, err)
	require.Equal(t, "alice", got.CurrentUser)
	require.Equal(t, 1950, got.Current().Score)
	require.Equal(t, gamedata.T2, got.Current().Tier)
	require.NotNil(t, got.Current().Difficulty)
}

func TestDecode_TamperedPayload(t *testing.T) {
	payload, sum, err := Encode(sampleData())
	require.NoError(t, err)

	tampered := []byte(string(payload))
	tampered[len(tampered)-3] ^= 1
	_, err = Decode(tampered, sum)
	require.ErrorIs(t, err, ErrChecksum)
}

func TestVault_SaveLoad(t *testing.T) {
	v, err := OpenVault(filepath.Join(t.TempDir(), "snap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	ctx := context.Background()

	empty, err := v.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, empty.Users)

	require.NoError(t, v.Save(ctx, sampleData()))
	loaded, err := v.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 1950, loaded.User("alice").Score)

	loaded.User("alice").Score = 2100
	require.NoError(t, v.Save(ctx, loaded))
	again, err := v.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 2100, again.User("alice").Score)
}

func TestVault_CorruptSnapshotIsAbsent(t *testing.T) {
	v, err := OpenVault(filepath.Join(t.TempDir(), "snap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	ctx := context.Background()

	require.NoError(t, v.Save(ctx, sampleData()))
	_, err = v.db.ExecContext(ctx, `UPDATE snapshots SET checksum = 'deadbeef' WHERE id = 1`)
	require.NoError(t, err)

	loaded, err := v.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, loaded.User("alice"))
}

func TestCheckDailyStreak(t *testing.T) {
	u := NewUser("bob")
	day := time.Date(2026, 4, 10, 18, 0, 0, 0, time.UTC)

	u.CheckDailyStreak(day)
	require.Equal(t, 1, u.DailyStreak)
	u.CheckDailyStreak(day.Add(2 * time.Hour))
	require.Equal(t, 1, u.DailyStreak)
	u.CheckDailyStreak(day.AddDate(0, 0, 1))
	require.Equal(t, 2, u.DailyStreak)
	u.CheckDailyStreak(day.AddDate(0, 0, 4))
	require.Equal(t, 1, u.DailyStreak)
}

func TestHistoryBounds(t *testing.T) {
	u := NewUser("carol")
	for i := 0; i < HistoryLimit+20; i++ {
		u.RecordResult(Result{Correct: true}, i)
	}
	require.Len(t, u.History, HistoryLimit)
	require.Len(t, u.ResultsHistory, HistoryLimit)
	require.Equal(t, HistoryLimit+19, u.History[len(u.History)-1])

	for i := 0; i < SessionHistoryLimit+5; i++ {
		u.AddSession(session.Summary{})
	}
	require.Len(t, u.Sessions, SessionHistoryLimit)
	require.Equal(t, SessionHistoryLimit+5, u.TotalSessions)
	require.Equal(t, (SessionHistoryLimit+5)/session.BlockSize, u.TrainingBlock)
}
