package progress

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showofsouls/broadcast/internal/registry"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := Open(t.TempDir(), registry.Default(), logger)
	require.NoError(t, err)
	return st
}

func TestCompletePuzzle(t *testing.T) {
	st := testStore(t)

	st.CompletePuzzle("terminal_access", map[string]any{"time": 30.0, "hintsUsed": 1})

	p, ok := st.Puzzle("terminal_access")
	require.True(t, ok)
	assert.True(t, p.Completed)
	require.NotNil(t, p.BestTime)
	assert.Equal(t, 30.0, *p.BestTime)
	assert.NotNil(t, p.LastAttempt)
	assert.Equal(t, 1, p.Metadata["hintsUsed"])
}

func TestBestTimeOnlyImproves(t *testing.T) {
	st := testStore(t)

	st.CompletePuzzle("terminal_access", map[string]any{"time": 40.0})
	st.CompletePuzzle("terminal_access", map[string]any{"time": 25.0})

	p, _ := st.Puzzle("terminal_access")
	require.NotNil(t, p.BestTime)
	assert.Equal(t, 25.0, *p.BestTime, "lower time becomes the best")

	st.CompletePuzzle("terminal_access", map[string]any{"time": 99.0})
	p, _ = st.Puzzle("terminal_access")
	assert.Equal(t, 25.0, *p.BestTime, "higher time leaves the best unchanged")
	assert.True(t, p.Completed, "re-completion never clears completed")
}

func TestCompletePuzzleUnknownID(t *testing.T) {
	st := testStore(t)

	st.CompletePuzzle("not_a_puzzle", map[string]any{"time": 10.0})
	st.IncrementAttempts("not_a_puzzle")

	stats := st.GetPuzzleStats()
	assert.Zero(t, stats.Completed)
	assert.Zero(t, stats.Attempts)
}

func TestCompletePuzzleMalformedTime(t *testing.T) {
	st := testStore(t)

	st.CompletePuzzle("terminal_access", map[string]any{"time": "fast"})
	p, _ := st.Puzzle("terminal_access")
	assert.True(t, p.Completed)
	assert.Nil(t, p.BestTime, "non-numeric time is ignored")

	st.CompletePuzzle("terminal_access", map[string]any{"time": -5.0})
	p, _ = st.Puzzle("terminal_access")
	assert.Nil(t, p.BestTime, "negative time is ignored")
}

func TestIncrementAttempts(t *testing.T) {
	st := testStore(t)

	st.IncrementAttempts("signal_memory")
	st.IncrementAttempts("signal_memory")

	p, _ := st.Puzzle("signal_memory")
	assert.Equal(t, 2, p.Attempts)
}

func TestUnlockContentIdempotent(t *testing.T) {
	st := testStore(t)

	st.UnlockContent("audio_log_01")
	st.UnlockContent("audio_log_01")

	assert.True(t, st.HasContent("audio_log_01"))

	// Set semantics in the persisted form too: one key, not duplicates.
	b, err := os.ReadFile(st.path)
	require.NoError(t, err)
	var raw struct {
		UnlockedContent map[string]bool `json:"unlockedContent"`
	}
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Len(t, raw.UnlockedContent, 1)
}

func TestAchievements(t *testing.T) {
	st := testStore(t)

	assert.False(t, st.HasAchievement(AchievementFirstSolve))

	st.CompletePuzzle("terminal_access", nil)
	assert.True(t, st.HasAchievement(AchievementFirstSolve))

	// Speed achievement for the cipher puzzle under threshold.
	st.CompletePuzzle("caesar_static", map[string]any{"time": 30.0})
	assert.True(t, st.HasAchievement(AchievementStaticSavant))

	for _, d := range registry.Default().All() {
		st.CompletePuzzle(d.ID, nil)
	}
	assert.True(t, st.HasAchievement(AchievementMasterSolver))
}

func TestSpeedAchievementOverThreshold(t *testing.T) {
	st := testStore(t)

	st.CompletePuzzle("caesar_static", map[string]any{"time": 60.0})
	assert.False(t, st.HasAchievement(AchievementStaticSavant))
}

func TestStoryPhaseThresholds(t *testing.T) {
	st := testStore(t)
	ids := []string{"terminal_access", "signal_memory", "vhs_splice", "caesar_static", "control_room", "archive_vault", "final_broadcast"}

	wantPhase := []int{1, 1, 2, 2, 2, 3, 3}
	prev := 0
	for i, id := range ids {
		st.CompletePuzzle(id, nil)
		phase := st.StoryPhase()
		assert.Equal(t, wantPhase[i], phase, "after %d completions", i+1)
		assert.GreaterOrEqual(t, phase, prev, "phase never decreases")
		prev = phase
	}
}

func TestResetProgress(t *testing.T) {
	st := testStore(t)
	playerID := st.PlayerID()

	st.CompletePuzzle("terminal_access", map[string]any{"time": 10.0})
	st.UnlockContent("doc_intake_memo")
	st.MarkGameStarted()

	st.ResetProgress()

	stats := st.GetPuzzleStats()
	assert.Zero(t, stats.Completed)
	assert.Zero(t, stats.Percentage)
	assert.False(t, st.HasContent("doc_intake_memo"))
	assert.False(t, st.HasAchievement(AchievementFirstSolve))
	assert.Zero(t, st.StoryPhase())
	assert.False(t, st.GameStarted())
	assert.Equal(t, playerID, st.PlayerID(), "identity survives a reset")
}

func TestGetPuzzleStats(t *testing.T) {
	st := testStore(t)

	st.CompletePuzzle("terminal_access", nil)
	st.CompletePuzzle("signal_memory", nil)
	st.IncrementAttempts("vhs_splice")
	st.IncrementAttempts("vhs_splice")
	st.IncrementAttempts("caesar_static")

	stats := st.GetPuzzleStats()
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 7, stats.Total)
	assert.InDelta(t, 200.0/7.0, stats.Percentage, 0.01)
	assert.Equal(t, 3, stats.Attempts)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.Default()

	st, err := Open(dir, reg, logger)
	require.NoError(t, err)
	st.CompletePuzzle("terminal_access", map[string]any{"time": 12.0})
	st.SetVHSEffects(false)
	playerID := st.PlayerID()

	reopened, err := Open(dir, reg, logger)
	require.NoError(t, err)

	p, _ := reopened.Puzzle("terminal_access")
	assert.True(t, p.Completed)
	assert.False(t, reopened.VHSEffects())
	assert.Equal(t, playerID, reopened.PlayerID())
}

func TestMigrateOldSnapshot(t *testing.T) {
	dir := t.TempDir()
	old := map[string]any{
		"schemaVersion": 1,
		"puzzles": map[string]any{
			"terminal_access": map[string]any{"completed": true, "attempts": 3},
			"retired_puzzle":  map[string]any{"completed": true},
		},
		"currentStoryPhase": 1,
	}
	b, _ := json.Marshal(old)
	require.NoError(t, os.WriteFile(filepath.Join(dir, storageFile), b, 0o644))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := Open(dir, registry.Default(), logger)
	require.NoError(t, err)

	p, _ := st.Puzzle("terminal_access")
	assert.True(t, p.Completed, "old data survives migration")
	assert.NotEmpty(t, st.PlayerID(), "playerId backfilled")
	assert.True(t, st.VHSEffects(), "vhs toggle defaults on for pre-v2 snapshots")
	assert.Equal(t, 1, st.StoryPhase())

	// New catalog entries get fresh records.
	_, ok := st.Puzzle("final_broadcast")
	assert.True(t, ok)
}

func TestCorruptFileResets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, storageFile), []byte("{not json"), 0o644))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := Open(dir, registry.Default(), logger)
	require.NoError(t, err)
	assert.Zero(t, st.GetPuzzleStats().Completed)
}

func TestStoryPhaseNonDecreasingAnyOrder(t *testing.T) {
	// Phase monotonicity holds for every completion order.
	ids := []string{"terminal_access", "signal_memory", "vhs_splice", "caesar_static"}
	orders := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 3, 0, 2}}

	for _, order := range orders {
		st := testStore(t)
		prev := 0
		for _, i := range order {
			st.CompletePuzzle(ids[i], nil)
			phase := st.StoryPhase()
			require.GreaterOrEqual(t, phase, prev)
			prev = phase
		}
	}
}

func TestLastAttemptStamped(t *testing.T) {
	st := testStore(t)
	before := time.Now().Add(-time.Second)

	st.CompletePuzzle("terminal_access", nil)

	p, _ := st.Puzzle("terminal_access")
	require.NotNil(t, p.LastAttempt)
	assert.True(t, p.LastAttempt.After(before))
}
