package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showofsouls/broadcast/internal/registry"
)

// fakeStore records write-throughs without touching disk.
type fakeStore struct {
	completed map[string]map[string]any
	attempts  map[string]int
	unlocked  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		completed: make(map[string]map[string]any),
		attempts:  make(map[string]int),
	}
}

func (f *fakeStore) CompletePuzzle(id string, meta map[string]any) { f.completed[id] = meta }
func (f *fakeStore) IncrementAttempts(id string)                   { f.attempts[id]++ }
func (f *fakeStore) UnlockContent(id string)                       { f.unlocked = append(f.unlocked, id) }

func testRegistry() *registry.Registry {
	return registry.New([]registry.Definition{
		{ID: "timed", Difficulty: registry.Easy, TimeBudget: 60 * time.Second, Rewards: []string{"doc_a", "doc_b"}, Enabled: true},
		{ID: "untimed", Difficulty: registry.Hard, Rewards: []string{"doc_c"}, Enabled: true},
	})
}

func newTestSession(t *testing.T, id string, onComplete func(map[string]any)) (*Session, *fakeStore, *FakeClock) {
	t.Helper()
	reg := testRegistry()
	store := newFakeStore()
	clock := NewFakeClock(time.Date(2026, 8, 29, 20, 0, 0, 0, time.UTC))
	s, err := NewSession(reg, store, id, clock, onComplete)
	require.NoError(t, err)
	return s, store, clock
}

func TestUnknownPuzzle(t *testing.T) {
	reg := testRegistry()
	_, err := NewSession(reg, newFakeStore(), "nope", nil, nil)
	assert.Error(t, err)
}

func TestStartFromIdleOnly(t *testing.T) {
	s, _, _ := newTestSession(t, "timed", nil)

	assert.Equal(t, StateIdle, s.State())
	s.Start()
	assert.Equal(t, StateActive, s.State())

	s.HandleFailure()
	s.Start() // failed, not idle: no-op
	assert.Equal(t, StateFailed, s.State())
}

func TestSuccessWritesThrough(t *testing.T) {
	var calls int
	s, store, clock := newTestSession(t, "timed", func(meta map[string]any) { calls++ })

	s.Start()
	clock.Advance(17 * time.Second)
	s.HandleSuccess(map[string]any{"hintsUsed": 2})

	assert.Equal(t, StateSuccess, s.State())
	require.Contains(t, store.completed, "timed")
	meta := store.completed["timed"]
	assert.Equal(t, 17.0, meta["time"])
	assert.Equal(t, 2, meta["hintsUsed"])
	assert.Equal(t, "easy", meta["difficulty"])
	assert.Equal(t, []string{"doc_a", "doc_b"}, store.unlocked)
	assert.Equal(t, 1, calls)
}

func TestSuccessIdempotent(t *testing.T) {
	var calls int
	s, store, _ := newTestSession(t, "timed", func(map[string]any) { calls++ })

	s.Start()
	s.HandleSuccess(nil)
	s.HandleSuccess(nil) // double-fire from overlapping UI triggers

	assert.Equal(t, 1, calls)
	assert.Len(t, store.unlocked, 2, "rewards unlocked once")
}

func TestFailureIncrementsAttempts(t *testing.T) {
	s, store, _ := newTestSession(t, "timed", nil)

	s.Start()
	s.HandleFailure()

	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, 1, store.attempts["timed"])
	assert.Empty(t, store.completed)
}

func TestFailureAutoReturnsToIdle(t *testing.T) {
	s, _, clock := newTestSession(t, "timed", nil)

	s.Start()
	s.HandleFailure()

	clock.Advance(1 * time.Second)
	s.Tick()
	assert.Equal(t, StateFailed, s.State(), "still inside retry delay")

	clock.Advance(retryDelay)
	s.Tick()
	assert.Equal(t, StateIdle, s.State())
}

func TestTimeout(t *testing.T) {
	s, store, clock := newTestSession(t, "timed", nil)

	s.Start()
	left, ok := s.Remaining()
	require.True(t, ok)
	assert.Equal(t, 60*time.Second, left)

	clock.Advance(59 * time.Second)
	s.Tick()
	assert.Equal(t, StateActive, s.State())

	clock.Advance(1 * time.Second)
	s.Tick()
	assert.Equal(t, StateTimeout, s.State())
	assert.Equal(t, 1, store.attempts["timed"], "timeout counts as a failed attempt")
}

func TestSuccessAfterTimeoutIgnored(t *testing.T) {
	s, store, clock := newTestSession(t, "timed", nil)

	s.Start()
	clock.Advance(61 * time.Second)
	s.Tick()
	require.Equal(t, StateTimeout, s.State())

	s.HandleSuccess(nil)
	assert.Empty(t, store.completed)
}

func TestUntimedNeverTimesOut(t *testing.T) {
	s, _, clock := newTestSession(t, "untimed", nil)

	s.Start()
	_, ok := s.Remaining()
	assert.False(t, ok)

	clock.Advance(24 * time.Hour)
	s.Tick()
	assert.Equal(t, StateActive, s.State())
}

func TestResetRederivesBudget(t *testing.T) {
	s, _, clock := newTestSession(t, "timed", nil)

	s.Start()
	clock.Advance(30 * time.Second)
	s.Reset()
	assert.Equal(t, StateIdle, s.State())

	s.Start()
	left, ok := s.Remaining()
	require.True(t, ok)
	assert.Equal(t, 60*time.Second, left, "fresh budget after reset")
}
