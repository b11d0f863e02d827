package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable() *Registry {
	return New([]Definition{
		{ID: "a", Difficulty: Easy, Enabled: true},
		{ID: "b", Difficulty: Easy, Enabled: true},
		{ID: "c", Difficulty: Medium, Prerequisites: []string{"a", "b"}, Enabled: true},
		{ID: "d", Difficulty: Medium, Prerequisites: []string{"c"}, Enabled: true},
		{ID: "e", Difficulty: Hard, PhaseGate: 2, Enabled: true},
		{ID: "f", Difficulty: Hard, Enabled: false},
		{ID: "g", Difficulty: Easy, TimeBudget: 60 * time.Second, Enabled: true},
	})
}

func TestAvailablePrerequisites(t *testing.T) {
	r := testTable()

	completed := map[string]bool{"a": true, "b": true}
	avail := r.Available(completed, 1)

	ids := make(map[string]bool)
	for _, d := range avail {
		ids[d.ID] = true
	}

	assert.True(t, ids["c"], "c's prerequisites are satisfied")
	assert.False(t, ids["d"], "d is gated behind incomplete c")
	assert.False(t, ids["e"], "e is gated behind phase 2")
	assert.False(t, ids["f"], "f is disabled")
}

func TestAvailablePhaseGate(t *testing.T) {
	r := testTable()

	avail := r.Available(nil, 2)
	ids := make(map[string]bool)
	for _, d := range avail {
		ids[d.ID] = true
	}
	assert.True(t, ids["e"], "phase 2 opens e")
}

func TestTimeBudgetDifficultyAdjusted(t *testing.T) {
	r := New([]Definition{
		{ID: "easy", Difficulty: Easy, TimeBudget: 100 * time.Second, Enabled: true},
		{ID: "medium", Difficulty: Medium, TimeBudget: 100 * time.Second, Enabled: true},
		{ID: "hard", Difficulty: Hard, TimeBudget: 100 * time.Second, Enabled: true},
		{ID: "untimed", Difficulty: Hard, Enabled: true},
	})

	assert.Equal(t, 100*time.Second, r.TimeBudget("easy"))
	assert.Equal(t, 125*time.Second, r.TimeBudget("medium"))
	assert.Equal(t, 150*time.Second, r.TimeBudget("hard"))
	assert.Zero(t, r.TimeBudget("untimed"))
	assert.Zero(t, r.TimeBudget("unknown"))
}

func TestDefaultCatalog(t *testing.T) {
	r := Default()

	require.Equal(t, 7, r.Total())

	for _, d := range r.All() {
		for _, pre := range d.Prerequisites {
			_, ok := r.ByID(pre)
			require.True(t, ok, "puzzle %s references unknown prerequisite %s", d.ID, pre)
		}
		for _, reward := range d.Rewards {
			assert.NotEmpty(t, reward, "puzzle %s has an empty reward id", d.ID)
		}
	}

	// Catalog entry-point puzzles must exist at phase 0 with no prerequisites.
	avail := r.Available(nil, 0)
	require.NotEmpty(t, avail, "a fresh player must have something to play")
}
