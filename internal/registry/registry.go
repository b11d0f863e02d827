// Package registry holds the static puzzle catalog: metadata only, no
// runtime state.
package registry

import "time"

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

type Definition struct {
	ID            string
	Name          string
	Description   string
	Difficulty    Difficulty
	PhaseGate     int      // minimum story phase before the puzzle appears
	Prerequisites []string // all must be completed first
	Rewards       []string // content ids granted on completion
	TimeBudget    time.Duration
	Enabled       bool
}

type Registry struct {
	defs []Definition
	byID map[string]Definition
}

func New(defs []Definition) *Registry {
	byID := make(map[string]Definition, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}
	return &Registry{defs: defs, byID: byID}
}

func (r *Registry) ByID(id string) (Definition, bool) {
	d, ok := r.byID[id]
	return d, ok
}

func (r *Registry) All() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

func (r *Registry) Total() int {
	return len(r.defs)
}

// Available returns the puzzles a player can attempt: enabled, story-phase
// gate met, and every prerequisite already completed.
func (r *Registry) Available(completed map[string]bool, phase int) []Definition {
	var out []Definition
	for _, d := range r.defs {
		if !d.Enabled || d.PhaseGate > phase {
			continue
		}
		ok := true
		for _, pre := range d.Prerequisites {
			if !completed[pre] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, d)
		}
	}
	return out
}

// Difficulty widens the nominal time budget; harder puzzles get more room.
var budgetFactor = map[Difficulty]float64{
	Easy:   1.0,
	Medium: 1.25,
	Hard:   1.5,
}

// TimeBudget returns the difficulty-adjusted time budget for a puzzle, or
// zero for untimed or unknown puzzles.
func (r *Registry) TimeBudget(id string) time.Duration {
	d, ok := r.byID[id]
	if !ok || d.TimeBudget <= 0 {
		return 0
	}
	f, ok := budgetFactor[d.Difficulty]
	if !ok {
		f = 1.0
	}
	return time.Duration(float64(d.TimeBudget) * f)
}
