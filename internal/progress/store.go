// Package progress is the per-player durable record of the puzzle journey.
// It is exclusively owned by one player; nothing here is shared or synced
// across devices.
package progress

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/showofsouls/broadcast/internal/registry"
)

const storageFile = "sos-game-storage.json"

type PuzzleProgress struct {
	Completed   bool           `json:"completed"`
	Attempts    int            `json:"attempts"`
	BestTime    *float64       `json:"bestTime"` // seconds
	LastAttempt *time.Time     `json:"lastAttempt"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type Stats struct {
	Completed  int
	Total      int
	Percentage float64
	Attempts   int
}

type Store struct {
	mu     sync.Mutex
	path   string
	reg    *registry.Registry
	clock  func() time.Time
	logger *slog.Logger
	s      snapshot
}

// Open loads (or initializes) the progress file under dataDir. A missing or
// outdated file is migrated to the current schema rather than rejected.
func Open(dataDir string, reg *registry.Registry, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	st := &Store{
		path:   filepath.Join(dataDir, storageFile),
		reg:    reg,
		clock:  time.Now,
		logger: logger,
	}
	if err := st.load(); err != nil {
		return nil, err
	}
	return st, nil
}

func (st *Store) load() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	b, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			st.s = st.defaultSnapshot()
			st.saveLocked()
			return nil
		}
		return err
	}

	var loaded snapshot
	if err := json.Unmarshal(b, &loaded); err != nil {
		// A corrupt file is replaced, not fatal: the player restarts rather
		// than the site crashing on load.
		st.logger.Warn("progress file corrupt, resetting", "path", st.path, "error", err)
		st.s = st.defaultSnapshot()
		st.saveLocked()
		return nil
	}

	st.s = migrate(loaded, st.reg)
	if st.s.PlayerID == "" {
		st.s.PlayerID = uuid.NewString()
	}
	st.saveLocked()
	return nil
}

func (st *Store) defaultSnapshot() snapshot {
	s := snapshot{
		SchemaVersion:      currentSchemaVersion,
		PlayerID:           uuid.NewString(),
		Puzzles:            make(map[string]PuzzleProgress),
		UnlockedContent:    make(map[string]bool),
		AchievementsEarned: make(map[string]bool),
		VHSEffectsEnabled:  true,
	}
	for _, d := range st.reg.All() {
		s.Puzzles[d.ID] = PuzzleProgress{}
	}
	return s
}

func (st *Store) saveLocked() {
	b, err := json.MarshalIndent(st.s, "", "  ")
	if err != nil {
		st.logger.Warn("encoding progress", "error", err)
		return
	}
	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		st.logger.Warn("writing progress", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, st.path); err != nil {
		st.logger.Warn("replacing progress file", "path", st.path, "error", err)
	}
}

// PlayerID is the stable anonymous identifier generated on first load.
func (st *Store) PlayerID() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.PlayerID
}

// CompletePuzzle marks a puzzle completed, stamps the attempt time, merges
// metadata, and improves bestTime when a lower metadata "time" (seconds) is
// supplied. Unknown puzzle ids are ignored; re-completion updates metadata
// but never regresses bestTime or clears completion.
func (st *Store) CompletePuzzle(puzzleID string, metadata map[string]any) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.reg.ByID(puzzleID); !ok {
		return
	}

	p := st.s.Puzzles[puzzleID]
	p.Completed = true
	now := st.clock()
	p.LastAttempt = &now

	if p.Metadata == nil {
		p.Metadata = make(map[string]any)
	}
	for k, v := range metadata {
		p.Metadata[k] = v
	}

	if t, ok := asSeconds(metadata["time"]); ok {
		if p.BestTime == nil || t < *p.BestTime {
			p.BestTime = &t
		}
	}

	st.s.Puzzles[puzzleID] = p

	st.checkAchievementsLocked()
	st.updateStoryPhaseLocked()
	st.saveLocked()
}

// asSeconds coerces the permissive metadata value; anything that isn't a
// non-negative number is treated as absent.
func asSeconds(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, n >= 0
	case int:
		return float64(n), n >= 0
	case time.Duration:
		return n.Seconds(), n >= 0
	default:
		return 0, false
	}
}

func (st *Store) IncrementAttempts(puzzleID string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.reg.ByID(puzzleID); !ok {
		return
	}
	p := st.s.Puzzles[puzzleID]
	p.Attempts++
	st.s.Puzzles[puzzleID] = p
	st.saveLocked()
}

func (st *Store) UnlockContent(contentID string) {
	if contentID == "" {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s.UnlockedContent[contentID] {
		return
	}
	st.s.UnlockedContent[contentID] = true
	st.saveLocked()
}

func (st *Store) EarnAchievement(id AchievementID) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.earnAchievementLocked(id) {
		st.saveLocked()
	}
}

func (st *Store) earnAchievementLocked(id AchievementID) bool {
	if _, ok := AllAchievements[id]; !ok {
		return false
	}
	if st.s.AchievementsEarned[string(id)] {
		return false
	}
	st.s.AchievementsEarned[string(id)] = true
	return true
}

// checkAchievementsLocked re-derives grants from current state. Safe to run
// redundantly: grants are idempotent.
func (st *Store) checkAchievementsLocked() {
	completed := st.completedCountLocked()

	if completed >= 1 {
		st.earnAchievementLocked(AchievementFirstSolve)
	}
	if completed >= st.reg.Total() {
		st.earnAchievementLocked(AchievementMasterSolver)
	}
	if p, ok := st.s.Puzzles[staticSavantPuzzle]; ok && p.BestTime != nil && *p.BestTime < staticSavantSeconds {
		st.earnAchievementLocked(AchievementStaticSavant)
	}
}

// Story phase thresholds on completed-puzzle count.
func phaseFor(completed int) int {
	switch {
	case completed >= 6:
		return 3
	case completed >= 3:
		return 2
	case completed >= 1:
		return 1
	default:
		return 0
	}
}

// updateStoryPhaseLocked recomputes the phase from completions. The stored
// phase only ever increases.
func (st *Store) updateStoryPhaseLocked() {
	if phase := phaseFor(st.completedCountLocked()); phase > st.s.CurrentStoryPhase {
		st.s.CurrentStoryPhase = phase
	}
}

func (st *Store) completedCountLocked() int {
	n := 0
	for _, p := range st.s.Puzzles {
		if p.Completed {
			n++
		}
	}
	return n
}

// ResetProgress restores every puzzle to its uncompleted default and clears
// all derived state in one step.
func (st *Store) ResetProgress() {
	st.mu.Lock()
	defer st.mu.Unlock()

	playerID := st.s.PlayerID
	vhs := st.s.VHSEffectsEnabled
	st.s = st.defaultSnapshot()
	st.s.PlayerID = playerID
	st.s.VHSEffectsEnabled = vhs
	st.saveLocked()
}

func (st *Store) Puzzle(puzzleID string) (PuzzleProgress, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	p, ok := st.s.Puzzles[puzzleID]
	return p, ok
}

func (st *Store) CompletedPuzzles() map[string]bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string]bool)
	for id, p := range st.s.Puzzles {
		if p.Completed {
			out[id] = true
		}
	}
	return out
}

func (st *Store) HasContent(contentID string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.UnlockedContent[contentID]
}

func (st *Store) HasAchievement(id AchievementID) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.AchievementsEarned[string(id)]
}

func (st *Store) StoryPhase() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.CurrentStoryPhase
}

func (st *Store) GetPuzzleStats() Stats {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := Stats{Total: st.reg.Total()}
	for _, p := range st.s.Puzzles {
		if p.Completed {
			s.Completed++
		}
		s.Attempts += p.Attempts
	}
	if s.Total > 0 {
		s.Percentage = float64(s.Completed) / float64(s.Total) * 100
	}
	return s
}

func (st *Store) SetVHSEffects(enabled bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.VHSEffectsEnabled = enabled
	st.saveLocked()
}

func (st *Store) VHSEffects() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.VHSEffectsEnabled
}

func (st *Store) MarkGameStarted() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s.GameStarted {
		return
	}
	st.s.GameStarted = true
	st.saveLocked()
}

func (st *Store) GameStarted() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.GameStarted
}
