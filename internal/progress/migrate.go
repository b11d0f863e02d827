package progress

import (
	"github.com/showofsouls/broadcast/internal/registry"
)

// Schema history:
//
//	v1 — puzzles, unlockedContent, currentStoryPhase
//	v2 — adds playerId, achievementsEarned, vhsEffectsEnabled, gameStarted
const currentSchemaVersion = 2

type snapshot struct {
	SchemaVersion      int                       `json:"schemaVersion"`
	PlayerID           string                    `json:"playerId"`
	Puzzles            map[string]PuzzleProgress `json:"puzzles"`
	UnlockedContent    map[string]bool           `json:"unlockedContent"`
	AchievementsEarned map[string]bool           `json:"achievementsEarned"`
	CurrentStoryPhase  int                       `json:"currentStoryPhase"`
	VHSEffectsEnabled  bool                      `json:"vhsEffectsEnabled"`
	GameStarted        bool                      `json:"gameStarted"`
}

// migrate maps any stored shape onto the current schema: every new field
// gets its documented default, nil maps are repaired, and puzzles added to
// the catalog since the snapshot was written get fresh records. Existing
// records for ids no longer in the catalog are kept; consumers ignore them.
func migrate(s snapshot, reg *registry.Registry) snapshot {
	if s.Puzzles == nil {
		s.Puzzles = make(map[string]PuzzleProgress)
	}
	if s.UnlockedContent == nil {
		s.UnlockedContent = make(map[string]bool)
	}
	if s.AchievementsEarned == nil {
		s.AchievementsEarned = make(map[string]bool)
	}
	if s.CurrentStoryPhase < 0 {
		s.CurrentStoryPhase = 0
	}

	for _, d := range reg.All() {
		if _, ok := s.Puzzles[d.ID]; !ok {
			s.Puzzles[d.ID] = PuzzleProgress{}
		}
	}

	if s.SchemaVersion < 2 {
		// vhsEffectsEnabled defaults on; pre-v2 players had no toggle.
		s.VHSEffectsEnabled = true
	}

	s.SchemaVersion = currentSchemaVersion
	return s
}
