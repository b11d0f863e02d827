package progress

type AchievementID string

const (
	AchievementFirstSolve   AchievementID = "first_solve"
	AchievementMasterSolver AchievementID = "master_solver"
	AchievementStaticSavant AchievementID = "static_savant"
)

type Achievement struct {
	ID          AchievementID
	Name        string
	Description string
}

var AllAchievements = map[AchievementID]Achievement{
	AchievementFirstSolve:   {ID: AchievementFirstSolve, Name: "First Contact", Description: "Solve your first puzzle"},
	AchievementMasterSolver: {ID: AchievementMasterSolver, Name: "Master of the Archive", Description: "Solve every puzzle"},
	AchievementStaticSavant: {ID: AchievementStaticSavant, Name: "Static Savant", Description: "Decode the static cipher in under 45 seconds"},
}

// staticSavant thresholds.
const (
	staticSavantPuzzle  = "caesar_static"
	staticSavantSeconds = 45.0
)
