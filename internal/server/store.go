package server

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrNotFound = errors.New("not found")

// GlobalEvent is the wire shape of an event row. The solution column is
// never serialized; guesses are checked server-side only.
type GlobalEvent struct {
	EventID     string          `json:"eventId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	PuzzleData  json.RawMessage `json:"puzzleData"`
	StartedAt   string          `json:"startedAt"`
	CompletedAt *string         `json:"completedAt"`
	CompletedBy *string         `json:"completedBy"`
	IsActive    bool            `json:"isActive"`
	Rewards     json.RawMessage `json:"rewards"`
}

type TapeUnlock struct {
	TapeID       string  `json:"tapeId"`
	UnlockedAt   string  `json:"unlockedAt"`
	UnlockedBy   *string `json:"unlockedBy"`
	UnlockMethod string  `json:"unlockMethod"`
}

// eventGate is what the completion handler needs before it touches the row.
type eventGate struct {
	Solution  string
	Completed bool
}

type AdminEventRequest struct {
	EventID     string          `json:"eventId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	PuzzleData  json.RawMessage `json:"puzzleData"`
	Solution    string          `json:"solution"`
	Rewards     json.RawMessage `json:"rewards"`
}

type Store interface {
	// CurrentEvent returns the most recently started event that is still
	// active. ErrNotFound when no event is live.
	CurrentEvent(ctx context.Context) (GlobalEvent, error)
	EventByID(ctx context.Context, eventID string) (GlobalEvent, error)
	EventGate(ctx context.Context, eventID string) (eventGate, error)

	// CompleteEvent stamps completed_at/completed_by and clears is_active,
	// but only if the event is still open. Returns false when another
	// solver already closed it.
	CompleteEvent(ctx context.Context, eventID, userID string) (bool, error)

	// RecordCompletion inserts a completion row; a duplicate
	// (event_id, user_id) pair is silently ignored.
	RecordCompletion(ctx context.Context, eventID, userID string, timeTaken int) error

	ListTapeUnlocks(ctx context.Context) ([]TapeUnlock, error)
	InsertTapeUnlock(ctx context.Context, tapeID, userID, method string) (TapeUnlock, error)

	// CreateEvent deactivates any live event and inserts the new one as
	// the single active event.
	CreateEvent(ctx context.Context, req AdminEventRequest) (GlobalEvent, error)
}
