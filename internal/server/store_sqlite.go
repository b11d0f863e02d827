package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const eventColumns = `event_id, title, description, puzzle_data, started_at, completed_at, completed_by, is_active, rewards`

func scanEvent(row *sql.Row) (GlobalEvent, error) {
	var ev GlobalEvent
	var puzzleData, rewards string
	var completedAt, completedBy sql.NullString
	var isActive int
	err := row.Scan(&ev.EventID, &ev.Title, &ev.Description, &puzzleData,
		&ev.StartedAt, &completedAt, &completedBy, &isActive, &rewards)
	if err != nil {
		return ev, err
	}
	ev.PuzzleData = []byte(puzzleData)
	ev.Rewards = []byte(rewards)
	if completedAt.Valid {
		ev.CompletedAt = &completedAt.String
	}
	if completedBy.Valid {
		ev.CompletedBy = &completedBy.String
	}
	ev.IsActive = isActive != 0
	return ev, nil
}

func (s *SQLiteStore) CurrentEvent(ctx context.Context) (GlobalEvent, error) {
	// Benign duplicate actives are tolerated by always taking the latest.
	ev, err := scanEvent(s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM global_events
		WHERE is_active = 1
		ORDER BY started_at DESC
		LIMIT 1
	`))
	if errors.Is(err, sql.ErrNoRows) {
		return ev, ErrNotFound
	}
	return ev, err
}

func (s *SQLiteStore) EventByID(ctx context.Context, eventID string) (GlobalEvent, error) {
	ev, err := scanEvent(s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM global_events WHERE event_id = ?
	`, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return ev, ErrNotFound
	}
	return ev, err
}

func (s *SQLiteStore) EventGate(ctx context.Context, eventID string) (eventGate, error) {
	var g eventGate
	var completedAt sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT solution, completed_at FROM global_events WHERE event_id = ?
	`, eventID).Scan(&g.Solution, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return g, ErrNotFound
	}
	g.Completed = completedAt.Valid
	return g, err
}

func (s *SQLiteStore) CompleteEvent(ctx context.Context, eventID, userID string) (bool, error) {
	// The WHERE clause is the serialization point: only the first solver's
	// update finds completed_at still NULL.
	result, err := s.db.ExecContext(ctx, `
		UPDATE global_events
		SET completed_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now'),
			completed_by = ?,
			is_active = 0
		WHERE event_id = ? AND completed_at IS NULL
	`, userID, eventID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) RecordCompletion(ctx context.Context, eventID, userID string, timeTaken int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO event_completions (event_id, user_id, time_taken)
		VALUES (?, ?, ?)
	`, eventID, userID, timeTaken)
	return err
}

func (s *SQLiteStore) ListTapeUnlocks(ctx context.Context) ([]TapeUnlock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tape_id, unlocked_at, unlocked_by, unlock_method
		FROM tape_unlocks
		ORDER BY unlocked_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	unlocks := []TapeUnlock{}
	for rows.Next() {
		var tu TapeUnlock
		var unlockedBy sql.NullString
		if err := rows.Scan(&tu.TapeID, &tu.UnlockedAt, &unlockedBy, &tu.UnlockMethod); err != nil {
			return nil, err
		}
		if unlockedBy.Valid {
			tu.UnlockedBy = &unlockedBy.String
		}
		unlocks = append(unlocks, tu)
	}
	return unlocks, rows.Err()
}

func (s *SQLiteStore) InsertTapeUnlock(ctx context.Context, tapeID, userID, method string) (TapeUnlock, error) {
	var tu TapeUnlock
	var unlockedBy sql.NullString
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tape_unlocks (tape_id, unlocked_by, unlock_method)
		VALUES (?, NULLIF(?, ''), ?)
		RETURNING tape_id, unlocked_at, unlocked_by, unlock_method
	`, tapeID, userID, method).Scan(&tu.TapeID, &tu.UnlockedAt, &unlockedBy, &tu.UnlockMethod)
	if err != nil {
		return tu, err
	}
	if unlockedBy.Valid {
		tu.UnlockedBy = &unlockedBy.String
	}
	return tu, nil
}

func (s *SQLiteStore) CreateEvent(ctx context.Context, req AdminEventRequest) (GlobalEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return GlobalEvent{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE global_events SET is_active = 0 WHERE is_active = 1
	`); err != nil {
		return GlobalEvent{}, fmt.Errorf("deactivating previous events: %w", err)
	}

	puzzleData := string(req.PuzzleData)
	if puzzleData == "" {
		puzzleData = "{}"
	}
	rewards := string(req.Rewards)
	if rewards == "" {
		rewards = "{}"
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO global_events (event_id, title, description, puzzle_data, solution, started_at, rewards)
		VALUES (?, ?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'), ?)
	`, req.EventID, req.Title, req.Description, puzzleData, req.Solution, rewards); err != nil {
		return GlobalEvent{}, fmt.Errorf("inserting event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return GlobalEvent{}, err
	}
	return s.EventByID(ctx, req.EventID)
}
