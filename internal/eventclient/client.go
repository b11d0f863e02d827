// Package eventclient is the sole boundary between the site logic and the
// remote event/unlock service. It shapes requests, normalizes failures, and
// nothing else: callers receive nil/empty fallbacks or a discriminated
// outcome, never a raw transport error.
package eventclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type GlobalEvent struct {
	EventID     string          `json:"eventId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	PuzzleData  json.RawMessage `json:"puzzleData"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt"`
	CompletedBy *string         `json:"completedBy"`
	IsActive    bool            `json:"isActive"`
	Rewards     json.RawMessage `json:"rewards"`
}

type TapeUnlock struct {
	TapeID       string    `json:"tapeId"`
	UnlockedAt   time.Time `json:"unlockedAt"`
	UnlockedBy   *string   `json:"unlockedBy"`
	UnlockMethod string    `json:"unlockMethod"`
}

// Outcome discriminates the ways a completion attempt can resolve, so
// callers cannot conflate "wrong answer" with "too late".
type Outcome string

const (
	Solved            Outcome = "solved"
	AlreadyCompleted  Outcome = "already_completed"
	IncorrectSolution Outcome = "incorrect_solution"
	EventNotFound     Outcome = "event_not_found"
	RemoteUnavailable Outcome = "remote_unavailable"
)

type CompleteResult struct {
	Outcome Outcome
	Event   *GlobalEvent
}

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	logger  *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.ServiceURL,
		apiKey:  cfg.ServiceKey,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Service-Key", c.apiKey)
	}
	return req, nil
}

// CurrentEvent fetches the most recently started active event. Absence of
// an event and any remote failure both come back as nil: the caller always
// has a displayable "no active event" state.
func (c *Client) CurrentEvent(ctx context.Context) *GlobalEvent {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/event/current", nil)
	if err != nil {
		c.logger.Error("building current event request", "error", err)
		return nil
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Error("fetching current event", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("fetching current event", "status", resp.StatusCode)
		return nil
	}

	var ev *GlobalEvent
	if err := json.NewDecoder(resp.Body).Decode(&ev); err != nil {
		c.logger.Error("decoding current event", "error", err)
		return nil
	}
	return ev
}

type completeRequest struct {
	UserID    string `json:"userId"`
	TimeTaken int    `json:"timeTaken"`
	Solution  string `json:"solution"`
}

type completeResponse struct {
	Result string       `json:"result"`
	Event  *GlobalEvent `json:"event"`
}

// CompleteEvent submits a solution guess. The server is the single
// serialization point for the first-to-solve race; its answer is
// authoritative regardless of what this client believes locally.
func (c *Client) CompleteEvent(ctx context.Context, eventID, userID string, timeTaken int, guess string) CompleteResult {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/event/"+eventID+"/complete", completeRequest{
		UserID:    userID,
		TimeTaken: timeTaken,
		Solution:  guess,
	})
	if err != nil {
		c.logger.Error("building completion request", "error", err)
		return CompleteResult{Outcome: RemoteUnavailable}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Error("submitting completion", "event_id", eventID, "error", err)
		return CompleteResult{Outcome: RemoteUnavailable}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body completeResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			c.logger.Error("decoding completion response", "error", err)
			return CompleteResult{Outcome: Solved}
		}
		return CompleteResult{Outcome: Solved, Event: body.Event}
	case http.StatusConflict:
		// The conflict body carries the completed row, so the caller can
		// show who won without another round trip.
		var body completeResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return CompleteResult{Outcome: AlreadyCompleted}
		}
		return CompleteResult{Outcome: AlreadyCompleted, Event: body.Event}
	case http.StatusUnprocessableEntity:
		return CompleteResult{Outcome: IncorrectSolution}
	case http.StatusNotFound:
		return CompleteResult{Outcome: EventNotFound}
	default:
		c.logger.Error("submitting completion", "event_id", eventID, "status", resp.StatusCode)
		return CompleteResult{Outcome: RemoteUnavailable}
	}
}

// UnlockedTapes fetches all tape unlocks, oldest first. Failures degrade to
// an empty list.
func (c *Client) UnlockedTapes(ctx context.Context) []TapeUnlock {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/tapes", nil)
	if err != nil {
		c.logger.Error("building tape list request", "error", err)
		return nil
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Error("fetching tape unlocks", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("fetching tape unlocks", "status", resp.StatusCode)
		return nil
	}

	var unlocks []TapeUnlock
	if err := json.NewDecoder(resp.Body).Decode(&unlocks); err != nil {
		c.logger.Error("decoding tape unlocks", "error", err)
		return nil
	}
	return unlocks
}

type unlockRequest struct {
	TapeID string `json:"tapeId"`
	UserID string `json:"userId"`
	Method string `json:"method"`
}

func (c *Client) UnlockTape(ctx context.Context, tapeID, userID, method string) (*TapeUnlock, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/tapes", unlockRequest{
		TapeID: tapeID,
		UserID: userID,
		Method: method,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Error("unlocking tape", "tape_id", tapeID, "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		c.logger.Error("unlocking tape", "tape_id", tapeID, "status", resp.StatusCode)
		return nil, fmt.Errorf("unlocking tape %s: status %d", tapeID, resp.StatusCode)
	}

	var tu TapeUnlock
	if err := json.NewDecoder(resp.Body).Decode(&tu); err != nil {
		return nil, fmt.Errorf("decoding tape unlock: %w", err)
	}
	return &tu, nil
}
