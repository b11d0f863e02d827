package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type CompleteRequest struct {
	UserID    string `json:"userId"`
	TimeTaken int    `json:"timeTaken"`
	Solution  string `json:"solution"`
}

// Completion outcomes. AlreadyCompleted and IncorrectSolution are distinct
// so the player can tell "someone beat you to it" from "try again".
const (
	ResultSolved            = "solved"
	ResultAlreadyCompleted  = "already_completed"
	ResultIncorrectSolution = "incorrect_solution"
)

type CompleteResponse struct {
	Result string       `json:"result"`
	Event  *GlobalEvent `json:"event,omitempty"`
}

func handleCurrentEvent(logger *slog.Logger, store Store, eventWindow time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ev, err := store.CurrentEvent(r.Context())
		if errors.Is(err, ErrNotFound) {
			// No live broadcast is a normal, displayable state.
			writeJSON(w, http.StatusOK, nil)
			return
		}
		if err != nil {
			logger.Error("fetching current event", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		// An unsolved event past its window is over; stop advertising it.
		if started, perr := time.Parse(time.RFC3339, ev.StartedAt); perr == nil {
			if time.Since(started) > eventWindow {
				writeJSON(w, http.StatusOK, nil)
				return
			}
		}
		writeJSON(w, http.StatusOK, ev)
	}
}

func handleCompleteEvent(logger *slog.Logger, store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID := chi.URLParam(r, "eventID")

		var req CompleteRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.UserID == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}
		if req.TimeTaken < 0 {
			req.TimeTaken = 0
		}

		gate, err := store.EventGate(r.Context(), eventID)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		if err != nil {
			logger.Error("loading event", "event_id", eventID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if gate.Completed {
			writeJSON(w, http.StatusConflict, alreadyCompletedResponse(r, logger, store, eventID))
			return
		}

		// Case-sensitive exact match, checked server-side so the solution
		// never crosses the wire.
		if req.Solution != gate.Solution {
			writeJSON(w, http.StatusUnprocessableEntity, CompleteResponse{Result: ResultIncorrectSolution})
			return
		}

		won, err := store.CompleteEvent(r.Context(), eventID, req.UserID)
		if err != nil {
			logger.Error("completing event", "event_id", eventID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !won {
			// Another solver's update landed between the gate check and ours.
			writeJSON(w, http.StatusConflict, alreadyCompletedResponse(r, logger, store, eventID))
			return
		}

		if err := store.RecordCompletion(r.Context(), eventID, req.UserID, req.TimeTaken); err != nil {
			// The event is already closed; a lost completion row is not
			// worth failing the solve over.
			logger.Warn("recording completion", "event_id", eventID, "user_id", req.UserID, "error", err)
		}

		ev, err := store.EventByID(r.Context(), eventID)
		if err != nil {
			logger.Error("reloading completed event", "event_id", eventID, "error", err)
			writeJSON(w, http.StatusOK, CompleteResponse{Result: ResultSolved})
			return
		}

		broker.Publish("update", TableEvents, ev)

		writeJSON(w, http.StatusOK, CompleteResponse{Result: ResultSolved, Event: &ev})
	}
}

// alreadyCompletedResponse attaches the completed event row to the conflict
// answer so a losing client learns who solved it even when its realtime
// channel is down. A failed reload degrades to the bare result.
func alreadyCompletedResponse(r *http.Request, logger *slog.Logger, store Store, eventID string) CompleteResponse {
	resp := CompleteResponse{Result: ResultAlreadyCompleted}
	ev, err := store.EventByID(r.Context(), eventID)
	if err != nil {
		logger.Warn("loading completed event", "event_id", eventID, "error", err)
		return resp
	}
	resp.Event = &ev
	return resp
}
