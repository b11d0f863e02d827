package server

import (
	"log/slog"
	"net/http"
	"strings"
)

type UnlockTapeRequest struct {
	TapeID string `json:"tapeId"`
	UserID string `json:"userId"`
	Method string `json:"method"`
}

func handleListTapes(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unlocks, err := store.ListTapeUnlocks(r.Context())
		if err != nil {
			logger.Error("listing tape unlocks", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, unlocks)
	}
}

func handleUnlockTape(logger *slog.Logger, store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UnlockTapeRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.TapeID = strings.TrimSpace(req.TapeID)
		if req.TapeID == "" {
			writeError(w, http.StatusBadRequest, "tapeId is required")
			return
		}
		if req.Method == "" {
			req.Method = "puzzle_completion"
		}

		tu, err := store.InsertTapeUnlock(r.Context(), req.TapeID, req.UserID, req.Method)
		if err != nil {
			logger.Error("inserting tape unlock", "tape_id", req.TapeID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		broker.Publish("insert", TableTapes, tu)

		writeJSON(w, http.StatusCreated, tu)
	}
}
