package server

import (
	"log/slog"
	"net/http"
	"strings"
)

// adminAuthMiddleware guards operator routes with a static bearer token.
// An empty configured token disables the surface entirely.
func adminAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			auth := r.Header.Get("Authorization")
			got, found := strings.CutPrefix(auth, "Bearer ")
			if !found || got != token {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleAdminCreateEvent(logger *slog.Logger, store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdminEventRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.EventID = strings.TrimSpace(req.EventID)
		if req.EventID == "" {
			writeError(w, http.StatusBadRequest, "eventId is required")
			return
		}
		if req.Title == "" {
			writeError(w, http.StatusBadRequest, "title is required")
			return
		}
		if req.Solution == "" {
			writeError(w, http.StatusBadRequest, "solution is required")
			return
		}

		ev, err := store.CreateEvent(r.Context(), req)
		if err != nil {
			logger.Error("creating event", "event_id", req.EventID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		broker.Publish("insert", TableEvents, ev)

		writeJSON(w, http.StatusCreated, ev)
	}
}
