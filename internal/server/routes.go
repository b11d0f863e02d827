package server

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
)

func addRoutes(r chi.Router, logger *slog.Logger, db *sql.DB, adminToken string, eventWindow time.Duration) {
	store := NewSQLiteStore(db)
	broker := NewBroker()

	r.Get("/healthz", handleHealth(logger, db))

	r.Route("/api", func(r chi.Router) {
		r.Get("/event/current", handleCurrentEvent(logger, store, eventWindow))
		r.Post("/event/{eventID}/complete", handleCompleteEvent(logger, store, broker))
		r.Get("/tapes", handleListTapes(logger, store))
		r.Post("/tapes", handleUnlockTape(logger, store, broker))

		r.Get("/stream/events", handleStream(broker, TableEvents))
		r.Get("/stream/tapes", handleStream(broker, TableTapes))
		r.Get("/stream/ws", handleStreamWS(logger, broker))
	})

	// Operator surface: events are created out-of-band, never by players.
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(adminAuthMiddleware(adminToken))
		r.Post("/events", handleAdminCreateEvent(logger, store, broker))
	})
}
