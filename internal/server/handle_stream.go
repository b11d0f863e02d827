package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// handleStream serves a Server-Sent Events feed of change envelopes for one
// table. Clients reconnect on their own; a dropped stream only costs
// freshness, never correctness.
func handleStream(broker *Broker, table string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		ch := broker.Subscribe(table)
		defer broker.Unsubscribe(table, ch)

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case data := <-ch:
				fmt.Fprintf(w, "event: change\ndata: %s\n\n", data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}

// handleStreamWS mirrors both table streams over a single websocket, for
// consumers that cannot hold an SSE connection open.
func handleStreamWS(logger *slog.Logger, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		events := broker.Subscribe(TableEvents)
		defer broker.Unsubscribe(TableEvents, events)
		tapes := broker.Subscribe(TableTapes)
		defer broker.Unsubscribe(TableTapes, tapes)

		ctx := r.Context()
		for {
			var data []byte
			select {
			case <-ctx.Done():
				return
			case data = <-events:
			case data = <-tapes:
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}
