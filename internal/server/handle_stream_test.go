package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

func streamServer(t *testing.T) (*httptest.Server, *Broker) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	broker := NewBroker()

	r := chi.NewRouter()
	r.Get("/api/stream/events", handleStream(broker, TableEvents))
	r.Get("/api/stream/tapes", handleStream(broker, TableTapes))
	r.Get("/api/stream/ws", handleStreamWS(logger, broker))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, broker
}

func TestStreamSSE(t *testing.T) {
	srv, broker := streamServer(t)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream/events", nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("opening stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	// Publish once the subscriber is registered; the broker drops blind.
	go func() {
		for i := 0; i < 50; i++ {
			broker.Publish("update", TableEvents, GlobalEvent{EventID: "EVT-001"})
			time.Sleep(10 * time.Millisecond)
		}
	}()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var env Envelope
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &env); err != nil {
			t.Fatalf("decoding envelope: %v", err)
		}
		if env.Table != TableEvents || env.Op != "update" {
			t.Errorf("got %s on %s", env.Op, env.Table)
		}
		return
	}
	t.Fatalf("stream ended without an envelope: %v", scanner.Err())
}

func TestStreamWS(t *testing.T) {
	srv, broker := streamServer(t)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer conn.CloseNow()

	go func() {
		for i := 0; i < 50; i++ {
			broker.Publish("insert", TableTapes, TapeUnlock{TapeID: "TAPE-004"})
			time.Sleep(10 * time.Millisecond)
		}
	}()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if env.Table != TableTapes || env.Op != "insert" {
		t.Errorf("got %s on %s", env.Op, env.Table)
	}
}
