package eventclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Envelope is one change notification from a table stream.
type Envelope struct {
	Table string          `json:"table"`
	Op    string          `json:"op"` // insert, update, delete
	Row   json.RawMessage `json:"row"`
}

// SubscribeEvents opens the event-table change stream and invokes fn for
// each envelope. The returned cancel func tears the stream down and must be
// called on teardown. A failed establishment logs a warning and returns a
// no-op cancel with the error; the caller falls back to refetching.
func (c *Client) SubscribeEvents(ctx context.Context, fn func(Envelope)) (func(), error) {
	return c.subscribe(ctx, "/api/stream/events", fn)
}

// SubscribeTapeUnlocks is SubscribeEvents for the tape_unlocks table.
func (c *Client) SubscribeTapeUnlocks(ctx context.Context, fn func(Envelope)) (func(), error) {
	return c.subscribe(ctx, "/api/stream/tapes", fn)
}

func (c *Client) subscribe(ctx context.Context, path string, fn func(Envelope)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		cancel()
		c.logger.Warn("realtime channel unavailable, falling back to refetch", "path", path, "error", err)
		return func() {}, err
	}
	req.Header.Set("Accept", "text/event-stream")

	// No client timeout on a long-lived stream; lifetime is the context's.
	streamClient := &http.Client{Transport: c.httpc.Transport}

	resp, err := streamClient.Do(req)
	if err != nil {
		cancel()
		c.logger.Warn("realtime channel unavailable, falling back to refetch", "path", path, "error", err)
		return func() {}, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		err := fmt.Errorf("stream %s: status %d", path, resp.StatusCode)
		c.logger.Warn("realtime channel unavailable, falling back to refetch", "path", path, "error", err)
		return func() {}, err
	}

	go func() {
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var data strings.Builder
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "data: "):
				data.WriteString(strings.TrimPrefix(line, "data: "))
			case line == "":
				if data.Len() > 0 {
					var env Envelope
					if err := json.Unmarshal([]byte(data.String()), &env); err != nil {
						c.logger.Warn("discarding malformed envelope", "path", path, "error", err)
					} else {
						fn(env)
					}
					data.Reset()
				}
			default:
				// Comments and event-type lines carry no payload.
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			// Staleness, not an error state: fetched state stays valid
			// until the caller refreshes.
			c.logger.Warn("realtime channel closed", "path", path, "error", err)
		}
	}()

	return cancel, nil
}
