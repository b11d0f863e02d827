// Package provider is the app-wide source of truth for the global event and
// the shared tape archive. It reconciles server state with locally derived
// state (countdown, sub-puzzle bookkeeping) and fans changes out to the
// pages that display them. It is explicitly constructed and injected; there
// is no ambient global instance.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/showofsouls/broadcast/internal/eventclient"
	"github.com/showofsouls/broadcast/internal/runtime"
)

// EventWindow is the fixed lifetime of a global event from started_at.
const EventWindow = 12 * time.Hour

const (
	defaultNotificationTTL = 5 * time.Second
	defaultRefreshInterval = 60 * time.Second
)

type EventState string

const (
	StateNoEvent   EventState = "no_event"
	StateActive    EventState = "active"
	StateCompleted EventState = "completed"
	StateExpired   EventState = "expired"
)

var (
	ErrNoActiveEvent = errors.New("no active event")
	ErrWindowClosed  = errors.New("event window closed")
)

// remote is the slice of the event client the provider consumes.
type remote interface {
	CurrentEvent(ctx context.Context) *eventclient.GlobalEvent
	CompleteEvent(ctx context.Context, eventID, userID string, timeTaken int, guess string) eventclient.CompleteResult
	UnlockedTapes(ctx context.Context) []eventclient.TapeUnlock
	UnlockTape(ctx context.Context, tapeID, userID, method string) (*eventclient.TapeUnlock, error)
	SubscribeEvents(ctx context.Context, fn func(eventclient.Envelope)) (func(), error)
	SubscribeTapeUnlocks(ctx context.Context, fn func(eventclient.Envelope)) (func(), error)
}

type TimeRemaining struct {
	Hours   int
	Minutes int
	Seconds int
	Expired bool
}

// Notification is a transient "tape unlocked" banner; it dismisses itself
// after the TTL without user action.
type Notification struct {
	TapeID     string
	UnlockedBy string
}

type Provider struct {
	client remote
	userID string
	clock  runtime.Clock
	logger *slog.Logger

	mu            sync.Mutex
	event         *eventclient.GlobalEvent
	subPuzzles    []string
	solved        map[string]bool
	tapes         []eventclient.TapeUnlock
	tapeSeen      map[string]bool
	notifications []Notification
	notifTimers   map[string]*time.Timer
	notifTTL      time.Duration

	cancels []func()
	done    chan struct{}
	closed  bool
}

func New(client remote, userID string, clock runtime.Clock, logger *slog.Logger) *Provider {
	if clock == nil {
		clock = runtime.RealClock{}
	}
	return &Provider{
		client:      client,
		userID:      userID,
		clock:       clock,
		logger:      logger,
		solved:      make(map[string]bool),
		tapeSeen:    make(map[string]bool),
		notifTimers: make(map[string]*time.Timer),
		notifTTL:    defaultNotificationTTL,
		done:        make(chan struct{}),
	}
}

// Start performs the initial fetch, opens both realtime subscriptions, and
// begins the periodic refresh fallback. Subscription failures degrade to
// the refresh path; Start itself never fails.
func (p *Provider) Start(ctx context.Context) {
	p.Refresh(ctx)

	if cancel, err := p.client.SubscribeEvents(ctx, p.handleEventEnvelope); err == nil {
		p.mu.Lock()
		p.cancels = append(p.cancels, cancel)
		p.mu.Unlock()
	}
	if cancel, err := p.client.SubscribeTapeUnlocks(ctx, p.handleTapeEnvelope); err == nil {
		p.mu.Lock()
		p.cancels = append(p.cancels, cancel)
		p.mu.Unlock()
	}

	go p.refreshLoop(ctx)
}

func (p *Provider) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(defaultRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}

// Refresh re-fetches the current event and the tape list. Failures leave
// existing state untouched; absence of an event clears it.
func (p *Provider) Refresh(ctx context.Context) {
	ev := p.client.CurrentEvent(ctx)
	tapes := p.client.UnlockedTapes(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if ev != nil {
		p.adoptEventLocked(ev)
	} else if p.event != nil && p.event.CompletedAt == nil &&
		p.clock.Now().Before(p.event.StartedAt.Add(EventWindow)) {
		// The current-event endpoint only serves live rows, so an event
		// vanishing mid-window means someone solved it. Record the
		// completion with the solver unknown rather than losing the event;
		// a later realtime echo or conflict response fills in the name.
		done := p.clock.Now()
		p.event.CompletedAt = &done
		p.event.IsActive = false
	}

	for _, tu := range tapes {
		p.addTapeLocked(tu, false)
	}
}

// adoptEventLocked merges a server row by event id. Out-of-order and
// duplicate deliveries are safe: a terminal local event is never reopened.
func (p *Provider) adoptEventLocked(ev *eventclient.GlobalEvent) {
	if p.event != nil && p.event.EventID == ev.EventID {
		if p.event.CompletedAt != nil && ev.CompletedAt == nil {
			return // stale echo of the pre-completion row
		}
		p.event = ev
		return
	}

	// A different event. Adopt it if we have none, or if it is newer.
	if p.event == nil || ev.StartedAt.After(p.event.StartedAt) {
		p.clearEventLocked()
		p.event = ev
		p.subPuzzles = subPuzzleIDs(ev.PuzzleData)
	}
}

func (p *Provider) clearEventLocked() {
	p.event = nil
	p.subPuzzles = nil
	p.solved = make(map[string]bool)
}

// subPuzzleIDs pulls the sub-puzzle id list out of the opaque event payload.
// Events without one are single-puzzle events.
func subPuzzleIDs(data json.RawMessage) []string {
	var payload struct {
		Puzzles []string `json:"puzzles"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil
	}
	return payload.Puzzles
}

// State derives the event lifecycle state for display.
func (p *Provider) State() EventState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

func (p *Provider) stateLocked() EventState {
	switch {
	case p.event == nil:
		return StateNoEvent
	case p.event.CompletedAt != nil:
		return StateCompleted
	case !p.clock.Now().Before(p.event.StartedAt.Add(EventWindow)):
		return StateExpired
	default:
		return StateActive
	}
}

// Event returns the current event row, or nil.
func (p *Provider) Event() *eventclient.GlobalEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.event == nil {
		return nil
	}
	ev := *p.event
	return &ev
}

// TimeRemaining recomputes the countdown on every call; it backs a
// one-second UI tick and must never serve a cached value.
func (p *Provider) TimeRemaining() TimeRemaining {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.event == nil {
		return TimeRemaining{Expired: true}
	}
	left := p.event.StartedAt.Add(EventWindow).Sub(p.clock.Now())
	if left <= 0 {
		return TimeRemaining{Expired: true}
	}
	return TimeRemaining{
		Hours:   int(left / time.Hour),
		Minutes: int(left/time.Minute) % 60,
		Seconds: int(left/time.Second) % 60,
	}
}

// MarkPuzzleComplete records that one of the event's sub-puzzles has been
// solved in this session. Repeat calls for the same puzzle are no-ops, so a
// double-fired UI trigger moves the count by exactly one.
func (p *Provider) MarkPuzzleComplete(puzzleID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stateLocked() != StateActive {
		return
	}
	// Only ids the event declares count toward the sub-puzzle total.
	if !slices.Contains(p.subPuzzles, puzzleID) {
		return
	}
	p.solved[puzzleID] = true
}

func (p *Provider) IsPuzzleEventComplete(puzzleID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.solved[puzzleID]
}

func (p *Provider) CompletedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.solved)
}

func (p *Provider) TotalPuzzles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subPuzzles)
}

// SubmitSolution sends a completion attempt for the current event. The
// server settles the first-to-solve race; local state is only trusted to
// refuse submissions that cannot possibly be accepted.
func (p *Provider) SubmitSolution(ctx context.Context, guess string) (eventclient.CompleteResult, error) {
	p.mu.Lock()
	switch p.stateLocked() {
	case StateNoEvent:
		p.mu.Unlock()
		return eventclient.CompleteResult{}, ErrNoActiveEvent
	case StateExpired:
		p.mu.Unlock()
		return eventclient.CompleteResult{}, ErrWindowClosed
	case StateCompleted:
		p.mu.Unlock()
		return eventclient.CompleteResult{Outcome: eventclient.AlreadyCompleted}, nil
	}
	eventID := p.event.EventID
	timeTaken := int(p.clock.Now().Sub(p.event.StartedAt).Seconds())
	p.mu.Unlock()

	res := p.client.CompleteEvent(ctx, eventID, p.userID, timeTaken, guess)

	switch res.Outcome {
	case eventclient.Solved, eventclient.AlreadyCompleted:
		if res.Event != nil {
			// Solved and conflict responses both carry the completed row,
			// so the loser learns who beat them even with realtime down.
			p.mu.Lock()
			p.adoptEventLocked(res.Event)
			p.mu.Unlock()
		} else if res.Outcome == eventclient.AlreadyCompleted {
			p.Refresh(ctx)
		}
	}
	return res, nil
}

// UnlockTape writes a tape unlock through to the service and merges the
// created record locally without waiting for the realtime echo.
func (p *Provider) UnlockTape(ctx context.Context, tapeID, method string) error {
	tu, err := p.client.UnlockTape(ctx, tapeID, p.userID, method)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.addTapeLocked(*tu, false)
	p.mu.Unlock()
	return nil
}

// Tapes returns the de-duplicated unlock list, oldest first.
func (p *Provider) Tapes() []eventclient.TapeUnlock {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]eventclient.TapeUnlock, len(p.tapes))
	copy(out, p.tapes)
	return out
}

func (p *Provider) IsTapeUnlocked(tapeID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tapeSeen[tapeID]
}

// addTapeLocked merges one unlock record, de-duplicating by tape id, and
// optionally raises a transient notification.
func (p *Provider) addTapeLocked(tu eventclient.TapeUnlock, notify bool) {
	if p.tapeSeen[tu.TapeID] {
		return
	}
	p.tapeSeen[tu.TapeID] = true
	p.tapes = append(p.tapes, tu)

	if !notify || p.closed {
		return
	}

	n := Notification{TapeID: tu.TapeID}
	if tu.UnlockedBy != nil {
		n.UnlockedBy = *tu.UnlockedBy
	}
	p.notifications = append(p.notifications, n)

	tapeID := tu.TapeID
	p.notifTimers[tapeID] = time.AfterFunc(p.notifTTL, func() {
		p.dismissNotification(tapeID)
	})
}

func (p *Provider) dismissNotification(tapeID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.notifTimers, tapeID)
	kept := p.notifications[:0]
	for _, n := range p.notifications {
		if n.TapeID != tapeID {
			kept = append(kept, n)
		}
	}
	p.notifications = kept
}

// Notifications returns the currently visible transient notifications.
func (p *Provider) Notifications() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Notification, len(p.notifications))
	copy(out, p.notifications)
	return out
}

func (p *Provider) handleEventEnvelope(env eventclient.Envelope) {
	if env.Op == "delete" {
		return // events are never deleted by this system; ignore
	}
	var ev eventclient.GlobalEvent
	if err := json.Unmarshal(env.Row, &ev); err != nil {
		p.logger.Warn("discarding malformed event row", "error", err)
		return
	}
	p.mu.Lock()
	p.adoptEventLocked(&ev)
	p.mu.Unlock()
}

func (p *Provider) handleTapeEnvelope(env eventclient.Envelope) {
	if env.Op != "insert" {
		return
	}
	var tu eventclient.TapeUnlock
	if err := json.Unmarshal(env.Row, &tu); err != nil {
		p.logger.Warn("discarding malformed tape row", "error", err)
		return
	}
	p.mu.Lock()
	p.addTapeLocked(tu, true)
	p.mu.Unlock()
}

// Close tears down subscriptions, the refresh loop, and any pending
// notification timers. No timer fires after Close returns.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	cancels := p.cancels
	p.cancels = nil
	for id, t := range p.notifTimers {
		t.Stop()
		delete(p.notifTimers, id)
	}
	p.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
