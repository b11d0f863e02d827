// Package runtime wraps any puzzle widget in a shared per-session state
// machine: idle → active → success | failed | timeout. Failure states return
// to idle after a retry delay; success is terminal for the session.
package runtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/showofsouls/broadcast/internal/registry"
)

type State string

const (
	StateIdle    State = "idle"
	StateActive  State = "active"
	StateSuccess State = "success"
	StateFailed  State = "failed"
	StateTimeout State = "timeout"
)

// retryDelay is how long a failed or timed-out session lingers before
// returning to idle for another attempt.
const retryDelay = 3 * time.Second

// progressStore is the slice of the progress store a session writes through.
type progressStore interface {
	CompletePuzzle(puzzleID string, metadata map[string]any)
	IncrementAttempts(puzzleID string)
	UnlockContent(contentID string)
}

type Session struct {
	mu    sync.Mutex
	def   registry.Definition
	reg   *registry.Registry
	store progressStore
	clock Clock

	state      State
	startedAt  time.Time
	deadline   time.Time // zero for untimed puzzles
	resetAt    time.Time
	onComplete func(metadata map[string]any)
}

// NewSession builds a session for one puzzle. onComplete may be nil; it
// fires once, after the progress store has been updated.
func NewSession(reg *registry.Registry, store progressStore, puzzleID string, clock Clock, onComplete func(map[string]any)) (*Session, error) {
	def, ok := reg.ByID(puzzleID)
	if !ok {
		return nil, fmt.Errorf("unknown puzzle %q", puzzleID)
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Session{
		def:        def,
		reg:        reg,
		store:      store,
		clock:      clock,
		state:      StateIdle,
		onComplete: onComplete,
	}, nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start moves idle → active and records the start timestamp. Starting from
// any other state is a no-op.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return
	}
	now := s.clock.Now()
	s.state = StateActive
	s.startedAt = now
	s.deadline = time.Time{}
	if budget := s.reg.TimeBudget(s.def.ID); budget > 0 {
		s.deadline = now.Add(budget)
	}
}

// Remaining reports the time left on the budget, zero-clamped. Untimed
// puzzles always report zero with ok false.
func (s *Session) Remaining() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive || s.deadline.IsZero() {
		return 0, false
	}
	left := s.deadline.Sub(s.clock.Now())
	if left < 0 {
		left = 0
	}
	return left, true
}

// Tick drives time-based transitions; the widget calls it on its one-second
// cadence. An active session past its deadline times out; a failed or
// timed-out session past its retry delay returns to idle.
func (s *Session) Tick() {
	s.mu.Lock()
	now := s.clock.Now()

	switch s.state {
	case StateActive:
		if !s.deadline.IsZero() && !now.Before(s.deadline) {
			s.failLocked(StateTimeout, now)
			s.mu.Unlock()
			return
		}
	case StateFailed, StateTimeout:
		if !now.Before(s.resetAt) {
			s.resetLocked()
		}
	}
	s.mu.Unlock()
}

// HandleSuccess records a solve. Idempotent: overlapping UI triggers after
// success are no-ops. Elapsed time is measured from Start and merged into
// the metadata written through to the progress store.
func (s *Session) HandleSuccess(metadata map[string]any) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	s.state = StateSuccess

	merged := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		merged[k] = v
	}
	merged["time"] = s.clock.Now().Sub(s.startedAt).Seconds()
	merged["difficulty"] = string(s.def.Difficulty)

	def := s.def
	onComplete := s.onComplete
	s.mu.Unlock()

	s.store.CompletePuzzle(def.ID, merged)
	for _, reward := range def.Rewards {
		s.store.UnlockContent(reward)
	}
	if onComplete != nil {
		onComplete(merged)
	}
}

// HandleFailure marks a failed attempt and schedules the return to idle.
func (s *Session) HandleFailure() {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	s.failLocked(StateFailed, s.clock.Now())
	s.mu.Unlock()
}

func (s *Session) failLocked(to State, now time.Time) {
	s.state = to
	s.resetAt = now.Add(retryDelay)
	s.store.IncrementAttempts(s.def.ID)
}

// Reset returns the session to idle defaults; the time budget is re-derived
// from the registry on the next Start.
func (s *Session) Reset() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
}

func (s *Session) resetLocked() {
	s.state = StateIdle
	s.startedAt = time.Time{}
	s.deadline = time.Time{}
	s.resetAt = time.Time{}
}
