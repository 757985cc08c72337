package core

import (
	"fmt"
	"time"
)

// RequestState is a stage of the per-request review state machine.
type RequestState string

const (
	StateReceived   RequestState = "RECEIVED"
	StateEmbedding  RequestState = "EMBEDDING"
	StateRetrieving RequestState = "RETRIEVING"
	StateAssembling RequestState = "ASSEMBLING"
	StateGenerating RequestState = "GENERATING"
	StateParsing    RequestState = "PARSING"
	StateCompleted  RequestState = "COMPLETED"
	StateFailed     RequestState = "FAILED"
)

var stateTransitions = map[RequestState][]RequestState{
	StateReceived:   {StateEmbedding},
	StateEmbedding:  {StateRetrieving, StateFailed},
	StateRetrieving: {StateAssembling, StateFailed},
	StateAssembling: {StateGenerating, StateFailed},
	StateGenerating: {StateParsing, StateFailed},
	StateParsing:    {StateCompleted, StateFailed},
}

// Terminal reports whether no transition leaves s.
func (s RequestState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// StateTracker walks one request through the state machine and accumulates
// the time spent in every state. It is not safe for concurrent use; each
// request owns its tracker.
type StateTracker struct {
	state   RequestState
	entered time.Time
	timings map[RequestState]time.Duration
	now     func() time.Time
}

// NewStateTracker starts a tracker in RECEIVED. A nil clock uses time.Now.
func NewStateTracker(now func() time.Time) *StateTracker {
	if now == nil {
		now = time.Now
	}
	return &StateTracker{
		state:   StateReceived,
		entered: now(),
		timings: make(map[RequestState]time.Duration),
		now:     now,
	}
}

// State returns the current state.
func (t *StateTracker) State() RequestState {
	return t.state
}

// Transition moves to next, charging the elapsed time to the state being left.
func (t *StateTracker) Transition(next RequestState) error {
	allowed := false
	for _, s := range stateTransitions[t.state] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("illegal state transition %s -> %s", t.state, next)
	}

	now := t.now()
	t.timings[t.state] += now.Sub(t.entered)
	t.state = next
	t.entered = now
	return nil
}

// Fail moves to FAILED if the current state allows it. It returns false when
// the state machine has no FAILED edge from the current state.
func (t *StateTracker) Fail() bool {
	return t.Transition(StateFailed) == nil
}

// Timings returns a copy of the per-state durations recorded so far.
func (t *StateTracker) Timings() map[RequestState]time.Duration {
	out := make(map[RequestState]time.Duration, len(t.timings))
	for k, v := range t.timings {
		out[k] = v
	}
	return out
}

// Elapsed is the sum of all recorded transition times.
func (t *StateTracker) Elapsed() time.Duration {
	var total time.Duration
	for _, d := range t.timings {
		total += d
	}
	return total
}
