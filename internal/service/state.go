package service

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle position of one detection request.
type State string

const (
	StateReady     State = "READY"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateCancelled State = "CANCELLED"
	StateFailed    State = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

var transitions = map[State][]State{
	StateReady:   {StateRunning, StateFailed},
	StateRunning: {StateCompleted, StateCancelled, StateFailed},
}

// RequestState is owned by one request. Its cancel flag is the only field
// written from outside the request goroutine.
type RequestState struct {
	ID        string
	CreatedAt time.Time

	cancelled atomic.Bool

	mu            sync.Mutex
	state         State
	backend       string
	frameIndex    int
	framesSampled int
	inferences    int
	results       int
}

func newRequestState(id string) *RequestState {
	return &RequestState{ID: id, CreatedAt: time.Now(), state: StateReady}
}

// Cancel raises the stop flag; the pipeline observes it at the next sampled frame.
func (r *RequestState) Cancel() {
	r.cancelled.Store(true)
}

func (r *RequestState) Cancelled() bool {
	return r.cancelled.Load()
}

func (r *RequestState) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *RequestState) transition(to State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, allowed := range transitions[r.state] {
		if allowed == to {
			r.state = to
			return nil
		}
	}
	return fmt.Errorf("request %s: invalid transition %s -> %s", r.ID, r.state, to)
}

// Snapshot is a read-only view of a request's progress.
type Snapshot struct {
	ID            string    `json:"request_id"`
	State         State     `json:"state"`
	Backend       string    `json:"backend,omitempty"`
	Cancelled     bool      `json:"cancelled"`
	FrameIndex    int       `json:"frame_index"`
	FramesSampled int       `json:"frames_sampled"`
	Inferences    int       `json:"inferences"`
	Results       int       `json:"results"`
	CreatedAt     time.Time `json:"created_at"`
}

func (r *RequestState) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		ID:            r.ID,
		State:         r.state,
		Backend:       r.backend,
		Cancelled:     r.cancelled.Load(),
		FrameIndex:    r.frameIndex,
		FramesSampled: r.framesSampled,
		Inferences:    r.inferences,
		Results:       r.results,
		CreatedAt:     r.CreatedAt,
	}
}
