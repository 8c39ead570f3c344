// Package booking drives the client booking flow as a small FSM:
// service, then resource, then date and time, then confirmation.
package booking

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"trimly/internal/model"
)

// State is the current step of a booking flow session.
type State string

const (
	StateSelectingService  State = "selecting_service"
	StateSelectingResource State = "selecting_resource"
	StateSelectingDateTime State = "selecting_datetime"
	StateConfirming        State = "confirming"
	StateConfirmed         State = "confirmed"
)

// ErrStepOutOfOrder marks a flow operation attempted in the wrong
// state. The session is left unchanged; the caller gets the error for
// display and the flow logs a warning.
var ErrStepOutOfOrder = errors.New("step out of order")

// ErrSessionNotFound marks an unknown or expired session id.
var ErrSessionNotFound = errors.New("booking session not found")

// Draft is the incrementally filled booking selection. Once the session
// reaches StateConfirmed the draft is handed off and never mutated again.
type Draft struct {
	ServiceID   int64                  `json:"service_id,omitempty"`
	ServiceName string                 `json:"service_name,omitempty"`
	Duration    int                    `json:"duration_minutes,omitempty"`
	Selector    model.ResourceSelector `json:"-"`
	// ResourceID is the concrete resource; resolved from an Any
	// selection no later than confirmation.
	ResourceID int64           `json:"resource_id,omitempty"`
	Date       time.Time       `json:"-"`
	Slot       model.TimeOfDay `json:"slot,omitempty"`
	Price      int64           `json:"price,omitempty"`

	HasService  bool `json:"-"`
	HasResource bool `json:"-"`
	HasDateTime bool `json:"-"`
}

// Session is one client's booking flow. Single-threaded per client by
// construction; the mutex only guards against store cleanup races.
type Session struct {
	ID           string
	BarbershopID int64
	ClientID     int64
	State        State
	Draft        Draft
	// LastError carries a failed confirmation message for redisplay.
	LastError string
	StartedAt time.Time
	UpdatedAt time.Time

	mu sync.Mutex
}

// NewSession starts a session at the service-selection step.
func NewSession(barbershopID, clientID int64) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.NewString(),
		BarbershopID: barbershopID,
		ClientID:     clientID,
		State:        StateSelectingService,
		StartedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *Session) touch() { s.UpdatedAt = time.Now() }

// Snapshot returns a consistent copy of the session's mutable fields.
func (s *Session) Snapshot() (State, Draft, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State, s.Draft, s.LastError
}

// IsExpired checks if the session has been idle past the timeout.
func (s *Session) IsExpired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.UpdatedAt) > timeout
}

// FSM holds the allowed transitions: strictly forward or backward by
// one step, with confirmation as the terminal state.
type FSM struct {
	transitions map[State][]State
}

// NewFSM creates the booking-flow FSM.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateSelectingService:  {StateSelectingResource},
			StateSelectingResource: {StateSelectingDateTime, StateSelectingService},
			StateSelectingDateTime: {StateConfirming, StateSelectingResource},
			StateConfirming:        {StateConfirmed, StateSelectingDateTime},
			StateConfirmed:         {},
		},
	}
}

// CanTransition checks if a transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Previous returns the step one backward from the given state.
func (f *FSM) Previous(from State) (State, bool) {
	switch from {
	case StateSelectingResource:
		return StateSelectingService, true
	case StateSelectingDateTime:
		return StateSelectingResource, true
	case StateConfirming:
		return StateSelectingDateTime, true
	}
	return from, false
}

// SessionStore manages booking sessions by id.
type SessionStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	timeout  time.Duration
}

// NewSessionStore creates a session store with the given idle timeout.
func NewSessionStore(timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		timeout:  timeout,
	}
}

// Create registers a new session.
func (ss *SessionStore) Create(barbershopID, clientID int64) *Session {
	session := NewSession(barbershopID, clientID)
	ss.mu.Lock()
	ss.sessions[session.ID] = session
	ss.mu.Unlock()
	return session
}

// Get returns a live session, or ErrSessionNotFound.
func (ss *SessionStore) Get(id string) (*Session, error) {
	ss.mu.RLock()
	session, ok := ss.sessions[id]
	ss.mu.RUnlock()
	if !ok || session.IsExpired(ss.timeout) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Delete removes a session.
func (ss *SessionStore) Delete(id string) {
	ss.mu.Lock()
	delete(ss.sessions, id)
	ss.mu.Unlock()
}

// Cleanup removes expired sessions and returns how many were dropped.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	for id, session := range ss.sessions {
		if session.IsExpired(ss.timeout) {
			delete(ss.sessions, id)
			removed++
		}
	}
	return removed
}
