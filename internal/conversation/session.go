package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smileright/dental-frontdesk/internal/patients"
)

// Awaiting marks which prompt the active role is waiting on, so yes/no and
// free-text answers resolve deterministically.
type Awaiting string

const (
	AwaitNothing       Awaiting = ""
	AwaitPatientKind   Awaiting = "patient_kind"
	AwaitName          Awaiting = "name"
	AwaitPhone         Awaiting = "phone"
	AwaitDOB           Awaiting = "dob"
	AwaitEmail         Awaiting = "email"
	AwaitRegisterOffer Awaiting = "register_offer"
	AwaitDestination   Awaiting = "destination"
	AwaitBookOffer     Awaiting = "book_offer"
	AwaitDate          Awaiting = "date"
	AwaitTime          Awaiting = "time"
	AwaitConfirm       Awaiting = "confirm"
)

// Slots is the working set a session fills as the call progresses. Every
// field is optional until the active role's exit condition needs it.
type Slots struct {
	Name        string `json:"name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DOB         string `json:"dob,omitempty"`
	DOBSkipped  bool   `json:"dob_skipped,omitempty"`
	Email       string `json:"email,omitempty"`
	EmailAsked  bool   `json:"email_asked,omitempty"`
	TreatmentID string `json:"treatment_id,omitempty"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`

	// Destination the caller stated for after identification: RoleInfo or
	// RoleBooking, empty until known.
	Destination Role `json:"destination,omitempty"`

	Awaiting Awaiting `json:"awaiting,omitempty"`
}

// TransferRecord is one logged role transition within a session.
type TransferRecord struct {
	From   Role      `json:"from"`
	To     Role      `json:"to"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Session is the working memory of one live call. It is created on call
// start, mutated only by the state machine while the call runs, and never
// mutated after Close.
type Session struct {
	ID        string           `json:"session_id"`
	RoomID    string           `json:"room_id"`
	Role      Role             `json:"role"`
	Slots     Slots            `json:"slots"`
	Patient   *patients.Patient `json:"patient,omitempty"`
	Turns     int              `json:"turns"`
	Transfers []TransferRecord `json:"transfers,omitempty"`
	History   []ChatMessage    `json:"history,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	Closed    bool             `json:"closed"`
	ClosedAt  *time.Time       `json:"closed_at,omitempty"`

	// mu serializes turns on this session; concurrent sessions never share
	// state.
	mu sync.Mutex
}

const historyKeep = 20

func (s *Session) appendHistory(role, content string) {
	s.History = append(s.History, ChatMessage{Role: role, Content: content})
	if len(s.History) > historyKeep {
		s.History = s.History[len(s.History)-historyKeep:]
	}
}

// Verified reports whether the caller's identity has been established, either
// by lookup or by fresh registration.
func (s *Session) Verified() bool {
	return s.Patient != nil
}

// Manager owns the live sessions of this process.
type Manager struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	snapshots *SnapshotStore
}

// NewManager creates a session manager. snapshots may be nil when no Redis
// recovery store is configured.
func NewManager(snapshots *SnapshotStore) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		snapshots: snapshots,
	}
}

// Start creates a session for a new call, beginning at the Greeter.
func (m *Manager) Start(roomID string) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Role:      RoleGreeter,
		StartedAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns a live session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Resume returns the live session, falling back to the Redis snapshot when
// this process restarted mid-call. A recovered session rejoins the live set.
func (m *Manager) Resume(ctx context.Context, id string) (*Session, bool) {
	if s, ok := m.Get(id); ok {
		return s, true
	}
	if m.snapshots == nil {
		return nil, false
	}
	s, err := m.snapshots.Load(ctx, id)
	if err != nil || s == nil {
		return nil, false
	}
	m.mu.Lock()
	if live, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return live, true
	}
	m.sessions[id] = s
	m.mu.Unlock()
	return s, true
}

// Snapshot persists the session to Redis for crash recovery. Best effort:
// a failed save never fails the turn.
func (m *Manager) Snapshot(ctx context.Context, s *Session) error {
	if m.snapshots == nil {
		return nil
	}
	return m.snapshots.Save(ctx, s)
}

// Close marks a session ended and drops it from the live set. Closed
// sessions are never mutated again.
func (m *Manager) Close(id string) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	if !s.Closed {
		now := time.Now().UTC()
		s.Closed = true
		s.ClosedAt = &now
	}
	s.mu.Unlock()

	if m.snapshots != nil {
		_ = m.snapshots.Delete(context.Background(), id)
	}
	return s, true
}

// Len reports how many calls are live.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
