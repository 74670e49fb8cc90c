package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"embedconnect/bridge/internal/types"
)

var (
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
)

// DefaultMaxEvents caps the event log of each session.
const DefaultMaxEvents = 200

// Store keeps session records and a capped event log per session so HTTP
// clients can poll what their mounted components reported.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*types.Session
	events    map[string][]types.Event
	maxEvents int
	now       func() time.Time
}

func New() *Store {
	return NewWithLimit(DefaultMaxEvents)
}

// NewWithLimit is New with a custom event cap. Limits below 2 are raised to 2
// so a truncation marker always fits next to the newest event.
func NewWithLimit(maxEvents int) *Store {
	if maxEvents < 2 {
		maxEvents = 2
	}
	return &Store{
		sessions:  make(map[string]*types.Session),
		events:    make(map[string][]types.Event),
		maxEvents: maxEvents,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) CreateSession(sess *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return ErrSessionExists
	}
	s.sessions[sess.ID] = sess
	s.events[sess.ID] = []types.Event{}
	return nil
}

// GetSession returns a copy of the record, or nil.
func (s *Store) GetSession(id string) *types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	out := *sess
	return &out
}

// EndSession marks the session ended. Its events stay readable.
func (s *Store) EndSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if sess.Status != types.StatusEnded {
		at := s.now()
		sess.Status = types.StatusEnded
		sess.EndedAt = &at
		sess.SurfaceConnected = false
	}
	return nil
}

func (s *Store) SetSurfaceConnected(id string, connected bool) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.SurfaceConnected = connected
	}
	s.mu.Unlock()
}

// AppendEvent records an event for a known session. Events for unknown
// sessions are dropped. When the log exceeds its cap the oldest events are
// discarded and an events_truncated marker is appended.
func (s *Store) AppendEvent(sessionID, typ string, payload map[string]any) types.Event {
	evt := types.Event{Type: typ, Ts: s.now(), Payload: payload}
	s.mu.Lock()
	defer s.mu.Unlock()
	log, ok := s.events[sessionID]
	if !ok {
		return evt
	}
	log = append(log, evt)
	if l := len(log); l > s.maxEvents {
		keep := s.maxEvents - 1
		dropped := l - keep
		log = append([]types.Event(nil), log[l-keep:]...)
		log = append(log, types.Event{Type: "events_truncated", Ts: s.now(), Payload: map[string]any{
			"session_id": sessionID,
			"dropped":    dropped,
			"kept":       keep,
		}})
	}
	s.events[sessionID] = log
	return evt
}

func (s *Store) ListEvents(sessionID string) []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.events[sessionID]
	out := make([]types.Event, len(src))
	copy(out, src)
	return out
}

func (s *Store) ListSessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
