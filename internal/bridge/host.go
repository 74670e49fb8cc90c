package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"embedconnect/bridge/internal/connect"
)

var ErrSessionNotFound = errors.New("session not found")

// Host owns the sessions mounted against one store and keeps them in sync
// with it.
type Host struct {
	store *connect.Store

	mu       sync.RWMutex
	sessions map[string]*Session
	// ids reserved by mounts still in progress
	mounting map[string]bool
}

// NewHost attaches the host as the store's subscriber. Only the first host
// of a store receives updates; later ones must call Sync themselves.
func NewHost(store *connect.Store) (*Host, error) {
	if err := connect.Check(store); err != nil {
		return nil, err
	}
	h := &Host{store: store, sessions: make(map[string]*Session), mounting: make(map[string]bool)}
	store.AttachSubscriber(func(connect.Update) { h.Sync() })
	return h, nil
}

func (h *Host) Store() *connect.Store { return h.store }

// Mount mounts a session against the host's store and tracks it.
func (h *Host) Mount(ctx context.Context, opts MountOptions) (*Session, error) {
	id := opts.SessionID
	if id != "" {
		h.mu.Lock()
		_, dup := h.sessions[id]
		if dup || h.mounting[id] {
			h.mu.Unlock()
			return nil, fmt.Errorf("%w: session %q already mounted", connect.ErrConfiguration, id)
		}
		h.mounting[id] = true
		h.mu.Unlock()
	}

	s, err := Mount(ctx, h.store, opts)

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.mounting, id)
	if err != nil {
		return nil, err
	}
	h.sessions[s.ID()] = s
	return s, nil
}

func (h *Host) Get(id string) (*Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Unmount closes and forgets the session.
func (h *Host) Unmount(id string) error {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.Close()
}

// SessionIDs returns the mounted session ids in sorted order.
func (h *Host) SessionIDs() []string {
	h.mu.RLock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Sync runs a render tick on every mounted session.
func (h *Host) Sync() {
	for _, s := range h.snapshot() {
		s.Sync()
	}
}

// Close unmounts every session.
func (h *Host) Close() error {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Host) snapshot() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}
