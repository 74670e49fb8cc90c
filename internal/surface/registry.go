package surface

import "sync"

// Registry keeps at most one surface per session.
type Registry struct {
	mu       sync.Mutex
	surfaces map[string]*Surface
}

func NewRegistry() *Registry { return &Registry{surfaces: make(map[string]*Surface)} }

// Register adds s unless the session already has a surface.
func (r *Registry) Register(sessionID string, s *Surface) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.surfaces[sessionID]; ok {
		return false
	}
	r.surfaces[sessionID] = s
	return true
}

func (r *Registry) Get(sessionID string) *Surface {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.surfaces[sessionID]
}

// Remove drops the session's surface if it is still s.
func (r *Registry) Remove(sessionID string, s *Surface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.surfaces[sessionID] == s {
		delete(r.surfaces, sessionID)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.surfaces)
}
