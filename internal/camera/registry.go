package camera

import (
	"sort"
	"sync"
)

// Registry indexes live sessions by ID and by device. It is written on the
// control loop and may be read from any goroutine.
type Registry struct {
	mu       sync.RWMutex
	byID     map[int64]*Session
	byDevice map[string]*Session
	nextID   int64
}

// NewRegistry returns an empty registry whose first ID is 0.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[int64]*Session),
		byDevice: make(map[string]*Session),
	}
}

// NextID reserves the next session ID. IDs are never handed out twice.
func (r *Registry) NextID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	return id
}

// Insert adds s. It returns false if its ID or device is already registered.
func (r *Registry) Insert(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[s.id]; exists {
		return false
	}
	if _, exists := r.byDevice[s.deviceID]; exists {
		return false
	}
	r.byID[s.id] = s
	r.byDevice[s.deviceID] = s
	return true
}

// Lookup returns the session with the given ID.
func (r *Registry) Lookup(id int64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// LookupDevice returns the session bound to deviceID.
func (r *Registry) LookupDevice(deviceID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byDevice[deviceID]
	return s, ok
}

// Remove deletes the session with the given ID and returns it.
func (r *Registry) Remove(id int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	if r.byDevice[s.deviceID] == s {
		delete(r.byDevice, s.deviceID)
	}
	return s, true
}

// List returns the live sessions ordered by ID.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].id < sessions[j].id })
	return sessions
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
