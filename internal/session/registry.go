package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown or reaped session ids.
var ErrSessionNotFound = errors.New("session not found")

// Registry holds the live sessions of this process. Nothing survives a
// restart.
type Registry struct {
	clock  Clock
	timer  *Timer
	fields FieldIndex

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry(clock Clock, timer *Timer, fields FieldIndex) *Registry {
	return &Registry{
		clock:    clock,
		timer:    timer,
		fields:   fields,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create registers a new session in LOGIN.
func (r *Registry) Create() *Session {
	s := New(uuid.New(), r.clock, r.timer, r.fields)

	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	return s
}

// Get looks a session up by id.
func (r *Registry) Get(id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove drops a session.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// List returns the live sessions in no particular order.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Reap drops sessions idle for longer than maxIdle and returns their ids.
func (r *Registry) Reap(maxIdle time.Duration) []uuid.UUID {
	cutoff := r.clock.Now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	var reaped []uuid.UUID
	for id, s := range r.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(r.sessions, id)
			reaped = append(reaped, id)
		}
	}
	return reaped
}
