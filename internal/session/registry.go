package session

import (
	"log"
	"sync"
)

// Registry is the process-wide table of live sessions. It owns Session
// lifecycles: create-on-first-reference, remove-on-explicit-delete. In-memory
// state does not survive a restart; the durable record does.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for sessionID, constructing it atomically
// when unseen. Concurrent callers racing on the same new ID all receive the
// single instance that won; judgeID only applies to the construction.
func (r *Registry) GetOrCreate(sessionID, judgeID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, exists := r.sessions[sessionID]; exists {
		return s
	}
	s := New(sessionID, judgeID)
	r.sessions[sessionID] = s
	log.Printf("Session materialized: session=%s judge=%s", sessionID, judgeID)
	return s
}

// Get returns the session for sessionID without creating one.
func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, exists := r.sessions[sessionID]
	return s, exists
}

// Remove deletes the session. The instance is expired before removal so
// in-flight operations holding a reference fail with ErrSessionCompleted
// instead of mutating a detached object.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	s, exists := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if exists {
		s.Expire()
		log.Printf("Session removed: session=%s", sessionID)
	}
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
