package ws

import (
	"log"
	"sync"

	"blindrelay/pkg/interfaces"
)

// Registry maps user IDs to their live transport handles. Pure connection
// bookkeeping: it knows nothing about roles beyond indexing, and nothing
// about session lifecycle.
type Registry struct {
	mu           sync.RWMutex
	connections  map[string]interfaces.Connection            // userID -> handle
	sessionConns map[string]map[string]interfaces.Connection // sessionID -> userID -> handle
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		connections:  make(map[string]interfaces.Connection),
		sessionConns: make(map[string]map[string]interfaces.Connection),
	}
}

// Register records conn as the live handle for its user, superseding any
// previous handle. The superseded handle is closed asynchronously; once
// replaced it can never receive another send.
func (r *Registry) Register(conn interfaces.Connection) error {
	if conn == nil {
		return ErrNilConn
	}

	userID := conn.UserID()
	sessionID := conn.SessionID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, exists := r.connections[userID]; exists {
		// The superseded handle may belong to a different session; its
		// bucket entry goes with it.
		if conns, ok := r.sessionConns[prev.SessionID()]; ok {
			delete(conns, userID)
			if len(conns) == 0 {
				delete(r.sessionConns, prev.SessionID())
			}
		}
		go func() {
			if err := prev.Close(); err != nil {
				log.Printf("Failed to close superseded connection for %s: %v", userID, err)
			}
		}()
	}

	r.connections[userID] = conn
	if r.sessionConns[sessionID] == nil {
		r.sessionConns[sessionID] = make(map[string]interfaces.Connection)
	}
	r.sessionConns[sessionID][userID] = conn

	return nil
}

// Unregister removes conn if it is still the registered handle for its user
// and reports whether it did. A stale disconnect from a superseded handle is
// a no-op, so out-of-order disconnect/connect events for the same user cannot
// evict the newer handle.
func (r *Registry) Unregister(conn interfaces.Connection) bool {
	if conn == nil {
		return false
	}

	userID := conn.UserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	registered, exists := r.connections[userID]
	if !exists || registered != conn {
		return false
	}

	delete(r.connections, userID)
	sessionID := conn.SessionID()
	if conns, exists := r.sessionConns[sessionID]; exists {
		delete(conns, userID)
		if len(conns) == 0 {
			delete(r.sessionConns, sessionID)
		}
	}
	return true
}

// Send delivers v to the user's current handle. A missing recipient is
// expected steady-state, not a fault: the send is dropped and logged.
func (r *Registry) Send(userID string, v interface{}) {
	r.mu.RLock()
	conn, exists := r.connections[userID]
	r.mu.RUnlock()

	if !exists {
		log.Printf("Dropped message for disconnected user %s", userID)
		return
	}

	if err := conn.WriteJSON(v); err != nil {
		log.Printf("Failed to deliver message to %s: %v", userID, err)
	}
}

// IsConnected reports whether the user has a live handle.
func (r *Registry) IsConnected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.connections[userID]
	return exists
}

// SessionConnectionCount returns the number of live handles in a session.
func (r *Registry) SessionConnectionCount(sessionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessionConns[sessionID])
}

// Stats returns registry counters for the health endpoint.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"total_connections": len(r.connections),
		"active_sessions":   len(r.sessionConns),
	}
}
