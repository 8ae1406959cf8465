package interfaces

import "blindrelay/pkg/types"

// Connection is a live transport handle bound to one user. Implementations
// must make WriteJSON safe for concurrent callers; the registry owns the
// handle and no other component retains one beyond the call using it.
type Connection interface {
	// WriteJSON sends a JSON message to the client.
	WriteJSON(v interface{}) error

	// Close tears down the transport and releases resources. Idempotent.
	Close() error

	// UserID returns the bound user's ID.
	UserID() string

	// Role returns the seat this connection joined as.
	Role() types.Role

	// SessionID returns the session this connection belongs to.
	SessionID() string
}
