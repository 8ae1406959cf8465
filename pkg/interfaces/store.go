package interfaces

import (
	"context"

	"blindrelay/pkg/types"
)

// SessionStore handles durable session records. All methods may fail with a
// transient storage error; callers surface those as service faults rather
// than swallowing them.
type SessionStore interface {
	// CreateSession persists a new session record.
	CreateSession(ctx context.Context, record *types.SessionRecord) error

	// GetSession retrieves a record by session ID, ErrSessionNotFound when
	// absent.
	GetSession(ctx context.Context, sessionID string) (*types.SessionRecord, error)

	// UpdateStatus moves a record's status and refreshes its updated_at.
	UpdateStatus(ctx context.Context, sessionID, status string) error

	// DeleteSession removes a record, ErrSessionNotFound when absent.
	DeleteSession(ctx context.Context, sessionID string) error

	// FindByJoinCode resolves a join code to a record, ErrSessionNotFound
	// when no record carries the code.
	FindByJoinCode(ctx context.Context, joinCode string) (*types.SessionRecord, error)

	// ListUserSessions returns records the user participates in, newest
	// first, capped at limit.
	ListUserSessions(ctx context.Context, userID string, limit int) ([]*types.SessionRecord, error)

	// AddParticipant appends a participant to a record's seat list.
	AddParticipant(ctx context.Context, sessionID string, participant *types.Participant) error

	// HealthCheck verifies connectivity.
	HealthCheck(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}
