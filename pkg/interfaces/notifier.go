package interfaces

import "context"

// Notifier asks an external AI agent to attach to a session's transport
// endpoint. Best effort: the caller never blocks on it and only logs its
// outcome.
type Notifier interface {
	Notify(ctx context.Context, sessionID, websocketURL string) error
}
