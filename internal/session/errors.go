package session

import "errors"

var (
	ErrRoleConflict     = errors.New("role slot occupied by a different user")
	ErrUnknownSender    = errors.New("sender is not bound to a role in this session")
	ErrSessionCompleted = errors.New("session is completed")
)
