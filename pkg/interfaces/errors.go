package interfaces

import "errors"

// Errors shared across collaborator boundaries.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUnverified      = errors.New("credential could not be verified")
)
