package types

import "errors"

var (
	ErrInvalidUserID      = errors.New("user ID must be 1-50 characters, alphanumeric plus underscore/hyphen")
	ErrInvalidSessionName = errors.New("session name must be 1-200 characters")
	ErrInvalidRole        = errors.New("invalid role: must be judge, human, or ai")
	ErrInvalidCreator     = errors.New("creator must have a valid user ID")
	ErrEmptyContent       = errors.New("message content cannot be empty")
	ErrContentTooLarge    = errors.New("message content exceeds 64KB limit")
)
