package types

import "regexp"

var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// maxContentBytes bounds a single chat payload.
const maxContentBytes = 65536

// IsValidUserID checks the user ID format shared by the REST and WebSocket
// boundaries.
func IsValidUserID(userID string) bool {
	if len(userID) < 1 || len(userID) > 50 {
		return false
	}
	return userIDRegex.MatchString(userID)
}

// Validate checks a record before it is persisted.
func (r *SessionRecord) Validate() error {
	if len(r.Name) < 1 || len(r.Name) > 200 {
		return ErrInvalidSessionName
	}
	if !IsValidUserID(r.CreatorID) {
		return ErrInvalidCreator
	}
	return nil
}

// Validate checks an inbound envelope before routing.
func (m *Inbound) Validate() error {
	if m.Content == "" {
		return ErrEmptyContent
	}
	if len(m.Content) > maxContentBytes {
		return ErrContentTooLarge
	}
	return nil
}
