package types

import (
	"time"
)

// Role identifies a participant's seat in a test session. The set is closed:
// every routing and assignment decision switches exhaustively over these three
// values and rejects anything else at the boundary.
type Role string

const (
	RoleJudge Role = "judge"
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
)

// ParseRole converts a wire-level role string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleJudge, RoleHuman, RoleAI:
		return Role(s), nil
	default:
		return "", ErrInvalidRole
	}
}

// Session status values. Status only moves forward:
// waiting -> active -> completed.
const (
	StatusWaiting   = "waiting"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Identity is a verified user identity returned by the token verifier.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Participant is one seat assignment in a durable session record.
type Participant struct {
	UserID   string    `json:"user_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// SessionRecord is the durable representation of a test session. The record
// is the source of truth across restarts; live routing state is rebuilt from
// connections, not from here.
type SessionRecord struct {
	SessionID       string        `json:"session_id" db:"session_id"`
	Name            string        `json:"session_name" db:"name"`
	Description     string        `json:"description" db:"description"`
	CreatorID       string        `json:"creator_id" db:"creator_id"`
	CreatorName     string        `json:"creator_name" db:"creator_name"`
	CreatorEmail    string        `json:"creator_email" db:"creator_email"`
	Status          string        `json:"status" db:"status"`
	Participants    []Participant `json:"participants" db:"participants"`
	JoinCode        string        `json:"join_code" db:"join_code"`
	MaxParticipants int           `json:"max_participants" db:"max_participants"`
	DurationMinutes int           `json:"duration_minutes" db:"duration_minutes"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// ParticipantByID returns the participant entry for a user, if present.
func (r *SessionRecord) ParticipantByID(userID string) (*Participant, bool) {
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			return &r.Participants[i], true
		}
	}
	return nil, false
}

// Inbound is the client-to-server message envelope.
type Inbound struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ChatOut is a relayed chat message. From carries the anonymized sender
// label, never a user ID or a role.
type ChatOut struct {
	Type      string    `json:"type"`
	From      string    `json:"from"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the first server-to-client message on every connection.
type Snapshot struct {
	Type         string          `json:"type"` // always "session_state"
	SessionID    string          `json:"session_id"`
	State        string          `json:"state"`
	YourRole     Role            `json:"your_role"`
	Participants SeatAssignments `json:"participants"`
}

// SeatAssignments maps each seat to the user occupying it, empty when the
// seat was never filled.
type SeatAssignments struct {
	Judge string `json:"judge"`
	Human string `json:"human"`
	AI    string `json:"ai"`
}

// JoinNotice is broadcast to existing participants when a seat is taken.
type JoinNotice struct {
	Type   string `json:"type"` // always "user_joined"
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// LeaveNotice is broadcast to remaining participants on disconnect.
type LeaveNotice struct {
	Type   string `json:"type"` // always "user_left"
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}
