package types

import (
	"errors"
	"strings"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{"judge", RoleJudge, false},
		{"human", RoleHuman, false},
		{"ai", RoleAI, false},
		{"Judge", "", true},
		{"moderator", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRole(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidRole) {
				t.Errorf("ParseRole(%q): expected ErrInvalidRole, got %v", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRole(%q) failed: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsValidUserID(t *testing.T) {
	valid := []string{"a", "user-42", "USER_42", strings.Repeat("x", 50)}
	for _, id := range valid {
		if !IsValidUserID(id) {
			t.Errorf("Expected %q valid", id)
		}
	}

	invalid := []string{"", "has space", "emoji🙂", "semi;colon", strings.Repeat("x", 51)}
	for _, id := range invalid {
		if IsValidUserID(id) {
			t.Errorf("Expected %q invalid", id)
		}
	}
}

func TestSessionRecordValidate(t *testing.T) {
	record := &SessionRecord{Name: "First Test", CreatorID: "judge-1"}
	if err := record.Validate(); err != nil {
		t.Errorf("Valid record rejected: %v", err)
	}

	record = &SessionRecord{Name: "", CreatorID: "judge-1"}
	if err := record.Validate(); !errors.Is(err, ErrInvalidSessionName) {
		t.Errorf("Expected ErrInvalidSessionName, got %v", err)
	}

	record = &SessionRecord{Name: strings.Repeat("n", 201), CreatorID: "judge-1"}
	if err := record.Validate(); !errors.Is(err, ErrInvalidSessionName) {
		t.Errorf("Expected ErrInvalidSessionName for long name, got %v", err)
	}

	record = &SessionRecord{Name: "ok", CreatorID: "bad id"}
	if err := record.Validate(); !errors.Is(err, ErrInvalidCreator) {
		t.Errorf("Expected ErrInvalidCreator, got %v", err)
	}
}

func TestInboundValidate(t *testing.T) {
	msg := &Inbound{Type: "chat", Content: "hello"}
	if err := msg.Validate(); err != nil {
		t.Errorf("Valid message rejected: %v", err)
	}

	msg = &Inbound{Type: "chat"}
	if err := msg.Validate(); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("Expected ErrEmptyContent, got %v", err)
	}

	msg = &Inbound{Type: "chat", Content: strings.Repeat("x", maxContentBytes+1)}
	if err := msg.Validate(); !errors.Is(err, ErrContentTooLarge) {
		t.Errorf("Expected ErrContentTooLarge, got %v", err)
	}
}

func TestParticipantByID(t *testing.T) {
	record := &SessionRecord{
		Participants: []Participant{
			{UserID: "j1", Role: RoleJudge},
			{UserID: "h1", Role: RoleHuman},
		},
	}

	p, found := record.ParticipantByID("h1")
	if !found || p.Role != RoleHuman {
		t.Errorf("Expected human participant, got %v found=%t", p, found)
	}
	if _, found := record.ParticipantByID("nobody"); found {
		t.Error("Expected nobody to be absent")
	}
}
