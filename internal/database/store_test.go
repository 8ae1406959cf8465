package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	dbconfig "blindrelay/pkg/database"
	"blindrelay/pkg/interfaces"
	"blindrelay/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	config := dbconfig.DefaultConfig()
	config.DatabasePath = filepath.Join(t.TempDir(), "test.db")

	store, err := NewStore(config)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRecord(sessionID, joinCode string) *types.SessionRecord {
	now := time.Now().UTC()
	return &types.SessionRecord{
		SessionID:    sessionID,
		Name:         "Test Session",
		Description:  "a test",
		CreatorID:    "judge-1",
		CreatorName:  "Judge",
		CreatorEmail: "judge@example.com",
		Status:       types.StatusWaiting,
		Participants: []types.Participant{
			{UserID: "judge-1", Name: "Judge", Role: types.RoleJudge, JoinedAt: now},
		},
		JoinCode:        joinCode,
		MaxParticipants: 3,
		DurationMinutes: 30,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestCreateAndGetSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := testRecord("s1", "ABC123")
	if err := store.CreateSession(ctx, record); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, err := store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.SessionID != "s1" || got.Name != "Test Session" || got.JoinCode != "ABC123" {
		t.Errorf("Record fields not round-tripped: %+v", got)
	}
	if got.Status != types.StatusWaiting {
		t.Errorf("Expected waiting status, got %s", got.Status)
	}
	if len(got.Participants) != 1 || got.Participants[0].UserID != "judge-1" {
		t.Errorf("Participants not round-tripped: %+v", got.Participants)
	}
	if got.MaxParticipants != 3 || got.DurationMinutes != 30 {
		t.Errorf("Limits not round-tripped: %+v", got)
	}
}

func TestCreateSession_RejectsInvalidRecord(t *testing.T) {
	store := newTestStore(t)

	record := testRecord("s1", "ABC123")
	record.Name = ""
	if err := store.CreateSession(context.Background(), record); err == nil {
		t.Error("Expected validation error for empty name")
	}
}

func TestGetSession_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSession(context.Background(), "missing")
	if !errors.Is(err, interfaces.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestFindByJoinCode(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateSession(ctx, testRecord("s1", "JOINME")); err != nil {
		t.Fatal(err)
	}

	got, err := store.FindByJoinCode(ctx, "JOINME")
	if err != nil {
		t.Fatalf("FindByJoinCode failed: %v", err)
	}
	if got.SessionID != "s1" {
		t.Errorf("Expected s1, got %s", got.SessionID)
	}

	if _, err := store.FindByJoinCode(ctx, "NOPE"); !errors.Is(err, interfaces.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateSession(ctx, testRecord("s1", "ABC123")); err != nil {
		t.Fatal(err)
	}

	if err := store.UpdateStatus(ctx, "s1", types.StatusActive); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	got, err := store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.StatusActive {
		t.Errorf("Expected active, got %s", got.Status)
	}

	if err := store.UpdateStatus(ctx, "missing", types.StatusActive); !errors.Is(err, interfaces.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateSession(ctx, testRecord("s1", "ABC123")); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := store.GetSession(ctx, "s1"); !errors.Is(err, interfaces.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := store.DeleteSession(ctx, "s1"); !errors.Is(err, interfaces.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound for double delete, got %v", err)
	}
}

func TestAddParticipant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateSession(ctx, testRecord("s1", "ABC123")); err != nil {
		t.Fatal(err)
	}

	participant := &types.Participant{
		UserID:   "h1",
		Name:     "Human",
		Role:     types.RoleHuman,
		JoinedAt: time.Now().UTC(),
	}
	if err := store.AddParticipant(ctx, "s1", participant); err != nil {
		t.Fatalf("AddParticipant failed: %v", err)
	}

	got, err := store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Participants) != 2 {
		t.Fatalf("Expected 2 participants, got %d", len(got.Participants))
	}
	p, found := got.ParticipantByID("h1")
	if !found || p.Role != types.RoleHuman {
		t.Errorf("Added participant not found: %v", got.Participants)
	}

	if err := store.AddParticipant(ctx, "missing", participant); !errors.Is(err, interfaces.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestListUserSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Three sessions created by judge-1, one joined by h1, one unrelated.
	for i := 0; i < 3; i++ {
		record := testRecord(fmt.Sprintf("s%d", i), fmt.Sprintf("CODE%02d", i))
		record.CreatedAt = record.CreatedAt.Add(time.Duration(i) * time.Second)
		if err := store.CreateSession(ctx, record); err != nil {
			t.Fatal(err)
		}
	}
	other := testRecord("other", "OTHER1")
	other.CreatorID = "someone-else"
	other.Participants = []types.Participant{{UserID: "someone-else", Role: types.RoleJudge}}
	if err := store.CreateSession(ctx, other); err != nil {
		t.Fatal(err)
	}
	if err := store.AddParticipant(ctx, "other", &types.Participant{UserID: "h1", Role: types.RoleHuman}); err != nil {
		t.Fatal(err)
	}

	sessions, err := store.ListUserSessions(ctx, "judge-1", 50)
	if err != nil {
		t.Fatalf("ListUserSessions failed: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("Expected 3 sessions for judge-1, got %d", len(sessions))
	}
	// Newest first.
	if sessions[0].SessionID != "s2" {
		t.Errorf("Expected newest first, got %s", sessions[0].SessionID)
	}

	joined, err := store.ListUserSessions(ctx, "h1", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(joined) != 1 || joined[0].SessionID != "other" {
		t.Errorf("Expected h1's joined session only, got %v", joined)
	}

	limited, err := store.ListUserSessions(ctx, "judge-1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected limit respected, got %d", len(limited))
	}

	none, err := store.ListUserSessions(ctx, "stranger", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no sessions for stranger, got %d", len(none))
	}
}

func TestHealthCheck(t *testing.T) {
	store := newTestStore(t)

	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func TestClose_RejectsFurtherWrites(t *testing.T) {
	store := newTestStore(t)

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := store.CreateSession(context.Background(), testRecord("s1", "ABC123")); err == nil {
		t.Error("Expected error writing to a closed store")
	}
}
