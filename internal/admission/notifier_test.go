package admission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNotify_PostsJoinRequest(t *testing.T) {
	var got joinRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected application/json, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier(server.URL)
	err := n.Notify(context.Background(), "s1", "ws://localhost:8000/ws/s1")
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if got.SessionID != "s1" {
		t.Errorf("Expected session_id s1, got %s", got.SessionID)
	}
	if got.WebsocketURL != "ws://localhost:8000/ws/s1" {
		t.Errorf("Unexpected websocket_url: %s", got.WebsocketURL)
	}
}

func TestNotify_NonOKStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	n := NewNotifier(server.URL)
	if err := n.Notify(context.Background(), "s1", "ws://x/ws/s1"); err == nil {
		t.Error("Expected error for non-200 response")
	}
}

func TestNotify_UnreachableService(t *testing.T) {
	n := NewNotifier("http://127.0.0.1:1/api/ai/join")
	if err := n.Notify(context.Background(), "s1", "ws://x/ws/s1"); err == nil {
		t.Error("Expected error for unreachable service")
	}
}

func TestNotify_RespectsContextCancellation(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	n := NewNotifier(server.URL)
	if err := n.Notify(ctx, "s1", "ws://x/ws/s1"); err == nil {
		t.Error("Expected error when context expires")
	}
}
