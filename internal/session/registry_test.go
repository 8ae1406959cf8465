package session

import (
	"errors"
	"sync"
	"testing"

	"blindrelay/pkg/types"
)

func TestRegistry_GetOrCreateReturnsSameInstance(t *testing.T) {
	r := NewRegistry()

	s1 := r.GetOrCreate("s1", "judge-1")
	s2 := r.GetOrCreate("s1", "someone-else")

	if s1 != s2 {
		t.Error("GetOrCreate should return the existing session")
	}
	if r.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", r.Count())
	}
}

func TestRegistry_GetMissing(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Get("nope"); ok {
		t.Error("Get should report a missing session")
	}
}

func TestRegistry_RemoveExpiresSession(t *testing.T) {
	r := NewRegistry()
	s := r.GetOrCreate("s1", "judge-1")

	r.Remove("s1")

	if _, ok := r.Get("s1"); ok {
		t.Error("Removed session should not be retrievable")
	}
	// A handle held across removal observes the terminal state.
	if _, err := s.AddParticipant(types.RoleHuman, "h1", nil); !errors.Is(err, ErrSessionCompleted) {
		t.Errorf("Expected ErrSessionCompleted on a removed session, got %v", err)
	}
}

func TestRegistry_ConcurrentGetOrCreate(t *testing.T) {
	r := NewRegistry()

	const goroutines = 20
	sessions := make([]*Session, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sessions[n] = r.GetOrCreate("s1", "judge-1")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if sessions[i] != sessions[0] {
			t.Fatal("Concurrent GetOrCreate produced distinct instances")
		}
	}
	if r.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", r.Count())
	}
}
