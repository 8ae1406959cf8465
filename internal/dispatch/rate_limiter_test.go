package dispatch

import "testing"

func TestRateLimiter_AllowsUpToWindowLimit(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < messagesPerWindow; i++ {
		if !rl.Allow("u1") {
			t.Fatalf("Message %d denied inside the window", i+1)
		}
	}
	if rl.Allow("u1") {
		t.Error("Message over the window limit should be denied")
	}
}

func TestRateLimiter_SendersAreIndependent(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < messagesPerWindow; i++ {
		rl.Allow("noisy")
	}
	if rl.Allow("noisy") {
		t.Fatal("Noisy sender should be limited")
	}
	if !rl.Allow("quiet") {
		t.Error("Another sender must not be affected")
	}
}

func TestRateLimiter_CleanupKeepsActiveSenders(t *testing.T) {
	rl := NewRateLimiter()

	rl.Allow("u1")
	rl.Cleanup()

	rl.mu.Lock()
	_, exists := rl.senders["u1"]
	rl.mu.Unlock()
	if !exists {
		t.Error("Cleanup dropped a sender inside the active window")
	}
}
