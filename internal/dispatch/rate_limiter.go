package dispatch

import (
	"sync"
	"time"
)

const (
	messagesPerWindow = 100
	windowLength      = time.Minute
)

// RateLimiter bounds per-sender message throughput with a fixed window per
// user.
type RateLimiter struct {
	mu      sync.Mutex
	senders map[string]*senderWindow
}

type senderWindow struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{senders: make(map[string]*senderWindow)}
}

// Allow reports whether userID may send another message in the current
// window.
func (rl *RateLimiter) Allow(userID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	w, exists := rl.senders[userID]
	if !exists || now.Sub(w.windowStart) >= windowLength {
		rl.senders[userID] = &senderWindow{count: 1, windowStart: now}
		return true
	}

	if w.count >= messagesPerWindow {
		return false
	}
	w.count++
	return true
}

// Cleanup drops sender state idle for several windows. Call periodically.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for userID, w := range rl.senders {
		if now.Sub(w.windowStart) > 5*windowLength {
			delete(rl.senders, userID)
		}
	}
}
