package api

import (
	"sync"
	"time"
)

// rateLimiter caps mutations per caller in fixed one-window buckets.
// ARCHITECTURAL DISCOVERY: Per-caller state tracking with periodic sweeps keeps memory bounded
type rateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	callers   map[string]*callerWindow
	lastSweep time.Time
	now       func() time.Time
}

type callerWindow struct {
	count int
	start time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		callers: make(map[string]*callerWindow),
		now:     time.Now,
	}
}

// Allow records one mutation for key and reports whether it fits the window.
func (rl *rateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= rl.window {
		rl.sweep(now)
	}

	w, ok := rl.callers[key]
	if !ok || now.Sub(w.start) >= rl.window {
		rl.callers[key] = &callerWindow{count: 1, start: now}
		return true
	}
	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

// sweep drops callers idle for five windows. Caller holds mu.
func (rl *rateLimiter) sweep(now time.Time) {
	for key, w := range rl.callers {
		if now.Sub(w.start) > 5*rl.window {
			delete(rl.callers, key)
		}
	}
	rl.lastSweep = now
}

func (rl *rateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.callers)
}
