// Copyright (c) 2026 Atrium. All rights reserved.

package auth

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter throttles admin verification attempts per client key.
//
// # Why an interface?
//
// The default implementation is in-process and loses its counters on restart.
// Deployments running multiple replicas can swap in a Redis-backed
// implementation without touching the verification flow.
type Limiter interface {
	// Check records one attempt for the key and reports whether it is allowed.
	Check(key string) (Decision, error)

	// Reset clears the counter for the key, typically after a successful login.
	Reset(key string) error
}

type windowEntry struct {
	count       int
	windowStart time.Time
}

// MemoryLimiter is a fixed-window in-memory [Limiter].
//
// Counters are scoped to this process. A restart clears all windows, which is
// an accepted trade-off for the low-volume admin login surface.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*windowEntry

	maxAttempts int
	window      time.Duration

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewMemoryLimiter constructs a limiter allowing maxAttempts per fixed window.
func NewMemoryLimiter(maxAttempts int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		entries:     make(map[string]*windowEntry),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
}

// Check implements [Limiter] with lazy window expiry.
func (limiter *MemoryLimiter) Check(key string) (Decision, error) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := limiter.now()
	entry, found := limiter.entries[key]

	// Start a fresh window when none exists or the previous one has lapsed.
	if !found || now.Sub(entry.windowStart) >= limiter.window {
		entry = &windowEntry{windowStart: now}
		limiter.entries[key] = entry
	}

	resetAt := entry.windowStart.Add(limiter.window)

	if entry.count >= limiter.maxAttempts {
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}

	entry.count++
	return Decision{
		Allowed:   true,
		Remaining: limiter.maxAttempts - entry.count,
		ResetAt:   resetAt,
	}, nil
}

// Reset implements [Limiter].
func (limiter *MemoryLimiter) Reset(key string) error {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	delete(limiter.entries, key)
	return nil
}

// StartCleanup launches a background sweep that removes lapsed windows,
// bounding memory growth from one-off client keys. The goroutine exits when
// the context is cancelled.
func (limiter *MemoryLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				limiter.mu.Lock()
				now := limiter.now()
				for key, entry := range limiter.entries {
					if now.Sub(entry.windowStart) >= limiter.window {
						delete(limiter.entries, key)
					}
				}
				limiter.mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()
}
