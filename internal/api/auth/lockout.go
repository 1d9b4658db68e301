package auth

import (
	"strings"
	"sync"
	"time"
)

type lockoutEntry struct {
	failures  int
	expiresAt time.Time // zero while not locked
}

func (e *lockoutEntry) locked(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.Before(e.expiresAt)
}

// LockoutTracker counts failed sign-ins per email and locks the account for
// a fixed duration once the threshold is reached. State is in memory only and
// resets on restart.
type LockoutTracker struct {
	mu        sync.RWMutex
	entries   map[string]*lockoutEntry
	threshold int
	duration  time.Duration
	now       func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLockoutTracker creates a tracker and starts its cleanup goroutine.
// Call Stop to release it.
func NewLockoutTracker(threshold int, duration time.Duration) *LockoutTracker {
	t := &LockoutTracker{
		entries:   make(map[string]*lockoutEntry),
		threshold: threshold,
		duration:  duration,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
	go t.cleanupLoop(5 * time.Minute)
	return t
}

// lockoutKey folds case so "Ada@x.io" and "ada@x.io" share a counter.
func lockoutKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RecordFailure records a failed sign-in and reports whether the account is
// now locked.
func (t *LockoutTracker) RecordFailure(email string) bool {
	key := lockoutKey(email)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok {
		entry = &lockoutEntry{}
		t.entries[key] = entry
	}
	if entry.locked(now) {
		return true
	}
	if !entry.expiresAt.IsZero() {
		// previous lockout expired; start counting again
		*entry = lockoutEntry{}
	}

	entry.failures++
	if t.threshold > 0 && entry.failures >= t.threshold {
		entry.expiresAt = now.Add(t.duration)
		return true
	}
	return false
}

// IsLocked returns true if the account is currently locked.
func (t *LockoutTracker) IsLocked(email string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[lockoutKey(email)]
	return ok && entry.locked(t.now())
}

// RemainingLockoutTime returns how long until the lockout expires.
func (t *LockoutTracker) RemainingLockoutTime(email string) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[lockoutKey(email)]
	if !ok || entry.expiresAt.IsZero() {
		return 0
	}
	if remaining := entry.expiresAt.Sub(t.now()); remaining > 0 {
		return remaining
	}
	return 0
}

// ClearFailures forgets failed attempts after a successful sign-in.
func (t *LockoutTracker) ClearFailures(email string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, lockoutKey(email))
}

// Stop ends the cleanup goroutine.
func (t *LockoutTracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *LockoutTracker) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.cleanup()
		case <-t.stop:
			return
		}
	}
}

// cleanup drops entries whose lockout has expired.
func (t *LockoutTracker) cleanup() {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for key, entry := range t.entries {
		if !entry.expiresAt.IsZero() && !entry.locked(now) {
			delete(t.entries, key)
		}
	}
}
