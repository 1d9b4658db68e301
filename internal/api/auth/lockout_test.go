package auth

import (
	"testing"
	"time"
)

// newTestTracker returns a tracker driven by a manual clock.
func newTestTracker(t *testing.T, threshold int, duration time.Duration) (*LockoutTracker, *time.Time) {
	t.Helper()
	tracker := NewLockoutTracker(threshold, duration)
	t.Cleanup(tracker.Stop)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now }
	return tracker, &now
}

func TestLockoutTracker_Basic(t *testing.T) {
	tracker, _ := newTestTracker(t, 3, time.Minute)
	email := "ada@example.com"

	if tracker.IsLocked(email) {
		t.Error("account should not be locked initially")
	}

	tracker.RecordFailure(email)
	tracker.RecordFailure(email)
	if tracker.IsLocked(email) {
		t.Error("account should not be locked after 2 failures (threshold=3)")
	}

	if !tracker.RecordFailure(email) {
		t.Error("RecordFailure() should report the lock")
	}
	if !tracker.IsLocked(email) {
		t.Error("account should be locked after 3 failures")
	}
}

func TestLockoutTracker_CaseInsensitive(t *testing.T) {
	tracker, _ := newTestTracker(t, 2, time.Minute)

	tracker.RecordFailure("Ada@Example.com")
	tracker.RecordFailure(" ada@example.com ")

	if !tracker.IsLocked("ADA@EXAMPLE.COM") {
		t.Error("failures under different casing should share a counter")
	}
}

func TestLockoutTracker_LockoutExpires(t *testing.T) {
	tracker, now := newTestTracker(t, 2, time.Minute)
	email := "ada@example.com"

	tracker.RecordFailure(email)
	tracker.RecordFailure(email)
	if !tracker.IsLocked(email) {
		t.Fatal("account should be locked")
	}

	*now = now.Add(61 * time.Second)
	if tracker.IsLocked(email) {
		t.Error("lockout should have expired")
	}

	// Counting restarts after expiry.
	if tracker.RecordFailure(email) {
		t.Error("first failure after expiry should not lock")
	}
}

func TestLockoutTracker_ClearFailures(t *testing.T) {
	tracker, _ := newTestTracker(t, 3, time.Hour)
	email := "ada@example.com"

	for i := 0; i < 3; i++ {
		tracker.RecordFailure(email)
	}
	if !tracker.IsLocked(email) {
		t.Fatal("account should be locked")
	}

	tracker.ClearFailures(email)
	if tracker.IsLocked(email) {
		t.Error("account should not be locked after clear")
	}
}

func TestLockoutTracker_RemainingTime(t *testing.T) {
	tracker, now := newTestTracker(t, 1, 100*time.Second)
	email := "ada@example.com"

	if got := tracker.RemainingLockoutTime(email); got != 0 {
		t.Errorf("remaining = %v, want 0", got)
	}

	tracker.RecordFailure(email)
	*now = now.Add(40 * time.Second)

	if got := tracker.RemainingLockoutTime(email); got != 60*time.Second {
		t.Errorf("remaining = %v, want 60s", got)
	}
}

func TestLockoutTracker_IndependentAccounts(t *testing.T) {
	tracker, _ := newTestTracker(t, 2, time.Hour)

	tracker.RecordFailure("one@example.com")
	tracker.RecordFailure("one@example.com")

	if !tracker.IsLocked("one@example.com") {
		t.Error("first account should be locked")
	}
	if tracker.IsLocked("two@example.com") {
		t.Error("second account should not be locked")
	}
}

func TestLockoutTracker_Cleanup(t *testing.T) {
	tracker, now := newTestTracker(t, 1, time.Minute)

	tracker.RecordFailure("ada@example.com")
	*now = now.Add(2 * time.Minute)
	tracker.cleanup()

	tracker.mu.RLock()
	n := len(tracker.entries)
	tracker.mu.RUnlock()
	if n != 0 {
		t.Errorf("entries after cleanup = %d, want 0", n)
	}
}
