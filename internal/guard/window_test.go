package guard

import (
	"testing"
	"time"
)

func TestWindow_AllowEnforcesLimit(t *testing.T) {
	current := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	w := NewWindow(3, time.Minute)
	w.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		ok, _ := w.Allow("10.0.0.1")
		if !ok {
			t.Fatalf("expected request %d to be allowed", i+1)
		}
	}

	ok, retryAfter := w.Allow("10.0.0.1")
	if ok {
		t.Fatalf("expected fourth request to be rejected")
	}
	if retryAfter != time.Minute {
		t.Fatalf("expected retry-after of one minute, got %v", retryAfter)
	}

	// Other keys keep their own budget.
	if ok, _ := w.Allow("10.0.0.2"); !ok {
		t.Fatalf("expected different key to be allowed")
	}
}

func TestWindow_ResetsAfterWindowElapses(t *testing.T) {
	current := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	w := NewWindow(1, time.Minute)
	w.now = func() time.Time { return current }

	if ok, _ := w.Allow("key"); !ok {
		t.Fatalf("expected first request to be allowed")
	}
	if ok, _ := w.Allow("key"); ok {
		t.Fatalf("expected second request to be rejected")
	}

	current = current.Add(time.Minute)
	if ok, _ := w.Allow("key"); !ok {
		t.Fatalf("expected request after window reset to be allowed")
	}
}

func TestWindow_RetryAfterShrinksOverTime(t *testing.T) {
	current := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	w := NewWindow(1, time.Minute)
	w.now = func() time.Time { return current }

	w.Allow("key")
	current = current.Add(40 * time.Second)
	ok, retryAfter := w.Allow("key")
	if ok {
		t.Fatalf("expected request inside window to be rejected")
	}
	if retryAfter != 20*time.Second {
		t.Fatalf("expected 20s retry-after, got %v", retryAfter)
	}
}

func TestWindow_SweepDropsOnlyExpiredSlots(t *testing.T) {
	current := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	w := NewWindow(5, time.Minute)
	w.now = func() time.Time { return current }

	w.Allow("old")
	current = current.Add(2 * time.Minute)
	w.Allow("fresh")

	w.Sweep()

	w.mu.Lock()
	_, oldKept := w.slots["old"]
	_, freshKept := w.slots["fresh"]
	w.mu.Unlock()

	if oldKept {
		t.Fatalf("expected expired slot to be swept")
	}
	if !freshKept {
		t.Fatalf("expected live slot to survive the sweep")
	}
}
