// Package guard holds the in-process abuse throttles: a fixed-window
// per-source counter and a per-identity issuance cooldown. Both structures are
// process-local by design; clustered deployments get best-effort throttling
// here and rely on the token ledger's attempt cap as the primary control.
package guard

import (
	"sync"
	"time"
)

// Window is a fixed-window request counter keyed by an arbitrary string
// (normally a source IP). Windows reset lazily on read; Sweep exists only to
// reclaim memory from idle keys.
type Window struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	slots map[string]*windowSlot
}

type windowSlot struct {
	count   int
	resetAt time.Time
}

func NewWindow(limit int, window time.Duration) *Window {
	return &Window{
		limit:  limit,
		window: window,
		now:    time.Now,
		slots:  make(map[string]*windowSlot),
	}
}

// Allow records one hit against key. When the window budget is exhausted it
// returns false plus the time remaining until the window resets.
func (w *Window) Allow(key string) (bool, time.Duration) {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	slot, ok := w.slots[key]
	if !ok || !now.Before(slot.resetAt) {
		w.slots[key] = &windowSlot{count: 1, resetAt: now.Add(w.window)}
		return true, 0
	}
	if slot.count >= w.limit {
		return false, slot.resetAt.Sub(now)
	}
	slot.count++
	return true, 0
}

// Sweep drops expired windows. Expiry itself is enforced on read; this only
// bounds memory.
func (w *Window) Sweep() {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	for key, slot := range w.slots {
		if !now.Before(slot.resetAt) {
			delete(w.slots, key)
		}
	}
}
