package guard

import (
	"context"
	"strings"
	"sync"
	"time"
)

const cooldownHorizon = 5 * time.Minute

// CooldownTracker throttles repeat proof issuance for the same identity. The
// interface exists so a clustered deployment can swap in a shared store
// without touching call sites.
type CooldownTracker interface {
	// Touch records an issuance attempt for identity. When the identity is
	// still cooling down it returns the remaining wait and false, without
	// refreshing the timestamp.
	Touch(identity string) (time.Duration, bool)
}

// MemoryCooldown is the process-local CooldownTracker. Identity comparison is
// case-insensitive.
type MemoryCooldown struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func NewMemoryCooldown(window time.Duration) *MemoryCooldown {
	if window <= 0 {
		window = 60 * time.Second
	}
	return &MemoryCooldown{
		window: window,
		now:    time.Now,
		last:   make(map[string]time.Time),
	}
}

func (c *MemoryCooldown) Touch(identity string) (time.Duration, bool) {
	key := strings.ToLower(strings.TrimSpace(identity))
	if key == "" {
		return 0, true
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if at, ok := c.last[key]; ok {
		if elapsed := now.Sub(at); elapsed < c.window {
			return c.window - elapsed, false
		}
	}
	c.last[key] = now
	return 0, true
}

// RunSweeper purges entries older than the horizon every interval until ctx
// is cancelled.
func (c *MemoryCooldown) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *MemoryCooldown) sweep() {
	cutoff := c.now().Add(-cooldownHorizon)

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, at := range c.last {
		if at.Before(cutoff) {
			delete(c.last, key)
		}
	}
}
