package scanner

import (
	"sync"
	"time"
)

// Cooldown suppresses a code for a fixed window after it was emitted.
type Cooldown struct {
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	emitted map[string]time.Time
}

func NewCooldown(window time.Duration) *Cooldown {
	return NewCooldownWithClock(window, time.Now)
}

func NewCooldownWithClock(window time.Duration, now func() time.Time) *Cooldown {
	return &Cooldown{
		window:  window,
		now:     now,
		emitted: make(map[string]time.Time),
	}
}

func (c *Cooldown) ShouldSuppress(code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.emitted[code]
	if !ok {
		return false
	}
	if c.now().Sub(at) < c.window {
		return true
	}
	delete(c.emitted, code)
	return false
}

// MarkEmitted starts the window for code and drops windows that already ran out.
func (c *Cooldown) MarkEmitted(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, at := range c.emitted {
		if now.Sub(at) >= c.window {
			delete(c.emitted, k)
		}
	}
	c.emitted[code] = now
}

func (c *Cooldown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.emitted)
}
