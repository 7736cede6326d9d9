package progress

import (
	"sync"
	"time"
)

// Throttle lets at most one event through per interval. The first event
// always passes. A zero interval disables throttling.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	now      func() time.Time
	last     time.Time
	primed   bool
}

// NewThrottle returns a Throttle using the wall clock.
func NewThrottle(interval time.Duration) *Throttle {
	return NewThrottleClock(interval, time.Now)
}

// NewThrottleClock is NewThrottle with an injectable clock.
func NewThrottleClock(interval time.Duration, now func() time.Time) *Throttle {
	if now == nil {
		now = time.Now
	}
	return &Throttle{interval: interval, now: now}
}

// Allow reports whether an event arriving now should be delivered.
func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if t.primed && t.interval > 0 && now.Sub(t.last) < t.interval {
		return false
	}
	t.primed = true
	t.last = now
	return true
}
