package testutil

import (
	"sync"
	"time"
)

// FixedClock returns the same instant until moved.
//
// Thread-safety: all methods are safe for concurrent use.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock stopped at now.
func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now}
}

// Date creates a clock stopped at midnight UTC on the given day.
func Date(year int, month time.Month, day int) *FixedClock {
	return NewFixedClock(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// Now returns the stopped instant.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
