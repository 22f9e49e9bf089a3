package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the instant NewClock starts at when given a zero time.
var DefaultEpoch = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

// Clock is a manually advanced wall clock for tests.
//
// Every call to Now returns the current instant and then moves the clock
// forward by Step, so records created in sequence get distinct, ordered
// timestamps. Step defaults to zero (a frozen clock).
//
// Thread-safety: all methods are safe for concurrent use.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewClock creates a frozen clock at start (DefaultEpoch when zero).
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = DefaultEpoch
	}
	return &Clock{now: start}
}

// NewSteppingClock creates a clock that advances by step after every read.
func NewSteppingClock(start time.Time, step time.Duration) *Clock {
	c := NewClock(start)
	c.step = step
	return c
}

// Now returns the current instant, then applies the step.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
