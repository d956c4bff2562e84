// Package pausetest provides a hand-driven pause.Clock for tests.
package pausetest

import (
	"sync"
	"time"

	"cronloop/internal/pause"
)

// Clock is a manual clock. Time only moves when Advance or Set is called.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*timer
}

var _ pause.Clock = (*Clock)(nil)

type timer struct {
	clock *Clock
	at    time.Time
	ch    chan time.Time
}

func (t *timer) C() <-chan time.Time { return t.ch }

func (t *timer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, other := range c.timers {
		if other == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

// NewClock returns a Clock reading start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now implements pause.Clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NewTimer implements pause.Clock. The timer fires once the clock has been
// moved to now+d or beyond.
func (c *Clock) NewTimer(d time.Duration) pause.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &timer{clock: c, at: c.now.Add(d), ch: make(chan time.Time, 1)}
	if d <= 0 {
		t.ch <- c.now
		return t
	}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d and fires due timers.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(c.now.Add(d))
}

// Set moves the clock to t. Moving backwards is allowed but fires nothing.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(t)
}

// Waiters returns the number of pending timers.
func (c *Clock) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// NextWaiter returns the earliest instant a pending timer waits for.
func (c *Clock) NextWaiter() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return time.Time{}, false
	}
	earliest := c.timers[0].at
	for _, t := range c.timers[1:] {
		if t.at.Before(earliest) {
			earliest = t.at
		}
	}
	return earliest, true
}

func (c *Clock) setLocked(now time.Time) {
	c.now = now
	pending := c.timers[:0]
	for _, t := range c.timers {
		if t.at.After(now) {
			pending = append(pending, t)
			continue
		}
		t.ch <- now
	}
	c.timers = pending
}
