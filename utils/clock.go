package utils

import (
	"context"
	"sync"
	"time"
)

// Clock is the time source for every periodic loop. Sleep must return
// early, with false, once ctx is done.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) bool
}

// SystemClock is the wall clock. Times it returns carry Go's monotonic
// reading, so durations between them are immune to wall-clock jumps.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// ManualClock only moves when Advance or Set is called. Sleepers wake once
// the clock has moved past their deadline.
type ManualClock struct {
	mu       sync.Mutex
	now      time.Time
	moved    chan struct{}
	sleepers int
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start, moved: make(chan struct{})}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and wakes sleepers.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.broadcastLocked()
	c.mu.Unlock()
}

// Set jumps the clock to t and wakes sleepers.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.broadcastLocked()
	c.mu.Unlock()
}

func (c *ManualClock) broadcastLocked() {
	close(c.moved)
	c.moved = make(chan struct{})
}

// Sleepers returns how many goroutines are blocked in Sleep. Tests wait on
// it before advancing so a loop's deadline is fixed before time moves.
func (c *ManualClock) Sleepers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleepers
}

func (c *ManualClock) Sleep(ctx context.Context, d time.Duration) bool {
	c.mu.Lock()
	deadline := c.now.Add(d)
	c.sleepers++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.sleepers--
		c.mu.Unlock()
	}()

	for {
		c.mu.Lock()
		if !c.now.Before(deadline) {
			c.mu.Unlock()
			return ctx.Err() == nil
		}
		moved := c.moved
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return false
		case <-moved:
		}
	}
}
