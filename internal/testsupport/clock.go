package testsupport

import (
	"sort"
	"sync"
	"time"

	"confcap/internal/capture"
)

// ManualClock is a capture.Clock that only moves when Advance is called.
// Callbacks run on the goroutine calling Advance.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	clock   *ManualClock
	at      time.Time
	period  time.Duration
	seq     uint64
	fn      func()
	stopped bool
}

// NewManualClock starts the clock at a fixed instant.
func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// Now implements capture.Clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc implements capture.Clock.
func (c *ManualClock) AfterFunc(d time.Duration, fn func()) capture.Timer {
	return c.schedule(d, 0, fn)
}

// Every implements capture.Clock.
func (c *ManualClock) Every(d time.Duration, fn func()) capture.Timer {
	return c.schedule(d, d, fn)
}

func (c *ManualClock) schedule(d, period time.Duration, fn func()) *manualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, at: c.now.Add(d), period: period, seq: c.seq, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing due callbacks in time order.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.at
		if next.period > 0 {
			next.at = next.at.Add(next.period)
			c.seq++
			next.seq = c.seq
		} else {
			next.stopped = true
			c.removeLocked(next)
		}
		fn := next.fn
		c.mu.Unlock()
		fn()
	}
}

// Pending returns the number of scheduled callbacks that have not fired or
// been stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *ManualClock) nextDueLocked(target time.Time) *manualTimer {
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].at.Equal(c.timers[j].at) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].at.Before(c.timers[j].at)
	})
	if len(c.timers) == 0 || c.timers[0].at.After(target) {
		return nil
	}
	return c.timers[0]
}

func (c *ManualClock) removeLocked(t *manualTimer) {
	for i, candidate := range c.timers {
		if candidate == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}

// Stop implements capture.Timer.
func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	t.clock.removeLocked(t)
	return true
}
