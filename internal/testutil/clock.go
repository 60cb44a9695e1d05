package testutil

import (
	"sync"
	"time"
)

// Epoch is the first timestamp a DeterministicClock returns.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultTick is the time a DeterministicClock advances per call.
const DefaultTick = time.Second

// DeterministicClock is a wall clock for tests: every call to Now returns
// the previous value plus a fixed tick, starting at Epoch.
//
// Passing clock.Now as an engine.NowFunc makes step timestamps and
// elapsed durations reproducible, so traces can be golden-compared.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	tick  time.Duration
	calls int64
}

// NewDeterministicClock creates a clock advancing by DefaultTick.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{tick: DefaultTick}
}

// NewDeterministicClockTick creates a clock advancing by tick.
func NewDeterministicClockTick(tick time.Duration) *DeterministicClock {
	return &DeterministicClock{tick: tick}
}

// Now returns Epoch on the first call and one tick later on each
// following call.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := Epoch.Add(time.Duration(c.calls) * c.tick)
	c.calls++
	return t
}

// Calls returns how many times Now has been called.
func (c *DeterministicClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Reset rewinds the clock so the next Now returns Epoch.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
