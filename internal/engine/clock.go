package engine

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonic logical clock for step ordering.
//
// Every executed step is stamped with a strictly increasing seq number.
// Wall-clock timestamps are recorded too but never used for ordering.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
// Used to continue numbering a run recorded in the store.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// NowFunc returns wall-clock time. Tests substitute a fixed clock.
type NowFunc func() time.Time
