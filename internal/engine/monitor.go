package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/pvl/internal/device"
)

// DefaultMonitorInterval is the power-state polling period.
const DefaultMonitorInterval = 5 * time.Second

// PowerSnapshot is the last observed power state.
type PowerSnapshot struct {
	State string
	Err   error // set when the last poll failed; State keeps the previous value
	At    time.Time
	Polls int64
}

// Monitor polls a device.PowerSource on its own goroutine.
//
// The Run goroutine is the only writer of the snapshot. It never touches
// the executor or the session; readers get a consistent copy through
// Snapshot.
type Monitor struct {
	src      device.PowerSource
	interval time.Duration
	now      NowFunc
	snap     atomic.Pointer[PowerSnapshot]
}

// NewMonitor creates a monitor polling src every interval. A non-positive
// interval selects DefaultMonitorInterval.
func NewMonitor(src device.PowerSource, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	m := &Monitor{src: src, interval: interval, now: time.Now}
	m.snap.Store(&PowerSnapshot{})
	return m
}

// Snapshot returns the last observation.
// Thread-safe: may be called from any goroutine.
func (m *Monitor) Snapshot() PowerSnapshot {
	return *m.snap.Load()
}

// Run polls until ctx is cancelled. The first poll happens immediately.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.poll(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	prev := m.snap.Load()
	next := &PowerSnapshot{State: prev.State, At: m.now(), Polls: prev.Polls + 1}

	state, err := m.src.PowerState(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		next.Err = err
		if prev.Err == nil {
			slog.Warn("power state poll failed", "error", err)
		}
	} else {
		next.State = state
		if state != prev.State {
			slog.Info("power state changed", "from", prev.State, "to", state)
		}
	}
	m.snap.Store(next)
}
