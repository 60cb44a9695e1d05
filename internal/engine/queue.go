package engine

import (
	"sync"
	"time"
)

// Step is one queued unit of work: a single step line or a block of
// lines submitted together.
type Step struct {
	// Text is the step line, or several lines joined by newlines.
	Text string
	// Source names the producer (a file, "cli", "inbox").
	Source string
	// Enqueued is set by the worker when the step is accepted.
	Enqueued time.Time
}

// stepQueue is a thread-safe FIFO queue for steps.
//
// The queue is unbounded so producers never block on a slow device.
// Any goroutine may enqueue; only the Worker's Run loop dequeues.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type stepQueue struct {
	mu     sync.Mutex
	steps  []Step
	closed bool
	signal chan struct{} // Signals step availability (buffered, size 1)
}

// newStepQueue creates an empty step queue.
func newStepQueue() *stepQueue {
	return &stepQueue{
		steps:  make([]Step, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a step to the back of the queue.
// Returns false if the queue is closed.
func (q *stepQueue) Enqueue(s Step) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.steps = append(q.steps, s)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Step{}, false) if the queue is empty.
func (q *stepQueue) TryDequeue() (Step, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.steps) == 0 {
		return Step{}, false
	}

	s := q.steps[0]
	q.steps[0] = Step{}

	if len(q.steps) == 1 {
		q.steps = q.steps[:0]
	} else {
		q.steps = q.steps[1:]
	}

	return s, true
}

// Wait returns a channel that signals when steps may be available.
// The channel is closed when the queue is closed.
func (q *stepQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *stepQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.steps)
}

// Closed reports whether Close has been called.
func (q *stepQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Drop removes every queued step and returns how many were removed.
func (q *stepQueue) Drop() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.steps)
	clear(q.steps)
	q.steps = q.steps[:0]
	return n
}

// Close signals that no more steps will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *stepQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
