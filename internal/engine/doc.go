// Package engine executes low-level steps against a device session.
//
// ARCHITECTURE:
//
// Single-Consumer Step Queue:
// Producers (CLI, inbox watcher, tests) call Worker.Enqueue from any
// goroutine. Exactly one Worker goroutine dequeues and executes, so the
// device session and the System Variable State are only ever touched from
// that goroutine. This gives at most one step in flight per session.
//
// Step Processing Flow:
// 1. Steps are enqueued to a FIFO queue
// 2. Worker.Run() dequeues steps one at a time
// 3. The Executor dispatches the step to the device session
// 4. Faults are logged with the step text and the worker continues
// 5. Each execution is stamped with a sequence number and timestamps and
//    handed to the Recorder
//
// Stopping is cooperative: cancellation and Stop take effect between
// steps and never interrupt a step in flight.
//
// A Monitor polls a power source independently. It only reads from the
// session side and publishes an atomic snapshot.
package engine
