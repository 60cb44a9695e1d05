// Package store provides SQLite-backed durable storage for step execution
// logs.
//
// The store is an append-only log with:
//   - Runs: one row per queue worker session
//   - Step executions: one row per dequeued step, with start and end
//     timestamps, elapsed duration and the error text of a failed step
//
// # Ordering
//
// Step executions are ordered by their worker sequence number, never by
// timestamp. Queries use ORDER BY seq ASC so a trace reads back in
// submission order regardless of wall clock adjustments.
//
// # Idempotency
//
// UNIQUE(run_id, seq) makes RecordStep safe to retry; a duplicate write is
// ignored.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads (pvl trace) during writes (pvl run)
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: step executions must belong to a run
package store
