// Package store provides SQLite-backed durable storage for simulation runs.
//
// A run is recorded in three tables:
//   - runs: one row per simulation, created when it starts and completed
//     with its results digest when it finishes
//   - profile_segments: resource profile segments, streamed while the run
//     is in progress
//   - spans: activity spans, written when the run finishes
//
// Rows are ordered by seq columns assigned at insert time, never by
// wall-clock timestamps, so reading a run back is deterministic.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Results and dynamics are stored as canonical JSON produced by
// internal/ir.
package store
