// Package engine drives tasks through simulated time.
//
// ARCHITECTURE:
//
// Instant Loop:
// The engine owns one timeline and one job queue. Each Step takes every job
// scheduled at the earliest pending instant, waits the timeline up to that
// instant, and steps the jobs inside a single frame:
//  1. Waiting conditions are searched up to the next scheduled job
//  2. Jobs at the earliest instant are popped in (time, seq) order
//  3. Each job's task is stepped until it suspends, on its own branch
//  4. Branches are joined and the instant's event graph is committed
//
// Status Handling:
// Completed wakes a blocked caller in the same branch. Delayed requeues the
// continuation. CallingTask blocks the caller and runs the child on a new
// branch. AwaitingCondition parks the continuation until a condition search
// finds the instant it holds.
//
// The engine is logically single-threaded. Concurrency between tasks means
// simultaneity in simulated time, resolved by the frame's fork and join,
// never parallel execution.
//
// Ordering is deterministic: jobs at one instant run in the order they were
// scheduled, and waiting conditions are searched in the order tasks began
// waiting.
package engine
