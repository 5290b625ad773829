// Package harness runs simulation scenarios as executable tests.
//
// A scenario names a mission model, carries (or points to) a plan, and
// lists assertions about the run. The harness simulates the plan, records
// the run in a scratch in-memory store, and evaluates every assertion
// against the results and the stored profiles.
//
// # Scenario Format
//
//	name: peel-and-bite
//	description: "Peeling from the stem costs a fruit"
//	model: banana
//	plan:
//	  name: peel-and-bite
//	  horizon: 1h
//	  activities:
//	    - id: peel-1
//	      type: PeelBanana
//	      start: 1s
//	      args: { peelDirection: fromStem }
//	assertions:
//	  - type: final_value
//	    resource: fruit
//	    value: 3.0
//
// A scenario may name a plan file with plan_file instead of an inline
// plan; relative paths resolve from the scenario's directory. Plan files
// ending in .cue are compiled with the compiler package.
//
// # Assertion Types
//
//   - final_value: a resource's value at the horizon
//   - value_at: a resource's value at a given instant, read back from the
//     stored profile
//   - span_window: when an activity's root span opened and closed
//   - span_count: how many spans an activity produced, nested ones included
//   - unfinished: exactly which activities were still running at the horizon
//   - failed: exactly which activities could not be instantiated
//
// # Golden Files
//
// RunWithGolden compares the canonical JSON of a run against
// testdata/golden/<scenario>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
