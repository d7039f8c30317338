// Package harness runs simulation scenarios and checks them against
// assertions and golden traces.
//
// # Scenario Format
//
// Scenarios are YAML files. The catalog is inline and uses the same shape
// as catalog import files:
//
//	name: single_order
//	description: "One order on one machine finishes after two days"
//	initial_day: 0
//	steps: 2
//	catalog:
//	  machines:
//	    - { id: M1, available_from: 0, available_to: 100, daily_capacity: 8 }
//	  orders:
//	    - { id: O1, start: 0 }
//	  routing:
//	    - { order: O1, machine: M1, sequence: 1, duration: 16 }
//	assertions:
//	  - type: task
//	    after_step: 1
//	    order: O1
//	    machine: M1
//	    remaining: 8
//	  - type: queue
//	    after_step: 2
//	    orders: []
//
// after_step 0 is the state right after the catalog was loaded.
//
// # Assertion Types
//
//   - queue: the queued order ids, in queue order
//   - task: the active task of an order (active: false asserts there is none)
//   - machine: availability, free flag and bound order of a machine
//   - event_count: number of events of a kind, optionally for one order
//   - event_order: events appear in this order, others may lie between
//
// Event assertions see every event recorded up to and including after_step.
//
// # Golden Files
//
// RunWithGolden compares the event trace against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
