// Package engine implements the flow-shop scheduling simulator.
//
// The engine is a deterministic greedy simulator, not an optimizer: each
// day it finishes work, admits new orders and hands every free machine to
// the first queued order whose next operation needs it. There is no
// look-ahead and no backtracking.
//
// ARCHITECTURE:
//
// State bundle:
// All mutable simulation data (machine registry, active tasks, queue, order
// progress, current day) lives in one State value. Engine.Step takes a State
// and returns a new one, which makes every step testable without a timer.
//
// Step order (fixed):
//  1. day++
//  2. availability refresh: every machine's window is re-evaluated for the new day
//  3. completion sweep: tasks lose one day of capacity, finished tasks free their machine
//  4. admission: orders starting today join the back of the queue
//  5. dispatch: queue order decides who gets a free machine
//  6. prune: fully processed orders leave the queue
//
// Single-writer:
// A Simulation owns the State and allows exactly one step in flight. Steps
// never overlap; a second concurrent step is a fatal fault. Display layers
// read Snapshots, which share no memory with the State.
//
// Determinism:
// Catalog order, queue order and a logical event clock fully determine the
// event log. No randomness, no wall-clock input; Replay relies on this.
//
// Faults:
// Per-task and per-order faults are isolated and reported in the StepReport.
// Broken invariants (NOT_FOUND), re-entrancy and unreadable catalogs are
// fatal: the simulation halts until Reset and never rewinds its day.
package engine
