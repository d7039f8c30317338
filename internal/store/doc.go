// Package store provides SQLite-backed storage for the catalog and the run
// log of the flow-shop simulator.
//
// The catalog tables (orders, machines, routing_steps) are the master data a
// simulation loads; Store implements catalog.Source over them. The run log
// (runs, events, snapshots) is append-only and written by Recorder, an
// engine.Observer.
//
// # Determinism
//
//   - Event order is the logical seq stamped by the engine, never wall time.
//   - Every list query carries an ORDER BY, so repeated reads return rows
//     in the same order.
//   - Event and snapshot writes are idempotent: re-recording a step is a
//     no-op.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: run log rows belong to a run
package store
