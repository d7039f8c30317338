// Package catalog holds the immutable plant data a simulation run works on.
//
// A Catalog is built once per run from a Source (SQLite, Postgres, an
// imported file or an in-memory StaticSource) and is read-only afterwards:
//   - Orders: units of demand with a quantity and a start day
//   - Machines: resources with a daily capacity and an availability window
//   - Routing steps: the strictly linear operation plan of each order
//
// Load reports two kinds of findings. Structural problems (duplicate ids,
// duplicate sequence positions within one order) make the catalog unusable
// and are returned as a *LoadError. Everything else is reported as an Issue
// and the affected data is either dropped (routing steps of unknown orders)
// or kept and treated conservatively (machines without a valid window are
// never available).
package catalog
