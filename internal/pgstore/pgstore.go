// Package pgstore reads the catalog from PostgreSQL.
//
// The tables mirror the SQLite catalog: orders, machines (nullable window
// bounds) and routing_steps. Connections go through the pgx database/sql
// driver.
package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nikonych/fliessfertigung/internal/catalog"
)

// Schema creates the catalog tables if they do not exist.
const Schema = `
CREATE TABLE IF NOT EXISTS orders (
    id       TEXT PRIMARY KEY,
    quantity INTEGER NOT NULL DEFAULT 1,
    start    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS machines (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL DEFAULT '',
    available_from INTEGER,
    available_to   INTEGER,
    daily_capacity DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS routing_steps (
    order_id   TEXT NOT NULL,
    machine_id TEXT NOT NULL,
    sequence   INTEGER NOT NULL,
    duration   DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (order_id, sequence)
);
`

// Options tune the connection retry loop.
type Options struct {
	MaxRetries int
	RetryDelay time.Duration
	PingTTL    time.Duration
}

// DefaultOptions retries for about 20 seconds.
func DefaultOptions() Options {
	return Options{
		MaxRetries: 10,
		RetryDelay: 2 * time.Second,
		PingTTL:    5 * time.Second,
	}
}

// Source is a catalog.Source backed by PostgreSQL.
type Source struct {
	db *sql.DB
}

// Open connects to dsn, retrying until the server answers a ping, the
// retries run out, or ctx is cancelled.
func Open(ctx context.Context, dsn string, opts Options) (*Source, error) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}

	var err error
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		var db *sql.DB
		db, err = sql.Open("pgx", dsn)
		if err == nil {
			pctx, cancel := context.WithTimeout(ctx, opts.PingTTL)
			err = db.PingContext(pctx)
			cancel()
			if err == nil {
				return &Source{db: db}, nil
			}
			_ = db.Close()
		}

		slog.Warn("postgres not reachable", "attempt", attempt, "max", opts.MaxRetries, "error", err)
		if attempt == opts.MaxRetries {
			break
		}
		select {
		case <-time.After(opts.RetryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("postgres connect canceled: %w", ctx.Err())
		}
	}
	return nil, fmt.Errorf("postgres unreachable after %d attempts: %w", opts.MaxRetries, err)
}

// NewSource wraps an open database handle.
func NewSource(db *sql.DB) *Source {
	return &Source{db: db}
}

// Close closes the database handle.
func (s *Source) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the catalog tables.
func (s *Source) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ListOrders implements catalog.Source.
func (s *Source) ListOrders(ctx context.Context) ([]catalog.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, quantity, start
		FROM orders
		ORDER BY start ASC, id COLLATE "C" ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []catalog.Order{}
	for rows.Next() {
		var o catalog.Order
		if err := rows.Scan(&o.ID, &o.Quantity, &o.Start); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

// ListMachines implements catalog.Source.
func (s *Source) ListMachines(ctx context.Context) ([]catalog.Machine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, available_from, available_to, daily_capacity
		FROM machines
		ORDER BY id COLLATE "C" ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query machines: %w", err)
	}
	defer rows.Close()

	machines := []catalog.Machine{}
	for rows.Next() {
		var m catalog.Machine
		var from, to sql.NullInt64
		if err := rows.Scan(&m.ID, &m.Name, &from, &to, &m.DailyCapacity); err != nil {
			return nil, fmt.Errorf("scan machine: %w", err)
		}
		if from.Valid && to.Valid {
			m.Window = &catalog.Window{From: int(from.Int64), To: int(to.Int64)}
		}
		machines = append(machines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate machines: %w", err)
	}
	return machines, nil
}

// ListRoutingSteps implements catalog.Source.
func (s *Source) ListRoutingSteps(ctx context.Context) ([]catalog.RoutingStep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, machine_id, sequence, duration
		FROM routing_steps
		ORDER BY order_id COLLATE "C" ASC, sequence ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query routing steps: %w", err)
	}
	defer rows.Close()

	steps := []catalog.RoutingStep{}
	for rows.Next() {
		var rs catalog.RoutingStep
		if err := rows.Scan(&rs.OrderID, &rs.MachineID, &rs.Sequence, &rs.Duration); err != nil {
			return nil, fmt.Errorf("scan routing step: %w", err)
		}
		steps = append(steps, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routing steps: %w", err)
	}
	return steps, nil
}

// ReplaceCatalog replaces the catalog tables with the contents of src in
// one transaction.
func (s *Source) ReplaceCatalog(ctx context.Context, src catalog.Source) error {
	orders, err := src.ListOrders(ctx)
	if err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	machines, err := src.ListMachines(ctx)
	if err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	steps, err := src.ListRoutingSteps(ctx)
	if err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace catalog: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `TRUNCATE routing_steps, orders, machines`); err != nil {
		return fmt.Errorf("replace catalog: truncate: %w", err)
	}
	for _, o := range orders {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO orders (id, quantity, start) VALUES ($1, $2, $3)`,
			o.ID, o.Quantity, o.Start); err != nil {
			return fmt.Errorf("replace catalog: order %s: %w", o.ID, err)
		}
	}
	for _, m := range machines {
		var from, to sql.NullInt64
		if m.Window != nil {
			from = sql.NullInt64{Int64: int64(m.Window.From), Valid: true}
			to = sql.NullInt64{Int64: int64(m.Window.To), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO machines (id, name, available_from, available_to, daily_capacity) VALUES ($1, $2, $3, $4, $5)`,
			m.ID, m.Name, from, to, m.DailyCapacity); err != nil {
			return fmt.Errorf("replace catalog: machine %s: %w", m.ID, err)
		}
	}
	for _, rs := range steps {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO routing_steps (order_id, machine_id, sequence, duration) VALUES ($1, $2, $3, $4)`,
			rs.OrderID, rs.MachineID, rs.Sequence, rs.Duration); err != nil {
			return fmt.Errorf("replace catalog: routing step %s/%d: %w", rs.OrderID, rs.Sequence, err)
		}
	}
	return tx.Commit()
}

var _ catalog.Source = (*Source)(nil)
