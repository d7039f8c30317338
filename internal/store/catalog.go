package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nikonych/fliessfertigung/internal/catalog"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// UpsertOrder inserts an order or replaces the one with the same id.
func (s *Store) UpsertOrder(ctx context.Context, o catalog.Order) error {
	if err := upsertOrder(ctx, s.db, o); err != nil {
		return fmt.Errorf("upsert order %s: %w", o.ID, err)
	}
	return nil
}

func upsertOrder(ctx context.Context, ex execer, o catalog.Order) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO orders (id, quantity, start)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			quantity = excluded.quantity,
			start = excluded.start
	`, o.ID, o.Quantity, o.Start)
	return err
}

// UpsertMachine inserts a machine or replaces the one with the same id.
// A nil window is stored as NULL bounds.
func (s *Store) UpsertMachine(ctx context.Context, m catalog.Machine) error {
	if err := upsertMachine(ctx, s.db, m); err != nil {
		return fmt.Errorf("upsert machine %s: %w", m.ID, err)
	}
	return nil
}

func upsertMachine(ctx context.Context, ex execer, m catalog.Machine) error {
	var from, to sql.NullInt64
	if m.Window != nil {
		from = sql.NullInt64{Int64: int64(m.Window.From), Valid: true}
		to = sql.NullInt64{Int64: int64(m.Window.To), Valid: true}
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO machines (id, name, available_from, available_to, daily_capacity)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			available_from = excluded.available_from,
			available_to = excluded.available_to,
			daily_capacity = excluded.daily_capacity
	`, m.ID, m.Name, from, to, m.DailyCapacity)
	return err
}

// UpsertRoutingStep inserts a routing step or replaces the one with the
// same (order, sequence). Neither the order nor the machine has to exist.
func (s *Store) UpsertRoutingStep(ctx context.Context, rs catalog.RoutingStep) error {
	if err := upsertRoutingStep(ctx, s.db, rs); err != nil {
		return fmt.Errorf("upsert routing step %s/%d: %w", rs.OrderID, rs.Sequence, err)
	}
	return nil
}

func upsertRoutingStep(ctx context.Context, ex execer, rs catalog.RoutingStep) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO routing_steps (order_id, machine_id, sequence, duration)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(order_id, sequence) DO UPDATE SET
			machine_id = excluded.machine_id,
			duration = excluded.duration
	`, rs.OrderID, rs.MachineID, rs.Sequence, rs.Duration)
	return err
}

// DeleteOrder removes an order together with its routing steps.
func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete order %s: begin tx: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM routing_steps WHERE order_id = ?`, id); err != nil {
		return fmt.Errorf("delete order %s: routing steps: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	return tx.Commit()
}

// DeleteMachine removes a machine. Routing steps that name it are kept and
// surface as data faults at dispatch.
func (s *Store) DeleteMachine(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM machines WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete machine %s: %w", id, err)
	}
	return nil
}

// ImportCatalog replaces the whole catalog with the contents of src in a
// single transaction. The run log is left untouched.
func (s *Store) ImportCatalog(ctx context.Context, src catalog.Source) error {
	orders, err := src.ListOrders(ctx)
	if err != nil {
		return fmt.Errorf("import catalog: %w", err)
	}
	machines, err := src.ListMachines(ctx)
	if err != nil {
		return fmt.Errorf("import catalog: %w", err)
	}
	steps, err := src.ListRoutingSteps(ctx)
	if err != nil {
		return fmt.Errorf("import catalog: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("import catalog: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"routing_steps", "orders", "machines"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("import catalog: clear %s: %w", table, err)
		}
	}
	for _, o := range orders {
		if err := upsertOrder(ctx, tx, o); err != nil {
			return fmt.Errorf("import catalog: order %s: %w", o.ID, err)
		}
	}
	for _, m := range machines {
		if err := upsertMachine(ctx, tx, m); err != nil {
			return fmt.Errorf("import catalog: machine %s: %w", m.ID, err)
		}
	}
	for _, rs := range steps {
		if err := upsertRoutingStep(ctx, tx, rs); err != nil {
			return fmt.Errorf("import catalog: routing step %s/%d: %w", rs.OrderID, rs.Sequence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import catalog: commit: %w", err)
	}
	return nil
}

// ListOrders implements catalog.Source.
func (s *Store) ListOrders(ctx context.Context) ([]catalog.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, quantity, start
		FROM orders
		ORDER BY start ASC, id COLLATE BINARY ASC
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

// ListMachines implements catalog.Source. Machines with either window
// bound NULL come back without a window.
func (s *Store) ListMachines(ctx context.Context) ([]catalog.Machine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, available_from, available_to, daily_capacity
		FROM machines
		ORDER BY id COLLATE BINARY ASC
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
func (s *Store) ListRoutingSteps(ctx context.Context) ([]catalog.RoutingStep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, machine_id, sequence, duration
		FROM routing_steps
		ORDER BY order_id COLLATE BINARY ASC, sequence ASC
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

var _ catalog.Source = (*Store)(nil)
