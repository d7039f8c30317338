package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

// Catalog is the immutable set of orders, machines and routing plans of one
// simulation run. All accessors return copies or values; the catalog is safe
// for concurrent reads.
type Catalog struct {
	orders   []Order
	machines []Machine
	orderIdx map[string]int
	macIdx   map[string]int
	plans    map[string][]RoutingStep
	issues   []Issue
}

// Load reads all three tables from src and builds a Catalog.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	orders, err := src.ListOrders(ctx)
	if err != nil {
		return nil, &LoadError{Message: "list orders", Err: err}
	}
	machines, err := src.ListMachines(ctx)
	if err != nil {
		return nil, &LoadError{Message: "list machines", Err: err}
	}
	steps, err := src.ListRoutingSteps(ctx)
	if err != nil {
		return nil, &LoadError{Message: "list routing steps", Err: err}
	}
	return New(orders, machines, steps)
}

// New builds a Catalog from already loaded tables.
//
// Orders are kept in admission order: ascending start day, ties broken by id.
// Machines are kept in ascending id order.
func New(orders []Order, machines []Machine, steps []RoutingStep) (*Catalog, error) {
	c := &Catalog{
		orders:   append([]Order(nil), orders...),
		machines: make([]Machine, 0, len(machines)),
		orderIdx: make(map[string]int, len(orders)),
		macIdx:   make(map[string]int, len(machines)),
		plans:    make(map[string][]RoutingStep, len(orders)),
	}

	slices.SortStableFunc(c.orders, func(a, b Order) int {
		if a.Start != b.Start {
			return cmp.Compare(a.Start, b.Start)
		}
		return cmp.Compare(a.ID, b.ID)
	})
	for i, o := range c.orders {
		if o.ID == "" {
			return nil, &LoadError{Message: "order with empty id"}
		}
		if _, dup := c.orderIdx[o.ID]; dup {
			return nil, &LoadError{Message: fmt.Sprintf("duplicate order id %q", o.ID)}
		}
		c.orderIdx[o.ID] = i
	}

	for _, m := range machines {
		if m.Window != nil {
			w := *m.Window
			m.Window = &w
		}
		c.machines = append(c.machines, m)
	}
	slices.SortStableFunc(c.machines, func(a, b Machine) int { return cmp.Compare(a.ID, b.ID) })
	for i, m := range c.machines {
		if m.ID == "" {
			return nil, &LoadError{Message: "machine with empty id"}
		}
		if _, dup := c.macIdx[m.ID]; dup {
			return nil, &LoadError{Message: fmt.Sprintf("duplicate machine id %q", m.ID)}
		}
		c.macIdx[m.ID] = i

		switch {
		case m.Window == nil:
			c.issues = append(c.issues, Issue{
				Kind:      IssueConfiguration,
				Message:   fmt.Sprintf("machine %s has no availability window, treated as unavailable", m.ID),
				MachineID: m.ID,
			})
		case !m.Window.Valid():
			c.issues = append(c.issues, Issue{
				Kind:      IssueConfiguration,
				Message:   fmt.Sprintf("machine %s has empty availability window %s, treated as unavailable", m.ID, m.Window),
				MachineID: m.ID,
			})
		}
		if m.DailyCapacity <= 0 {
			c.issues = append(c.issues, Issue{
				Kind:      IssueConfiguration,
				Message:   fmt.Sprintf("machine %s has non-positive daily capacity %g", m.ID, m.DailyCapacity),
				MachineID: m.ID,
			})
		}
	}

	for _, s := range steps {
		if _, ok := c.orderIdx[s.OrderID]; !ok {
			c.issues = append(c.issues, Issue{
				Kind:      IssueDataInconsistency,
				Message:   fmt.Sprintf("routing step %d references unknown order %s, skipped", s.Sequence, s.OrderID),
				OrderID:   s.OrderID,
				MachineID: s.MachineID,
			})
			continue
		}
		if _, ok := c.macIdx[s.MachineID]; !ok {
			// Kept: the dispatcher reports it when the step becomes runnable.
			c.issues = append(c.issues, Issue{
				Kind:      IssueDataInconsistency,
				Message:   fmt.Sprintf("routing step %d of order %s references unknown machine %s", s.Sequence, s.OrderID, s.MachineID),
				OrderID:   s.OrderID,
				MachineID: s.MachineID,
			})
		}
		c.plans[s.OrderID] = append(c.plans[s.OrderID], s)
	}

	for id, plan := range c.plans {
		slices.SortStableFunc(plan, func(a, b RoutingStep) int { return cmp.Compare(a.Sequence, b.Sequence) })
		for i := 1; i < len(plan); i++ {
			if plan[i].Sequence == plan[i-1].Sequence {
				return nil, &LoadError{Message: fmt.Sprintf("order %s has duplicate routing sequence %d", id, plan[i].Sequence)}
			}
		}
	}

	return c, nil
}

// Orders returns all orders in admission order.
func (c *Catalog) Orders() []Order {
	return append([]Order(nil), c.orders...)
}

// Machines returns all machines in ascending id order.
func (c *Catalog) Machines() []Machine {
	out := make([]Machine, len(c.machines))
	copy(out, c.machines)
	return out
}

// Order looks up an order by id.
func (c *Catalog) Order(id string) (Order, bool) {
	i, ok := c.orderIdx[id]
	if !ok {
		return Order{}, false
	}
	return c.orders[i], true
}

// Machine looks up a machine by id.
func (c *Catalog) Machine(id string) (Machine, bool) {
	i, ok := c.macIdx[id]
	if !ok {
		return Machine{}, false
	}
	return c.machines[i], true
}

// Plan returns the order's routing steps in ascending sequence order.
// Unknown orders and orders without steps yield an empty plan.
func (c *Catalog) Plan(orderID string) []RoutingStep {
	return append([]RoutingStep(nil), c.plans[orderID]...)
}

// PlanLen returns the number of routing steps of an order.
func (c *Catalog) PlanLen(orderID string) int {
	return len(c.plans[orderID])
}

// StepAt returns the routing step at plan index i of an order.
func (c *Catalog) StepAt(orderID string, i int) (RoutingStep, bool) {
	plan := c.plans[orderID]
	if i < 0 || i >= len(plan) {
		return RoutingStep{}, false
	}
	return plan[i], true
}

// RoutingSteps returns every kept routing step, grouped by order in
// admission order.
func (c *Catalog) RoutingSteps() []RoutingStep {
	var out []RoutingStep
	for _, o := range c.orders {
		out = append(out, c.plans[o.ID]...)
	}
	return out
}

// Issues returns the non-fatal findings collected while building the catalog.
func (c *Catalog) Issues() []Issue {
	return append([]Issue(nil), c.issues...)
}

// Source returns a StaticSource holding the catalog's tables. Useful for
// reloading the same data into a fresh simulation.
func (c *Catalog) Source() *StaticSource {
	return &StaticSource{
		Orders:   c.Orders(),
		Machines: c.Machines(),
		Steps:    c.RoutingSteps(),
	}
}
