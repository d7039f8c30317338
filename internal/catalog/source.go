package catalog

import "context"

// Source supplies the raw catalog tables. Implementations return the
// complete tables; ordering is not significant because Load sorts.
type Source interface {
	ListOrders(ctx context.Context) ([]Order, error)
	ListMachines(ctx context.Context) ([]Machine, error)
	ListRoutingSteps(ctx context.Context) ([]RoutingStep, error)
}

// StaticSource is an in-memory Source.
type StaticSource struct {
	Orders   []Order
	Machines []Machine
	Steps    []RoutingStep
}

// ListOrders returns a copy of the orders.
func (s *StaticSource) ListOrders(ctx context.Context) ([]Order, error) {
	return append([]Order(nil), s.Orders...), nil
}

// ListMachines returns a copy of the machines.
func (s *StaticSource) ListMachines(ctx context.Context) ([]Machine, error) {
	out := make([]Machine, len(s.Machines))
	for i, m := range s.Machines {
		out[i] = m
		if m.Window != nil {
			w := *m.Window
			out[i].Window = &w
		}
	}
	return out, nil
}

// ListRoutingSteps returns a copy of the routing steps.
func (s *StaticSource) ListRoutingSteps(ctx context.Context) ([]RoutingStep, error) {
	return append([]RoutingStep(nil), s.Steps...), nil
}
