package engine

import "github.com/nikonych/fliessfertigung/internal/catalog"

// Progress tracking: every admitted order owns an OrderProgress whose cursor
// walks the routing plan strictly in ascending sequence order. The cursor
// moves only when the step under it completes, so step k+1 is never bound
// before step k is done.

// startTracking registers a newly admitted order. Orders without routing
// steps are done immediately and leave the queue on the next prune.
func startTracking(cat *catalog.Catalog, st *State, orderID string) {
	st.Progress[orderID] = &OrderProgress{
		Done: cat.PlanLen(orderID) == 0,
	}
}

// currentStep returns the routing step under the order's cursor.
func currentStep(cat *catalog.Catalog, st *State, orderID string) (catalog.RoutingStep, bool, error) {
	p, ok := st.Progress[orderID]
	if !ok {
		return catalog.RoutingStep{}, false, NewNotFoundError(st.Day, "order", orderID)
	}
	if p.Done {
		return catalog.RoutingStep{}, false, nil
	}
	step, ok := cat.StepAt(orderID, p.Cursor)
	return step, ok, nil
}

// advance moves the order's cursor past the step that just completed.
func advance(cat *catalog.Catalog, st *State, orderID string) {
	p, ok := st.Progress[orderID]
	if !ok {
		return
	}
	p.Cursor++
	if p.Cursor >= cat.PlanLen(orderID) {
		p.Done = true
	}
}

// remainingSteps returns how many routing steps have not completed yet,
// including one in progress.
func remainingSteps(cat *catalog.Catalog, st State, orderID string) int {
	p, ok := st.Progress[orderID]
	if !ok {
		return cat.PlanLen(orderID)
	}
	if p.Done {
		return 0
	}
	return cat.PlanLen(orderID) - p.Cursor
}
