package engine

import "github.com/nikonych/fliessfertigung/internal/catalog"

// Sweep runs the completion state machine over every active task.
//
// Each task's remaining duration drops by its machine's daily capacity when
// the machine is available on the state's day; work pauses outside the
// window instead of draining on every step regardless of availability.
// A task reaching remaining <= 0 completes: its machine is released
// and the order's cursor moves past the step.
//
// Tasks bind disjoint machines, so evaluation order does not matter. A task
// whose machine is missing from the registry is discarded and reported, and
// its order is blocked so Dispatch does not offer the same step again; the
// remaining tasks are still processed.
func Sweep(cat *catalog.Catalog, st *State) (completed []ActiveTask, faults []*SimError) {
	kept := make([]ActiveTask, 0, len(st.Tasks))
	for _, t := range st.Tasks {
		ms, ok := st.Machines[t.MachineID]
		if !ok {
			faults = append(faults, NewDataInconsistencyError(st.Day, t.OrderID, t.MachineID,
				"active task references a machine missing from the registry, task discarded"))
			if st.blocked == nil {
				st.blocked = make(map[string]bool)
			}
			st.blocked[t.OrderID] = true
			continue
		}

		if ms.Available {
			t.Remaining -= ms.DailyCapacity
		}
		if t.Remaining > 0 {
			kept = append(kept, t)
			continue
		}

		ms.BoundOrder = ""
		ms.Free = ms.Available
		advance(cat, st, t.OrderID)
		completed = append(completed, t)
	}
	st.Tasks = kept
	return completed, faults
}
