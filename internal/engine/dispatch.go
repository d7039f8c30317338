package engine

import (
	"fmt"

	"github.com/nikonych/fliessfertigung/internal/catalog"
)

// Dispatch greedily binds queued orders to free machines.
//
// Orders are considered in queue order, so an earlier-admitted order wins a
// contested machine. Each order is offered only the routing step under its
// cursor and binds at most one task per step. Orders that already have an
// active task are skipped. An order whose machine is busy or unavailable
// simply waits.
//
// A routing step naming a machine absent from the catalog is an isolated
// fault, reported once. Orders blocked by Sweep after their task's machine
// vanished from the registry are skipped; Sweep already reported them. A
// queued order without progress, or a catalog machine missing from the
// registry for an order that was not blocked, breaks an invariant and is
// returned as a fatal NOT_FOUND error together with the bindings made so far.
//
// The result depends only on the catalog and the state.
func Dispatch(cat *catalog.Catalog, st *State) (bound []ActiveTask, faults []*SimError, err error) {
	active := make(map[string]bool, len(st.Tasks))
	for _, t := range st.Tasks {
		active[t.OrderID] = true
	}

	for _, orderID := range st.Queue {
		if active[orderID] || st.blocked[orderID] {
			continue
		}

		step, ok, err := currentStep(cat, st, orderID)
		if err != nil {
			return bound, faults, err
		}
		if !ok {
			continue
		}

		if _, known := cat.Machine(step.MachineID); !known {
			key := fmt.Sprintf("%s/%d", orderID, step.Sequence)
			if !st.reported[key] {
				st.reported[key] = true
				faults = append(faults, NewDataInconsistencyError(st.Day, orderID, step.MachineID,
					fmt.Sprintf("routing step %d references unknown machine, order blocked", step.Sequence)))
			}
			continue
		}

		ms, err := lookupMachine(st, step.MachineID)
		if err != nil {
			return bound, faults, err
		}
		if !ms.Free {
			continue
		}

		t := ActiveTask{
			OrderID:   orderID,
			MachineID: step.MachineID,
			Sequence:  step.Sequence,
			Remaining: step.Duration,
		}
		st.Tasks = append(st.Tasks, t)
		ms.Free = false
		ms.BoundOrder = orderID
		active[orderID] = true
		bound = append(bound, t)
	}

	return bound, faults, nil
}
