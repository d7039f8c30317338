package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/nikonych/fliessfertigung/internal/engine"
)

// printSnapshot renders a snapshot for humans. Machines are listed by id.
func printSnapshot(w io.Writer, snap engine.Snapshot) {
	fmt.Fprintf(w, "Run %s: day %d, step %d\n", snap.RunID, snap.Day, snap.Step)
	if snap.Halted {
		fmt.Fprintln(w, "Status: halted, reset required")
	}

	ids := make([]string, 0, len(snap.Machines))
	for id := range snap.Machines {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	fmt.Fprintf(w, "\nMachines (%d):\n", len(ids))
	for _, id := range ids {
		m := snap.Machines[id]
		state := "down"
		switch {
		case m.Available && m.Free:
			state = "free"
		case m.BoundOrder != "":
			state = "busy with " + m.BoundOrder
		}
		name := m.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "  %-8s %-16s %6g/day  %s\n", id, name, m.DailyCapacity, state)
	}

	fmt.Fprintf(w, "\nActive tasks (%d):\n", len(snap.ActiveTasks))
	for _, t := range snap.ActiveTasks {
		fmt.Fprintf(w, "  %-8s on %-8s step %d, %g remaining\n", t.OrderID, t.MachineID, t.Sequence, t.Remaining)
	}

	fmt.Fprintf(w, "\nQueue (%d):\n", len(snap.Queue))
	for _, o := range snap.Queue {
		status := "waiting"
		if o.Active {
			status = "active"
		}
		fmt.Fprintf(w, "  %-8s %d of %d steps left, %s\n", o.ID, o.StepsRemaining, o.StepsTotal, status)
	}

	if snap.LastFault != "" {
		fmt.Fprintf(w, "\nLast fault: %s\n", snap.LastFault)
	}
}
