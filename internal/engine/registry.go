package engine

import (
	"log/slog"

	"github.com/nikonych/fliessfertigung/internal/catalog"
)

// IsAvailable reports whether a machine can work on day: day must lie in
// the machine's closed availability window. Machines without window data
// are never available.
func IsAvailable(m catalog.Machine, day int) bool {
	return m.AvailableOn(day)
}

// InitializeRegistry builds the machine state map for day. Every machine
// starts free exactly when it is available.
func InitializeRegistry(machines []catalog.Machine, day int) map[string]*MachineState {
	reg := make(map[string]*MachineState, len(machines))
	for _, m := range machines {
		avail := IsAvailable(m, day)
		reg[m.ID] = &MachineState{
			ID:            m.ID,
			Available:     avail,
			Free:          avail,
			DailyCapacity: m.DailyCapacity,
		}
	}
	return reg
}

// refreshAvailability recomputes availability for the state's current day.
// A bound machine stays busy; an unavailable machine is never free.
func refreshAvailability(cat *catalog.Catalog, st *State) {
	for _, m := range cat.Machines() {
		ms, ok := st.Machines[m.ID]
		if !ok {
			continue
		}
		avail := IsAvailable(m, st.Day)
		if avail != ms.Available {
			slog.Debug("machine availability changed",
				"machine", m.ID,
				"day", st.Day,
				"available", avail,
			)
		}
		ms.Available = avail
		ms.Free = avail && ms.BoundOrder == ""
	}
}

// lookupMachine returns the registry entry for id. A missing entry is a
// NOT_FOUND fault: task bookkeeping depends on every catalog machine being
// present in the registry.
func lookupMachine(st *State, id string) (*MachineState, error) {
	ms, ok := st.Machines[id]
	if !ok {
		return nil, NewNotFoundError(st.Day, "machine", id)
	}
	return ms, nil
}
