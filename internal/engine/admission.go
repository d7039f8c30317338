package engine

import "github.com/nikonych/fliessfertigung/internal/catalog"

// Admit appends every order due on the state's day to the queue and returns
// the admitted ids in admission order.
//
// An order is due when its start equals the day, or, with bootstrap set,
// when it started on or before the day. Membership is tested by id against
// the queue and against every order ever admitted, so admitting twice on
// the same day is a no-op and a pruned order never comes back.
func Admit(cat *catalog.Catalog, st *State, bootstrap bool) []string {
	var admitted []string
	for _, o := range cat.Orders() {
		due := o.Start == st.Day || (bootstrap && o.Start <= st.Day)
		if !due {
			continue
		}
		if _, seen := st.Progress[o.ID]; seen || st.Queued(o.ID) {
			continue
		}
		st.Queue = append(st.Queue, o.ID)
		startTracking(cat, st, o.ID)
		admitted = append(admitted, o.ID)
	}
	return admitted
}
