package engine

// Prune removes orders that have completed every routing step and have no
// active task. It returns the removed ids. Orders still waiting stay queued
// however long they have waited.
func Prune(st *State) []string {
	active := make(map[string]bool, len(st.Tasks))
	for _, t := range st.Tasks {
		active[t.OrderID] = true
	}

	var removed []string
	kept := make([]string, 0, len(st.Queue))
	for _, id := range st.Queue {
		p := st.Progress[id]
		if p != nil && p.Done && !active[id] {
			removed = append(removed, id)
			continue
		}
		kept = append(kept, id)
	}
	st.Queue = kept
	return removed
}
