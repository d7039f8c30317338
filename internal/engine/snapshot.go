package engine

import "github.com/nikonych/fliessfertigung/internal/catalog"

// MachineStateView is the read-only view of a machine in a Snapshot.
type MachineStateView struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Available     bool    `json:"available"`
	Free          bool    `json:"free"`
	DailyCapacity float64 `json:"daily_capacity"`
	BoundOrder    string  `json:"bound_order,omitempty"`
}

// ActiveTaskView is the read-only view of an active task.
type ActiveTaskView struct {
	OrderID   string  `json:"order_id"`
	MachineID string  `json:"machine_id"`
	Sequence  int     `json:"sequence"`
	Remaining float64 `json:"remaining"`
}

// OrderView is the read-only view of a queued order.
type OrderView struct {
	ID             string `json:"id"`
	Quantity       int    `json:"quantity"`
	Start          int    `json:"start"`
	StepsTotal     int    `json:"steps_total"`
	StepsRemaining int    `json:"steps_remaining"`
	NextSequence   int    `json:"next_sequence,omitempty"`
	Active         bool   `json:"active"`
}

// Snapshot is the read-only picture handed to display and reporting
// collaborators after every step. It shares no memory with the State.
type Snapshot struct {
	RunID       string                      `json:"run_id,omitempty"`
	Step        int                         `json:"step"`
	Day         int                         `json:"day"`
	Machines    map[string]MachineStateView `json:"machines"`
	ActiveTasks []ActiveTaskView            `json:"active_tasks"`
	Queue       []OrderView                 `json:"queue"`
	LastFault   string                      `json:"last_fault,omitempty"`
	Halted      bool                        `json:"halted"`
}

// NewSnapshot builds a Snapshot of st.
func NewSnapshot(cat *catalog.Catalog, st State) Snapshot {
	snap := Snapshot{
		Day:         st.Day,
		Machines:    make(map[string]MachineStateView, len(st.Machines)),
		ActiveTasks: make([]ActiveTaskView, 0, len(st.Tasks)),
		Queue:       make([]OrderView, 0, len(st.Queue)),
	}

	for id, ms := range st.Machines {
		m, _ := cat.Machine(id)
		snap.Machines[id] = MachineStateView{
			ID:            id,
			Name:          m.Name,
			Available:     ms.Available,
			Free:          ms.Free,
			DailyCapacity: ms.DailyCapacity,
			BoundOrder:    ms.BoundOrder,
		}
	}

	for _, t := range st.Tasks {
		snap.ActiveTasks = append(snap.ActiveTasks, ActiveTaskView(t))
	}

	for _, id := range st.Queue {
		o, _ := cat.Order(id)
		v := OrderView{
			ID:             id,
			Quantity:       o.Quantity,
			Start:          o.Start,
			StepsTotal:     cat.PlanLen(id),
			StepsRemaining: remainingSteps(cat, st, id),
		}
		if p, ok := st.Progress[id]; ok && !p.Done {
			if step, ok := cat.StepAt(id, p.Cursor); ok {
				v.NextSequence = step.Sequence
			}
		}
		_, v.Active = st.TaskFor(id)
		snap.Queue = append(snap.Queue, v)
	}

	return snap
}

// QueueIDs returns the ids of the queued orders in queue order.
func (s Snapshot) QueueIDs() []string {
	ids := make([]string, len(s.Queue))
	for i, o := range s.Queue {
		ids[i] = o.ID
	}
	return ids
}

// Task returns the active task of an order, if any.
func (s Snapshot) Task(orderID string) (ActiveTaskView, bool) {
	for _, t := range s.ActiveTasks {
		if t.OrderID == orderID {
			return t, true
		}
	}
	return ActiveTaskView{}, false
}
