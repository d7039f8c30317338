package engine

import "maps"

// MachineState is the mutable, derived view of one machine.
//
// Free implies Available: an unavailable machine is never free, and a
// machine bound to a task is never free.
type MachineState struct {
	ID            string
	Available     bool
	Free          bool
	DailyCapacity float64

	// BoundOrder is the order whose task occupies the machine, if any.
	BoundOrder string
}

// ActiveTask binds one order's current routing step to one machine.
type ActiveTask struct {
	OrderID   string
	MachineID string
	Sequence  int
	Remaining float64
}

// OrderProgress is an order's cursor into its routing plan.
type OrderProgress struct {
	// Cursor is the plan index of the step in progress or next to start.
	Cursor int

	// Done is set once every routing step has completed.
	Done bool
}

// State is the complete mutable simulation state owned by the stepping
// goroutine. Engine.Step never mutates its input; it works on a Clone.
type State struct {
	Day      int
	Machines map[string]*MachineState

	// Tasks are kept in binding order.
	Tasks []ActiveTask

	// Queue holds order ids in admission order.
	Queue []string

	// Progress has an entry for every order ever admitted. An order never
	// re-enters the queue once it has an entry.
	Progress map[string]*OrderProgress

	// reported remembers blocked routing steps already reported as faults,
	// so a permanently broken reference is reported once.
	reported map[string]bool

	// blocked holds orders whose active task was discarded because its
	// machine vanished from the registry. They stay queued and are never
	// dispatched again.
	blocked map[string]bool
}

// NewState returns an empty state positioned at day.
func NewState(day int) State {
	return State{
		Day:      day,
		Machines: make(map[string]*MachineState),
		Progress: make(map[string]*OrderProgress),
		reported: make(map[string]bool),
		blocked:  make(map[string]bool),
	}
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := State{
		Day:      s.Day,
		Machines: make(map[string]*MachineState, len(s.Machines)),
		Tasks:    append([]ActiveTask(nil), s.Tasks...),
		Queue:    append([]string(nil), s.Queue...),
		Progress: make(map[string]*OrderProgress, len(s.Progress)),
		reported: maps.Clone(s.reported),
		blocked:  maps.Clone(s.blocked),
	}
	if out.reported == nil {
		out.reported = make(map[string]bool)
	}
	if out.blocked == nil {
		out.blocked = make(map[string]bool)
	}
	for id, m := range s.Machines {
		cp := *m
		out.Machines[id] = &cp
	}
	for id, p := range s.Progress {
		cp := *p
		out.Progress[id] = &cp
	}
	return out
}

// TaskFor returns the active task bound to an order, if any.
func (s State) TaskFor(orderID string) (ActiveTask, bool) {
	for _, t := range s.Tasks {
		if t.OrderID == orderID {
			return t, true
		}
	}
	return ActiveTask{}, false
}

// TaskOn returns the active task bound to a machine, if any.
func (s State) TaskOn(machineID string) (ActiveTask, bool) {
	for _, t := range s.Tasks {
		if t.MachineID == machineID {
			return t, true
		}
	}
	return ActiveTask{}, false
}

// Queued reports whether an order is in the queue.
func (s State) Queued(orderID string) bool {
	for _, id := range s.Queue {
		if id == orderID {
			return true
		}
	}
	return false
}
