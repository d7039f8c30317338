package engine

import "log/slog"

// EventKind distinguishes scheduling decisions in the event log.
type EventKind string

const (
	EventAdmitted   EventKind = "admitted"
	EventDispatched EventKind = "dispatched"
	EventCompleted  EventKind = "completed"
	EventPruned     EventKind = "pruned"
	EventFault      EventKind = "fault"
)

// Event is one entry of the append-only scheduling record.
// Seq comes from the engine's logical Clock.
type Event struct {
	Seq       int64     `json:"seq"`
	Day       int       `json:"day"`
	Kind      EventKind `json:"kind"`
	OrderID   string    `json:"order_id,omitempty"`
	MachineID string    `json:"machine_id,omitempty"`
	Sequence  int       `json:"sequence,omitempty"`
	Remaining float64   `json:"remaining,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// StepReport describes what one step (or the initial load) did.
type StepReport struct {
	Day    int
	Events []Event

	// Faults are the isolated faults of this step. A fatal fault is
	// returned as the step's error instead.
	Faults []*SimError
}

// Count returns the number of events of the given kind.
func (r StepReport) Count(kind EventKind) int {
	n := 0
	for _, ev := range r.Events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (e *Engine) record(rep *StepReport, ev Event) {
	ev.Seq = e.clock.Next()
	ev.Day = rep.Day
	rep.Events = append(rep.Events, ev)
}

func (e *Engine) fault(rep *StepReport, f *SimError) {
	slog.Warn("simulation fault",
		"code", f.Code,
		"day", f.Day,
		"order", f.OrderID,
		"machine", f.MachineID,
		"error", f.Message,
	)
	rep.Faults = append(rep.Faults, f)
	e.record(rep, Event{
		Kind:      EventFault,
		OrderID:   f.OrderID,
		MachineID: f.MachineID,
		Detail:    string(f.Code) + ": " + f.Message,
	})
}
