package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nikonych/fliessfertigung/internal/engine"
)

// EvaluateAssertions checks every assertion against the result and returns
// one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	snap, ok := result.SnapshotAfter(a.AfterStep)
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("step %d to have run", a.AfterStep),
			Actual:   fmt.Sprintf("run ended after step %d", result.StepsRun()),
		}
	}
	events := result.EventsThrough(a.AfterStep)

	switch a.Type {
	case AssertQueue:
		return assertQueue(snap, a)
	case AssertTask:
		return assertTask(snap, a)
	case AssertMachine:
		return assertMachine(snap, a)
	case AssertEventCount:
		return assertEventCount(events, a)
	case AssertEventOrder:
		return assertEventOrder(events, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// AssertionError describes a failed assertion. Event assertions carry the
// trace they were checked against.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []engine.Event
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] day %d %s", ev.Seq, ev.Day, ev.Kind)
			if ev.OrderID != "" {
				fmt.Fprintf(&buf, " %s", ev.OrderID)
			}
			if ev.MachineID != "" {
				fmt.Fprintf(&buf, " on %s", ev.MachineID)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

func assertQueue(snap engine.Snapshot, a Assertion) error {
	got := snap.QueueIDs()
	if !slices.Equal(got, a.Orders) {
		return &AssertionError{
			Type:     AssertQueue,
			Expected: fmt.Sprintf("queue %v after step %d", a.Orders, a.AfterStep),
			Actual:   fmt.Sprintf("queue %v", got),
		}
	}
	return nil
}

func assertTask(snap engine.Snapshot, a Assertion) error {
	wantActive := a.Active == nil || *a.Active
	task, active := snap.Task(a.Order)

	if active != wantActive {
		actual := "no active task"
		if active {
			actual = fmt.Sprintf("task on %s, remaining %g", task.MachineID, task.Remaining)
		}
		return &AssertionError{
			Type:     AssertTask,
			Expected: fmt.Sprintf("order %s active=%t after step %d", a.Order, wantActive, a.AfterStep),
			Actual:   actual,
		}
	}
	if !active {
		return nil
	}

	if a.Machine != "" && task.MachineID != a.Machine {
		return &AssertionError{
			Type:     AssertTask,
			Expected: fmt.Sprintf("order %s on machine %s", a.Order, a.Machine),
			Actual:   fmt.Sprintf("on machine %s", task.MachineID),
		}
	}
	if a.Remaining != nil && task.Remaining != *a.Remaining {
		return &AssertionError{
			Type:     AssertTask,
			Expected: fmt.Sprintf("order %s remaining %g", a.Order, *a.Remaining),
			Actual:   fmt.Sprintf("remaining %g", task.Remaining),
		}
	}
	return nil
}

func assertMachine(snap engine.Snapshot, a Assertion) error {
	m, ok := snap.Machines[a.Machine]
	if !ok {
		return &AssertionError{
			Type:     AssertMachine,
			Expected: fmt.Sprintf("machine %s in snapshot", a.Machine),
			Actual:   "machine not found",
		}
	}

	if a.Available != nil && m.Available != *a.Available {
		return &AssertionError{
			Type:     AssertMachine,
			Expected: fmt.Sprintf("machine %s available=%t after step %d", a.Machine, *a.Available, a.AfterStep),
			Actual:   fmt.Sprintf("available=%t", m.Available),
		}
	}
	if a.Free != nil && m.Free != *a.Free {
		return &AssertionError{
			Type:     AssertMachine,
			Expected: fmt.Sprintf("machine %s free=%t after step %d", a.Machine, *a.Free, a.AfterStep),
			Actual:   fmt.Sprintf("free=%t", m.Free),
		}
	}
	if a.BoundOrder != nil && m.BoundOrder != *a.BoundOrder {
		return &AssertionError{
			Type:     AssertMachine,
			Expected: fmt.Sprintf("machine %s bound to %q", a.Machine, *a.BoundOrder),
			Actual:   fmt.Sprintf("bound to %q", m.BoundOrder),
		}
	}
	return nil
}

// assertEventCount counts events of a kind, optionally for one order.
func assertEventCount(events []engine.Event, a Assertion) error {
	count := 0
	for _, ev := range events {
		if matchEvent(ev, a.Kind, a.Order) {
			count++
		}
	}

	if count != a.Count {
		subject := a.Kind
		if a.Order != "" {
			subject += " events of " + a.Order
		}
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s through step %d", a.Count, subject, a.AfterStep),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    events,
		}
	}
	return nil
}

// assertEventOrder checks that the referenced events appear in order.
// They need not be consecutive.
func assertEventOrder(events []engine.Event, a Assertion) error {
	pos := 0
	for _, ref := range a.Events {
		kind, order := splitEventRef(ref)
		found := false
		for pos < len(events) {
			ev := events[pos]
			pos++
			if matchEvent(ev, kind, order) {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual:   fmt.Sprintf("%s missing or out of order", ref),
				Trace:    events,
			}
		}
	}
	return nil
}

func matchEvent(ev engine.Event, kind, order string) bool {
	if string(ev.Kind) != kind {
		return false
	}
	return order == "" || ev.OrderID == order
}
