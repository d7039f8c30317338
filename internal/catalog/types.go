package catalog

import "fmt"

// Order is a unit of demand. Quantity and Start are business data; the
// engine never mutates them.
type Order struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
	Start    int    `json:"start"`
}

// Window is a closed interval of days [From, To].
type Window struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Contains reports whether day lies inside the window, bounds included.
func (w Window) Contains(day int) bool {
	return day >= w.From && day <= w.To
}

// Valid reports whether the window is non-empty.
func (w Window) Valid() bool {
	return w.From <= w.To
}

func (w Window) String() string {
	return fmt.Sprintf("[%d,%d]", w.From, w.To)
}

// Machine is a resource with a daily capacity. A nil Window means the
// machine has no availability data and is treated as unavailable.
type Machine struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Window        *Window `json:"window,omitempty"`
	DailyCapacity float64 `json:"daily_capacity"`
}

// AvailableOn reports whether the machine can work on day.
// Machines without a valid window are never available.
func (m Machine) AvailableOn(day int) bool {
	if m.Window == nil || !m.Window.Valid() {
		return false
	}
	return m.Window.Contains(day)
}

// RoutingStep is one operation of an order's plan: Duration work units on
// MachineID. Sequence positions are unique per order and may be sparse.
type RoutingStep struct {
	OrderID   string  `json:"order_id"`
	MachineID string  `json:"machine_id"`
	Sequence  int     `json:"sequence"`
	Duration  float64 `json:"duration"`
}

// IssueKind categorizes a non-fatal catalog finding.
type IssueKind string

const (
	// IssueDataInconsistency marks references to ids absent from the catalog.
	IssueDataInconsistency IssueKind = "DATA_INCONSISTENCY"

	// IssueConfiguration marks unusable but non-fatal settings, e.g. a
	// machine without a valid availability window.
	IssueConfiguration IssueKind = "CONFIGURATION"
)

// Issue is a non-fatal finding produced while loading a catalog.
type Issue struct {
	Kind      IssueKind `json:"kind"`
	Message   string    `json:"message"`
	OrderID   string    `json:"order_id,omitempty"`
	MachineID string    `json:"machine_id,omitempty"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Kind, i.Message)
}

// LoadError reports a structural problem that makes a catalog unusable.
type LoadError struct {
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog unreadable: %s: %v", e.Message, e.Err)
	}
	return "catalog unreadable: " + e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
