package engine

import (
	"log/slog"

	"github.com/nikonych/fliessfertigung/internal/catalog"
)

// Engine runs the per-step state transition over one immutable catalog.
//
// Step is a synchronous transformation of a State into a new State. The
// only thing the engine itself mutates is its logical clock, which stamps
// events; a fresh engine over the same catalog reproduces the same events.
//
// Thread-safety: an Engine must be driven by one goroutine at a time.
// Simulation enforces this.
type Engine struct {
	catalog *catalog.Catalog
	clock   *Clock
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithClock makes the engine stamp events from an existing clock.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// NewEngine creates an Engine over cat.
func NewEngine(cat *catalog.Catalog, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog: cat,
		clock:   NewClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Initialize builds the state a run starts from at day.
//
// The registry is built for day, catalog findings are reported as faults,
// every order that started on or before day is admitted, and a first
// dispatch binds what can run. Orders without routing steps are pruned.
func (e *Engine) Initialize(day int) (State, StepReport, error) {
	st := NewState(day)
	st.Machines = InitializeRegistry(e.catalog.Machines(), day)
	rep := StepReport{Day: day}

	for _, is := range e.catalog.Issues() {
		e.fault(&rep, issueError(day, is))
	}

	e.admit(&st, &rep, true)
	if err := e.dispatch(&st, &rep); err != nil {
		return st, rep, err
	}
	e.prune(&st, &rep)

	slog.Info("simulation initialized",
		"day", day,
		"orders", len(e.catalog.Orders()),
		"machines", len(st.Machines),
		"queued", len(st.Queue),
		"active", len(st.Tasks),
	)
	return st, rep, nil
}

// Step advances the simulation by one day.
//
// The day is incremented first, so every decision in the step sees the new
// day. Then, in this fixed order: availability refresh, completion sweep,
// admission, dispatch, prune.
//
// The input state is not modified. On a fatal fault the returned state
// carries the new day and whatever the step did before the fault; callers
// must not step it further.
func (e *Engine) Step(in State) (State, StepReport, error) {
	st := in.Clone()
	st.Day++
	rep := StepReport{Day: st.Day}

	refreshAvailability(e.catalog, &st)
	e.sweep(&st, &rep)
	e.admit(&st, &rep, false)
	if err := e.dispatch(&st, &rep); err != nil {
		return st, rep, err
	}
	e.prune(&st, &rep)

	slog.Debug("step complete",
		"day", st.Day,
		"queued", len(st.Queue),
		"active", len(st.Tasks),
		"events", len(rep.Events),
	)
	return st, rep, nil
}

func (e *Engine) sweep(st *State, rep *StepReport) {
	completed, faults := Sweep(e.catalog, st)
	for _, t := range completed {
		slog.Debug("task completed",
			"order", t.OrderID,
			"machine", t.MachineID,
			"sequence", t.Sequence,
			"day", st.Day,
		)
		e.record(rep, Event{
			Kind:      EventCompleted,
			OrderID:   t.OrderID,
			MachineID: t.MachineID,
			Sequence:  t.Sequence,
			Remaining: t.Remaining,
		})
	}
	for _, f := range faults {
		e.fault(rep, f)
	}
}

func (e *Engine) admit(st *State, rep *StepReport, bootstrap bool) {
	for _, id := range Admit(e.catalog, st, bootstrap) {
		slog.Debug("order admitted", "order", id, "day", st.Day)
		e.record(rep, Event{Kind: EventAdmitted, OrderID: id})
	}
}

func (e *Engine) dispatch(st *State, rep *StepReport) error {
	bound, faults, err := Dispatch(e.catalog, st)
	for _, t := range bound {
		slog.Info("order dispatched",
			"order", t.OrderID,
			"machine", t.MachineID,
			"sequence", t.Sequence,
			"duration", t.Remaining,
			"day", st.Day,
		)
		e.record(rep, Event{
			Kind:      EventDispatched,
			OrderID:   t.OrderID,
			MachineID: t.MachineID,
			Sequence:  t.Sequence,
			Remaining: t.Remaining,
		})
	}
	for _, f := range faults {
		e.fault(rep, f)
	}
	if err != nil {
		slog.Error("dispatch failed", "day", st.Day, "error", err)
		return err
	}
	return nil
}

func (e *Engine) prune(st *State, rep *StepReport) {
	for _, id := range Prune(st) {
		slog.Info("order finished", "order", id, "day", st.Day)
		e.record(rep, Event{Kind: EventPruned, OrderID: id})
	}
}
