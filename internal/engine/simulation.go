package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nikonych/fliessfertigung/internal/catalog"
)

var (
	// ErrNotLoaded is returned when stepping a simulation before Load.
	ErrNotLoaded = errors.New("simulation not loaded")

	// ErrRunning is returned by Run, Load and Reset while Run is active.
	ErrRunning = errors.New("simulation is running")
)

// Simulation owns one run's state bundle and drives the engine.
//
// Thread-safety model:
//   - Step, Run, Load and Reset advance or replace the state; at most one of
//     them may be in flight. Starting a step while another is in flight is a
//     fatal STEP_IN_FLIGHT fault that halts the simulation.
//   - Snapshot, Events, LastFault, Idle and RunID are safe from any goroutine
//     and only ever return copies.
//   - Stop is safe from any goroutine and takes effect between steps.
type Simulation struct {
	source    catalog.Source
	startDay  int
	runIDs    RunIDGenerator
	observers []Observer

	inFlight atomic.Bool
	running  atomic.Bool

	mu        sync.Mutex
	loaded    bool
	engine    *Engine
	state     State
	runID     string
	steps     int
	events    []Event
	lastFault error
	halted    error
	stopCh    chan struct{}
}

// SimulationOption allows configuration of a Simulation.
type SimulationOption func(*Simulation)

// WithStartDay sets the day the run starts on. Default: 0.
func WithStartDay(day int) SimulationOption {
	return func(s *Simulation) {
		s.startDay = day
	}
}

// WithRunIDGenerator overrides the run id generator (default UUIDv7).
func WithRunIDGenerator(g RunIDGenerator) SimulationOption {
	return func(s *Simulation) {
		s.runIDs = g
	}
}

// WithObserver registers an observer. Observers are called in
// registration order.
func WithObserver(o Observer) SimulationOption {
	return func(s *Simulation) {
		s.observers = append(s.observers, o)
	}
}

// NewSimulation creates a simulation over src. Call Load before stepping.
func NewSimulation(src catalog.Source, opts ...SimulationOption) *Simulation {
	s := &Simulation{
		source: src,
		runIDs: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the catalog from the source and initializes a new run at the
// start day. Any previous state, event log and fault are discarded.
//
// A catalog that cannot be loaded leaves the simulation halted and returns
// a CATALOG_UNREADABLE fault.
func (s *Simulation) Load(ctx context.Context) error {
	if s.running.Load() {
		return ErrRunning
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return s.reentered()
	}
	defer s.inFlight.Store(false)

	cat, err := catalog.Load(ctx, s.source)
	if err != nil {
		fault := &SimError{
			Code:    ErrCodeCatalogUnreadable,
			Message: "catalog could not be loaded",
			Day:     s.startDay,
			Err:     err,
		}
		slog.Error("catalog load failed", "error", err)
		s.mu.Lock()
		s.loaded = false
		s.engine = nil
		s.state = State{}
		s.events = nil
		s.steps = 0
		s.lastFault = fault
		s.halted = fault
		s.mu.Unlock()
		return fault
	}

	eng := NewEngine(cat)
	st, rep, initErr := eng.Initialize(s.startDay)

	s.mu.Lock()
	s.loaded = true
	s.engine = eng
	s.state = st
	s.runID = s.runIDs.Generate()
	s.steps = 0
	s.events = append([]Event(nil), rep.Events...)
	s.lastFault = nil
	s.halted = nil
	if n := len(rep.Faults); n > 0 {
		s.lastFault = rep.Faults[n-1]
	}
	if initErr != nil {
		s.lastFault = initErr
		s.halted = initErr
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	slog.Info("simulation loaded", "run", snap.RunID, "day", snap.Day)
	s.notify(ctx, snap, rep)
	return initErr
}

// Reset discards the whole state bundle and reloads the catalog. It is
// refused while Run is active; Stop first.
func (s *Simulation) Reset(ctx context.Context) error {
	if s.running.Load() {
		return ErrRunning
	}
	slog.Info("simulation reset")
	return s.Load(ctx)
}

// Step advances the simulation by exactly one day and returns the new
// snapshot. Isolated faults do not produce an error; they show up in the
// snapshot's LastFault and the event log. A returned error is fatal: the
// simulation stays halted until Reset.
func (s *Simulation) Step(ctx context.Context) (Snapshot, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return Snapshot{}, s.reentered()
	}
	defer s.inFlight.Store(false)

	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	if !s.loaded {
		err := s.halted
		s.mu.Unlock()
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{}, ErrNotLoaded
	}
	if s.halted != nil {
		snap := s.snapshotLocked()
		err := &SimError{
			Code:    ErrCodeHalted,
			Message: "simulation halted by an earlier fatal fault, reset required",
			Day:     s.state.Day,
			Err:     s.halted,
		}
		s.mu.Unlock()
		return snap, err
	}

	next, rep, err := s.engine.Step(s.state)
	s.state = next
	s.steps++
	s.events = append(s.events, rep.Events...)
	if n := len(rep.Faults); n > 0 {
		s.lastFault = rep.Faults[n-1]
	}
	if err != nil {
		s.lastFault = err
		s.halted = err
		slog.Error("step failed, simulation halted", "day", next.Day, "error", err)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(ctx, snap, rep)
	return snap, err
}

// Run steps once per pacer tick until ctx is cancelled, Stop is called, the
// pacer closes, or a step fails. The pacer is stopped on return.
func (s *Simulation) Run(ctx context.Context, pacer Pacer) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer s.running.Store(false)
	defer pacer.Stop()

	stop := make(chan struct{})
	s.mu.Lock()
	s.stopCh = stop
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.stopCh = nil
		s.mu.Unlock()
	}()

	slog.Info("simulation running")
	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation stopping: context cancelled")
			return ctx.Err()

		case <-stop:
			slog.Info("simulation stopped")
			return nil

		case _, ok := <-pacer.Ticks():
			if !ok {
				slog.Info("simulation stopping: pacer closed")
				return nil
			}
			// A stop that raced with the tick wins.
			select {
			case <-stop:
				slog.Info("simulation stopped")
				return nil
			default:
			}
			if _, err := s.Step(ctx); err != nil {
				return err
			}
		}
	}
}

// Stop ends an active Run before its next step. No-op when not running.
func (s *Simulation) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
}

// RunUntilIdle steps until no order is queued, active or still to come,
// or until maxSteps steps have run. It returns the number of steps taken.
// A simulation still busy after maxSteps yields a *StepsExceededError.
func (s *Simulation) RunUntilIdle(ctx context.Context, maxSteps int) (int, error) {
	budget := newStepBudget(maxSteps)
	for n := 0; ; n++ {
		if s.Idle() {
			return n, nil
		}
		if err := budget.Check(s.Day(), len(s.Snapshot().Queue)); err != nil {
			return n, err
		}
		if _, err := s.Step(ctx); err != nil {
			return n + 1, err
		}
	}
}

// Snapshot returns the current read-only snapshot.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Events returns a copy of the run's event log.
func (s *Simulation) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// LastFault returns the most recent fault, isolated or fatal.
func (s *Simulation) LastFault() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFault
}

// Halted returns the fatal fault that stopped the simulation, if any.
func (s *Simulation) Halted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// RunID returns the id of the current run.
func (s *Simulation) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Day returns the current simulation day.
func (s *Simulation) Day() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Day
}

// Catalog returns the catalog of the current run, or nil before Load.
func (s *Simulation) Catalog() *catalog.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil
	}
	return s.engine.Catalog()
}

// Idle reports whether there is nothing left to do: no queued or active
// order and no order still waiting for its start day.
func (s *Simulation) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return false
	}
	if len(s.state.Queue) > 0 || len(s.state.Tasks) > 0 {
		return false
	}
	for _, o := range s.engine.Catalog().Orders() {
		if _, admitted := s.state.Progress[o.ID]; !admitted {
			return false
		}
	}
	return true
}

func (s *Simulation) snapshotLocked() Snapshot {
	if !s.loaded {
		snap := Snapshot{Machines: map[string]MachineStateView{}, Halted: s.halted != nil}
		if s.lastFault != nil {
			snap.LastFault = s.lastFault.Error()
		}
		return snap
	}
	snap := NewSnapshot(s.engine.Catalog(), s.state)
	snap.RunID = s.runID
	snap.Step = s.steps
	snap.Halted = s.halted != nil
	if s.lastFault != nil {
		snap.LastFault = s.lastFault.Error()
	}
	return snap
}

// reentered records a STEP_IN_FLIGHT fault. It waits for the running step
// to release the state, then halts the simulation.
func (s *Simulation) reentered() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fault := &SimError{
		Code:    ErrCodeStepInFlight,
		Message: "step started while another step is in flight",
		Day:     s.state.Day,
	}
	s.lastFault = fault
	s.halted = fault
	slog.Error("simulation re-entered, halting", "day", s.state.Day)
	return fault
}

func (s *Simulation) notify(ctx context.Context, snap Snapshot, rep StepReport) {
	for _, o := range s.observers {
		if err := o.ObserveStep(ctx, snap, rep); err != nil {
			slog.Warn("observer failed",
				"run", snap.RunID,
				"step", snap.Step,
				"error", err,
			)
		}
	}
}
