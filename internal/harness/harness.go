package harness

import (
	"context"
	"fmt"

	"github.com/nikonych/fliessfertigung/internal/engine"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when the run reached every step and all assertions held.
	Pass bool `json:"pass"`

	// Trace is the run's full event log.
	Trace []engine.Event `json:"trace"`

	// Errors contains step failures and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Final is the snapshot after the last executed step.
	Final engine.Snapshot `json:"final"`

	snapshots []engine.Snapshot
	stepEnds  []int
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []engine.Event{},
		Errors: []string{},
	}
}

// AddError adds an error message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// StepsRun is the number of steps that executed after loading.
func (r *Result) StepsRun() int {
	return len(r.snapshots) - 1
}

// SnapshotAfter returns the snapshot taken after step n (0 is the loaded
// state).
func (r *Result) SnapshotAfter(n int) (engine.Snapshot, bool) {
	if n < 0 || n >= len(r.snapshots) {
		return engine.Snapshot{}, false
	}
	return r.snapshots[n], true
}

// EventsThrough returns the events recorded up to and including step n.
func (r *Result) EventsThrough(n int) []engine.Event {
	if n < 0 || n >= len(r.stepEnds) {
		return nil
	}
	return r.Trace[:r.stepEnds[n]]
}

// Run executes a scenario in a fresh simulation over its inline catalog.
//
// Execution flow:
//  1. Load the catalog at the initial day
//  2. Step the simulation, keeping the snapshot of every step
//  3. Evaluate the assertions against the kept snapshots and events
//
// A step that fails fatally ends the run early; assertions about later
// steps then fail. A catalog that cannot be loaded is returned as error.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	runID := scenario.RunID
	if runID == "" {
		runID = defaultRunID
	}

	sim := engine.NewSimulation(scenario.Catalog.Source(),
		engine.WithStartDay(scenario.InitialDay),
		engine.WithRunIDGenerator(engine.NewFixedGenerator(runID)),
	)

	result := NewResult()
	loadErr := sim.Load(ctx)
	if engine.IsCatalogUnreadable(loadErr) {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, loadErr)
	}
	result.record(sim)
	if loadErr != nil {
		result.AddError(fmt.Sprintf("load: %v", loadErr))
	}

	for i := 1; loadErr == nil && i <= scenario.Steps; i++ {
		if _, err := sim.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			result.record(sim)
			result.AddError(fmt.Sprintf("step %d: %v", i, err))
			break
		}
		result.record(sim)
	}

	result.Trace = sim.Events()
	result.Final = sim.Snapshot()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (r *Result) record(sim *engine.Simulation) {
	r.snapshots = append(r.snapshots, sim.Snapshot())
	r.stepEnds = append(r.stepEnds, len(sim.Events()))
}
