package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikonych/fliessfertigung/internal/catalog"
	"github.com/nikonych/fliessfertigung/internal/testutil"
)

// failingSource fails every listing.
type failingSource struct{}

func (failingSource) ListOrders(context.Context) ([]catalog.Order, error) {
	return nil, errors.New("connection refused")
}

func (failingSource) ListMachines(context.Context) ([]catalog.Machine, error) {
	return nil, errors.New("connection refused")
}

func (failingSource) ListRoutingSteps(context.Context) ([]catalog.RoutingStep, error) {
	return nil, errors.New("connection refused")
}

func singleOrderSource() catalog.Source {
	return testutil.Source(
		[]catalog.Machine{testutil.Machine("M1", 8, 0, 100)},
		[]catalog.Order{testutil.Order("O1", 0)},
		[]catalog.RoutingStep{testutil.Step("O1", "M1", 1, 16)},
	)
}

func loadedSimulation(t *testing.T, src catalog.Source, opts ...SimulationOption) *Simulation {
	t.Helper()
	opts = append([]SimulationOption{WithRunIDGenerator(NewFixedGenerator("run-1", "run-2", "run-3"))}, opts...)
	sim := NewSimulation(src, opts...)
	require.NoError(t, sim.Load(context.Background()))
	return sim
}

func TestSimulation_StepBeforeLoad(t *testing.T) {
	sim := NewSimulation(singleOrderSource())

	_, err := sim.Step(context.Background())
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.False(t, sim.Idle())
}

func TestSimulation_LoadAndStep(t *testing.T) {
	sim := loadedSimulation(t, singleOrderSource())

	snap := sim.Snapshot()
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, 0, snap.Step)
	assert.Equal(t, 0, snap.Day)
	assert.Equal(t, []string{"O1"}, snap.QueueIDs())
	assert.Equal(t, "O1", snap.Machines["M1"].BoundOrder)

	snap, err := sim.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Step)
	assert.Equal(t, 1, snap.Day)
	task, ok := snap.Task("O1")
	require.True(t, ok)
	assert.Equal(t, 8.0, task.Remaining)
	require.Len(t, snap.Queue, 1)
	assert.Equal(t, 1, snap.Queue[0].StepsRemaining)
	assert.True(t, snap.Queue[0].Active)
	assert.Empty(t, snap.LastFault)
	assert.False(t, snap.Halted)
}

func TestSimulation_SnapshotIsACopy(t *testing.T) {
	sim := loadedSimulation(t, singleOrderSource())

	snap := sim.Snapshot()
	snap.Queue[0].ID = "tampered"
	delete(snap.Machines, "M1")

	fresh := sim.Snapshot()
	assert.Equal(t, []string{"O1"}, fresh.QueueIDs())
	assert.Contains(t, fresh.Machines, "M1")
}

func TestSimulation_RunUntilIdle(t *testing.T) {
	sim := loadedSimulation(t, singleOrderSource())

	n, err := sim.RunUntilIdle(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, sim.Idle())
	assert.Equal(t, 2, sim.Day())

	events := sim.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, EventPruned, events[len(events)-1].Kind)
}

func TestSimulation_RunUntilIdleWaitsForFutureOrders(t *testing.T) {
	src := testutil.Source(nil, []catalog.Order{testutil.Order("LATE", 3)}, nil)
	sim := loadedSimulation(t, src)

	assert.False(t, sim.Idle(), "order starting on day 3 is still to come")
	n, err := sim.RunUntilIdle(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSimulation_RunUntilIdleStepsExceeded(t *testing.T) {
	src := testutil.Source(
		[]catalog.Machine{testutil.Machine("M1", 8, 50, 60)},
		[]catalog.Order{testutil.Order("O1", 0)},
		[]catalog.RoutingStep{testutil.Step("O1", "M1", 1, 8)},
	)
	sim := loadedSimulation(t, src)

	n, err := sim.RunUntilIdle(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, IsStepsExceededError(err))
	assert.Equal(t, 5, n)

	var se *StepsExceededError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 5, se.Steps)
	assert.Equal(t, 5, se.Day)
	assert.Equal(t, 1, se.Queued)
	assert.Nil(t, sim.Halted(), "budget exhaustion is not a fault")
}

func TestSimulation_IsolatedFaultIsSurfacedNotFatal(t *testing.T) {
	src := testutil.Source(
		[]catalog.Machine{testutil.Machine("M1", 8, 0, 100)},
		[]catalog.Order{testutil.Order("O1", 0)},
		[]catalog.RoutingStep{testutil.Step("O1", "GHOST", 1, 8)},
	)
	sim := loadedSimulation(t, src)

	assert.True(t, IsDataInconsistency(sim.LastFault()))
	assert.Contains(t, sim.Snapshot().LastFault, "DATA_INCONSISTENCY")

	_, err := sim.Step(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sim.Halted())
}

func TestSimulation_CatalogUnreadable(t *testing.T) {
	sim := NewSimulation(failingSource{})

	err := sim.Load(context.Background())
	require.Error(t, err)

	var se *SimError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeCatalogUnreadable, se.Code)
	assert.True(t, sim.Snapshot().Halted)

	_, err = sim.Step(context.Background())
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeCatalogUnreadable, se.Code)
}

func TestSimulation_ReentrantStepHalts(t *testing.T) {
	var sim *Simulation
	var inner error
	obs := ObserverFunc(func(ctx context.Context, snap Snapshot, _ StepReport) error {
		if snap.Step == 1 {
			_, inner = sim.Step(ctx)
		}
		return nil
	})
	sim = loadedSimulation(t, singleOrderSource(), WithObserver(obs))

	_, err := sim.Step(context.Background())
	require.NoError(t, err, "the outer step itself completed")
	assert.True(t, IsStepInFlight(inner))
	assert.True(t, IsStepInFlight(sim.Halted()))

	snap, err := sim.Step(context.Background())
	require.Error(t, err)
	assert.True(t, IsHalted(err))
	assert.True(t, IsStepInFlight(err), "halt wraps the original fault")
	assert.Equal(t, 1, snap.Day, "halted simulation does not advance")
}

func TestSimulation_ResetDiscardsState(t *testing.T) {
	sim := loadedSimulation(t, singleOrderSource())
	ctx := context.Background()

	_, err := sim.Step(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sim.Day())

	require.NoError(t, sim.Reset(ctx))
	assert.Equal(t, 0, sim.Day())
	assert.Equal(t, "run-2", sim.RunID())
	assert.Equal(t, 0, sim.Snapshot().Step)
	for _, ev := range sim.Events() {
		assert.Equal(t, 0, ev.Day, "event log restarts with the run")
	}
}

func TestSimulation_ResetClearsHalt(t *testing.T) {
	src := testutil.Source(
		[]catalog.Machine{testutil.Machine("M1", 8, 0, 100)},
		[]catalog.Order{testutil.Order("O1", 0)},
		[]catalog.RoutingStep{testutil.Step("O1", "M1", 1, 16)},
	)
	var sim *Simulation
	obs := ObserverFunc(func(ctx context.Context, snap Snapshot, _ StepReport) error {
		if snap.Step == 1 && snap.RunID == "run-1" {
			_, _ = sim.Step(ctx)
		}
		return nil
	})
	sim = loadedSimulation(t, src, WithObserver(obs))
	_, _ = sim.Step(context.Background())
	require.NotNil(t, sim.Halted())

	require.NoError(t, sim.Reset(context.Background()))
	assert.Nil(t, sim.Halted())
	_, err := sim.Step(context.Background())
	assert.NoError(t, err)
}

func TestSimulation_ObserverErrorIsNotFatal(t *testing.T) {
	var calls int
	obs := ObserverFunc(func(context.Context, Snapshot, StepReport) error {
		calls++
		return errors.New("display went away")
	})
	sim := loadedSimulation(t, singleOrderSource(), WithObserver(obs))

	_, err := sim.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "called after load and after the step")
	assert.Nil(t, sim.Halted())
}

func TestSimulation_RunWithTriggerPacer(t *testing.T) {
	sim := loadedSimulation(t, singleOrderSource())
	pacer := NewTriggerPacer()

	done := make(chan error, 1)
	go func() { done <- sim.Run(context.Background(), pacer) }()

	require.True(t, pacer.Trigger())
	require.Eventually(t, func() bool { return sim.Day() == 1 }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, sim.Reset(context.Background()), ErrRunning)
	assert.ErrorIs(t, sim.Run(context.Background(), NewTriggerPacer()), ErrRunning)

	sim.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.False(t, pacer.Trigger(), "pacer is stopped when Run returns")
	assert.Equal(t, 1, sim.Day())
}

func TestSimulation_RunEndsWhenPacerCloses(t *testing.T) {
	sim := loadedSimulation(t, singleOrderSource())
	pacer := NewTriggerPacer()
	pacer.Stop()

	assert.NoError(t, sim.Run(context.Background(), pacer))
	assert.Equal(t, 0, sim.Day())
}

func TestSimulation_RunWithIntervalPacerStopsOnCancel(t *testing.T) {
	sim := loadedSimulation(t, singleOrderSource())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx, NewIntervalPacer(time.Millisecond)) }()

	require.Eventually(t, func() bool { return sim.Day() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Nil(t, sim.Halted())
}

func TestSimulation_RunReturnsFatalStepError(t *testing.T) {
	sim := NewSimulation(failingSource{})
	require.Error(t, sim.Load(context.Background()))

	pacer := NewTriggerPacer()
	pacer.Trigger()
	err := sim.Run(context.Background(), pacer)
	var se *SimError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeCatalogUnreadable, se.Code)
}
