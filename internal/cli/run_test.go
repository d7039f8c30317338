package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikonych/fliessfertigung/internal/engine"
	"github.com/nikonych/fliessfertigung/internal/store"
)

type runSummary struct {
	RunID string `json:"run_id"`
	Steps int    `json:"steps"`
	Day   int    `json:"day"`
	Idle  bool   `json:"idle"`
}

// executeRun runs the run command with a fixed run id.
func executeRun(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: format, LogFormat: "text"},
		RunIDs:      engine.NewFixedGenerator("run-1"),
	}
	cmd := newRunCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRun_UntilIdle(t *testing.T) {
	db := importPlant(t)

	out, err := executeRun(t, "json", "--db", db)
	require.NoError(t, err)

	var sum runSummary
	assert.Equal(t, "ok", decodeData(t, out, &sum))
	assert.Equal(t, runSummary{RunID: "run-1", Steps: 5, Day: 5, Idle: true}, sum)
}

func TestRun_TextOutput(t *testing.T) {
	db := importPlant(t)

	out, err := executeRun(t, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Run run-1: day 5, step 5")
	assert.Contains(t, out, "Press")
	assert.Contains(t, out, "Queue (0):")
	assert.Contains(t, out, "All orders finished after 5 steps.")
}

func TestRun_Days(t *testing.T) {
	db := importPlant(t)

	out, err := executeRun(t, "json", "--db", db, "--days", "2")
	require.NoError(t, err)

	var sum runSummary
	decodeData(t, out, &sum)
	assert.Equal(t, 2, sum.Steps)
	assert.Equal(t, 2, sum.Day)
	assert.False(t, sum.Idle)
}

func TestRun_DaysStopEarlyWhenIdle(t *testing.T) {
	db := importPlant(t)

	out, err := executeRun(t, "json", "--db", db, "--days", "50", "--until-idle")
	require.NoError(t, err)

	var sum runSummary
	decodeData(t, out, &sum)
	assert.Equal(t, 5, sum.Steps)
	assert.True(t, sum.Idle)
}

func TestRun_StartDay(t *testing.T) {
	db := importPlant(t)

	out, err := executeRun(t, "json", "--db", db, "--days", "1", "--start-day", "10")
	require.NoError(t, err)

	var sum runSummary
	decodeData(t, out, &sum)
	assert.Equal(t, 11, sum.Day)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	run, err := st.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, run.StartDay)
}

func TestRun_RecordsEveryStep(t *testing.T) {
	db := runPlant(t)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	run, err := st.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Run{ID: "run-1", StartDay: 0, Source: "sqlite"}, run)

	events, err := st.ReadEvents(ctx, "run-1", store.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 10)
	assert.Equal(t, engine.EventAdmitted, events[0].Kind)
	assert.Equal(t, engine.EventPruned, events[9].Kind)
	assert.Equal(t, "O2", events[9].OrderID)

	for day := 0; day <= 5; day++ {
		snap, err := st.ReadSnapshot(ctx, "run-1", day)
		require.NoError(t, err, "day %d", day)
		assert.Equal(t, day, snap.Step)
	}
}

func TestRun_EmptyCatalogIsIdle(t *testing.T) {
	dir := workspace(t)

	out, err := executeRun(t, "json", "--db", filepath.Join(dir, "empty.db"))
	require.NoError(t, err)

	var sum runSummary
	decodeData(t, out, &sum)
	assert.Equal(t, 0, sum.Steps)
	assert.True(t, sum.Idle)
}

func TestStopCondition(t *testing.T) {
	db := importPlant(t)
	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	sim := engine.NewSimulation(st)
	stop := &stopCondition{sim: sim, days: 3}
	assert.False(t, stop.reached())

	require.NoError(t, stop.ObserveStep(context.Background(), engine.Snapshot{Step: 3}, engine.StepReport{}))
	assert.True(t, stop.reached())
}
