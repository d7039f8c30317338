package engine

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikonych/fliessfertigung/internal/catalog"
	"github.com/nikonych/fliessfertigung/internal/testutil"
)

func contendedCatalog(t *testing.T) *catalog.Catalog {
	return testutil.Catalog(t,
		[]catalog.Machine{testutil.Machine("M1", 8, 0, 30), testutil.Machine("M2", 5, 2, 30)},
		[]catalog.Order{testutil.Order("O1", 0), testutil.Order("O2", 0), testutil.Order("O3", 2)},
		[]catalog.RoutingStep{
			testutil.Step("O1", "M1", 1, 16),
			testutil.Step("O1", "M2", 2, 10),
			testutil.Step("O2", "M1", 1, 8),
			testutil.Step("O3", "M2", 1, 5),
			testutil.Step("O3", "M1", 2, 4),
		},
	)
}

func record(t *testing.T, cat *catalog.Catalog, steps int) []Event {
	t.Helper()
	e := NewEngine(cat)
	st, rep, err := e.Initialize(0)
	require.NoError(t, err)
	events := append([]Event(nil), rep.Events...)
	for i := 0; i < steps; i++ {
		st, rep, err = e.Step(st)
		require.NoError(t, err)
		events = append(events, rep.Events...)
	}
	return events
}

func TestRuns_AreDeterministic(t *testing.T) {
	first := record(t, contendedCatalog(t), 8)
	second := record(t, contendedCatalog(t), 8)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("event logs differ (-first +second):\n%s", diff)
	}
}

func TestReplay_Deterministic(t *testing.T) {
	cat := contendedCatalog(t)
	recorded := record(t, cat, 8)

	res, err := Replay(context.Background(), cat, 0, recorded)
	require.NoError(t, err)
	assert.True(t, res.Deterministic)
	assert.Equal(t, len(recorded), res.Compared)
	assert.Equal(t, 6, res.Steps, "replay stops on the last recorded day")
	assert.Nil(t, res.Divergence)
}

func TestReplay_DetectsChangedCatalog(t *testing.T) {
	recorded := record(t, contendedCatalog(t), 8)

	changed := testutil.Catalog(t,
		[]catalog.Machine{testutil.Machine("M1", 8, 0, 30), testutil.Machine("M2", 5, 2, 30)},
		[]catalog.Order{testutil.Order("O1", 0), testutil.Order("O2", 0), testutil.Order("O3", 2)},
		[]catalog.RoutingStep{
			testutil.Step("O1", "M1", 1, 24), // was 16
			testutil.Step("O1", "M2", 2, 10),
			testutil.Step("O2", "M1", 1, 8),
			testutil.Step("O3", "M2", 1, 5),
			testutil.Step("O3", "M1", 2, 4),
		},
	)

	res, err := Replay(context.Background(), changed, 0, recorded)
	require.NoError(t, err)
	assert.False(t, res.Deterministic)
	require.NotNil(t, res.Divergence)
	// The first dispatch of O1 already carries the longer duration.
	assert.Equal(t, 2, res.Divergence.Index)
	require.NotNil(t, res.Divergence.Expected)
	assert.Equal(t, 16.0, res.Divergence.Expected.Remaining)
	assert.Equal(t, 24.0, res.Divergence.Got.Remaining)
}

func TestReplay_ShorterRecording(t *testing.T) {
	cat := contendedCatalog(t)
	recorded := record(t, cat, 8)
	require.Len(t, recorded, 16)
	// Drop the final prune of O3 on day 6.
	truncated := recorded[:15]

	res, err := Replay(context.Background(), cat, 0, truncated)
	require.NoError(t, err)
	assert.False(t, res.Deterministic)
	require.NotNil(t, res.Divergence)
	assert.Equal(t, 15, res.Divergence.Index)
	assert.Nil(t, res.Divergence.Expected)
	require.NotNil(t, res.Divergence.Got)
	assert.Equal(t, EventPruned, res.Divergence.Got.Kind)
	assert.Equal(t, "O3", res.Divergence.Got.OrderID)
}

func TestReplay_CancelledContext(t *testing.T) {
	cat := contendedCatalog(t)
	recorded := record(t, cat, 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Replay(ctx, cat, 0, recorded)
	assert.ErrorIs(t, err, context.Canceled)
}
