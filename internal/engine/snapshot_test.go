package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikonych/fliessfertigung/internal/catalog"
	"github.com/nikonych/fliessfertigung/internal/testutil"
)

func TestNewSnapshot_Views(t *testing.T) {
	cat := testutil.Catalog(t,
		[]catalog.Machine{testutil.Machine("M1", 8, 0, 10), testutil.Machine("M2", 4, 5, 10)},
		[]catalog.Order{testutil.Order("O1", 0), testutil.Order("O2", 0)},
		[]catalog.RoutingStep{
			testutil.Step("O1", "M1", 10, 8),
			testutil.Step("O1", "M2", 20, 8),
			testutil.Step("O2", "M1", 5, 8),
		},
	)
	e := NewEngine(cat)
	st, _, err := e.Initialize(0)
	require.NoError(t, err)

	snap := NewSnapshot(cat, st)

	assert.Equal(t, []string{"O1", "O2"}, snap.QueueIDs())
	o1 := snap.Queue[0]
	assert.Equal(t, 2, o1.StepsTotal)
	assert.Equal(t, 2, o1.StepsRemaining)
	assert.Equal(t, 10, o1.NextSequence)
	assert.True(t, o1.Active)
	assert.False(t, snap.Queue[1].Active)

	assert.Equal(t, "Machine M1", snap.Machines["M1"].Name)
	assert.False(t, snap.Machines["M2"].Available)
	assert.Equal(t, "O1", snap.Machines["M1"].BoundOrder)

	task, ok := snap.Task("O1")
	require.True(t, ok)
	assert.Equal(t, ActiveTaskView{OrderID: "O1", MachineID: "M1", Sequence: 10, Remaining: 8}, task)
	_, ok = snap.Task("O2")
	assert.False(t, ok)
}

func TestSnapshot_JSONShape(t *testing.T) {
	cat := testutil.Catalog(t,
		[]catalog.Machine{testutil.Machine("M1", 8, 0, 10)},
		[]catalog.Order{testutil.Order("O1", 0)},
		[]catalog.RoutingStep{testutil.Step("O1", "M1", 1, 8)},
	)
	st, _, err := NewEngine(cat).Initialize(0)
	require.NoError(t, err)

	raw, err := json.Marshal(NewSnapshot(cat, st))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "machines")
	assert.Contains(t, decoded, "active_tasks")
	assert.Contains(t, decoded, "queue")
	assert.NotContains(t, decoded, "last_fault")
}
