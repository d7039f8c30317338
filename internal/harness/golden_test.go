package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikonych/fliessfertigung/internal/engine"
)

func TestRunWithGolden_Scenarios(t *testing.T) {
	paths, err := DiscoverScenarios("testdata/scenarios")
	require.NoError(t, err)

	for _, p := range paths {
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(p)
			require.NoError(t, err)
			require.NoError(t, RunWithGolden(t, s))
		})
	}
}

func TestMarshalTrace_EmptyTraceIsArray(t *testing.T) {
	data, err := MarshalTrace("empty", 3, nil)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"scenario_name\": \"empty\",\n  \"initial_day\": 3,\n  \"trace\": []\n}\n", string(data))
}

func TestMarshalTrace_IsDeterministic(t *testing.T) {
	trace := []engine.Event{
		{Seq: 1, Day: 0, Kind: engine.EventAdmitted, OrderID: "O1"},
		{Seq: 2, Day: 0, Kind: engine.EventDispatched, OrderID: "O1", MachineID: "M1", Sequence: 1, Remaining: 16},
	}
	a, err := MarshalTrace("x", 0, trace)
	require.NoError(t, err)
	b, err := MarshalTrace("x", 0, trace)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
