package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "minimal scenario"
steps: 1
catalog:
  machines:
    - { id: M1, available_from: 0, available_to: 10, daily_capacity: 8 }
  orders:
    - { id: O1, start: 0 }
  routing:
    - { order: O1, machine: M1, sequence: 1, duration: 8 }
assertions:
  - type: queue
    after_step: 1
    orders: []
`

func TestLoadScenario_Files(t *testing.T) {
	paths, err := DiscoverScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.Len(t, paths, 3)

	for _, p := range paths {
		s, err := LoadScenario(p)
		require.NoError(t, err, p)
		assert.NotEmpty(t, s.Assertions)
	}
}

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, 0, s.InitialDay)
	assert.Equal(t, 1, s.Steps)
	require.Len(t, s.Catalog.Machines, 1)
	require.NotNil(t, s.Catalog.Machines[0].AvailableTo)
	assert.Equal(t, 10, *s.Catalog.Machines[0].AvailableTo)
	assert.Equal(t, AssertQueue, s.Assertions[0].Type)
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_RejectsUnknownCatalogFields(t *testing.T) {
	data := `
name: typo
description: "typo inside the catalog"
steps: 1
catalog:
  machines:
    - { id: M1, capacity: 8 }
assertions:
  - { type: queue, after_step: 0 }
`
	_, err := ParseScenario([]byte(data))
	require.Error(t, err)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    `{description: d, steps: 1, assertions: [{type: queue}]}`,
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    `{name: n, steps: 1, assertions: [{type: queue}]}`,
			wantErr: "description is required",
		},
		{
			name:    "negative steps",
			yaml:    `{name: n, description: d, steps: -1, assertions: [{type: queue}]}`,
			wantErr: "steps must be non-negative",
		},
		{
			name:    "no assertions",
			yaml:    `{name: n, description: d, steps: 1}`,
			wantErr: "assertions list is required",
		},
		{
			name:    "after_step beyond steps",
			yaml:    `{name: n, description: d, steps: 1, assertions: [{type: queue, after_step: 2}]}`,
			wantErr: "after_step 2 outside 0..1",
		},
		{
			name:    "unknown type",
			yaml:    `{name: n, description: d, steps: 1, assertions: [{type: final_state}]}`,
			wantErr: `unknown assertion type "final_state"`,
		},
		{
			name:    "task without order",
			yaml:    `{name: n, description: d, steps: 1, assertions: [{type: task}]}`,
			wantErr: "order is required for task",
		},
		{
			name:    "machine without checks",
			yaml:    `{name: n, description: d, steps: 1, assertions: [{type: machine, machine: M1}]}`,
			wantErr: "machine needs available, free or bound_order",
		},
		{
			name:    "unknown event kind",
			yaml:    `{name: n, description: d, steps: 1, assertions: [{type: event_count, kind: started}]}`,
			wantErr: `unknown event kind "started"`,
		},
		{
			name:    "unknown kind in event_order",
			yaml:    `{name: n, description: d, steps: 1, assertions: [{type: event_order, events: ["bound:O1"]}]}`,
			wantErr: `unknown event kind in "bound:O1"`,
		},
		{
			name:    "catalog without ids",
			yaml:    `{name: n, description: d, steps: 1, catalog: {orders: [{start: 0}]}, assertions: [{type: queue}]}`,
			wantErr: "catalog:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestDiscoverScenarios_SortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "golden.yaml"), 0o755))

	paths, err := DiscoverScenarios(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, paths)
}

func TestDiscoverScenarios_MissingDir(t *testing.T) {
	_, err := DiscoverScenarios(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestSplitEventRef(t *testing.T) {
	kind, order := splitEventRef("dispatched:O1")
	assert.Equal(t, "dispatched", kind)
	assert.Equal(t, "O1", order)

	kind, order = splitEventRef("fault")
	assert.Equal(t, "fault", kind)
	assert.Empty(t, order)
}
