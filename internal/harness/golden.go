package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/nikonych/fliessfertigung/internal/engine"
)

// TraceSnapshot is the golden file content of a scenario run.
type TraceSnapshot struct {
	ScenarioName string         `json:"scenario_name"`
	InitialDay   int            `json:"initial_day"`
	Trace        []engine.Event `json:"trace"`
}

// MarshalTrace renders a trace snapshot as indented JSON with a trailing
// newline.
func MarshalTrace(name string, initialDay int, trace []engine.Event) ([]byte, error) {
	if trace == nil {
		trace = []engine.Event{}
	}
	data, err := json.MarshalIndent(TraceSnapshot{
		ScenarioName: name,
		InitialDay:   initialDay,
		Trace:        trace,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario, fails t on assertion errors and
// compares the trace against testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	return AssertGolden(t, scenario.Name, scenario.InitialDay, result)
}

// AssertGolden compares an existing result's trace against its golden file.
func AssertGolden(t *testing.T, scenarioName string, initialDay int, result *Result) error {
	t.Helper()

	data, err := MarshalTrace(scenarioName, initialDay, result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
