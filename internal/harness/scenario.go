package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nikonych/fliessfertigung/internal/engine"
	"github.com/nikonych/fliessfertigung/internal/importer"
)

// Scenario is one simulation run with expectations about its states and
// events.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// InitialDay is the day the run is loaded at.
	InitialDay int `yaml:"initial_day"`

	// Steps is the number of steps to run after loading.
	Steps int `yaml:"steps"`

	// RunID is the fixed run id. Defaults to "scenario-run".
	RunID string `yaml:"run_id,omitempty"`

	// Catalog is the inline catalog, in import file shape.
	Catalog importer.Document `yaml:"catalog"`

	// Assertions are checked after all steps ran.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion checks the run after a given step. Which fields apply depends
// on Type.
type Assertion struct {
	Type      string `yaml:"type"`
	AfterStep int    `yaml:"after_step"`

	// queue
	Orders []string `yaml:"orders,omitempty"`

	// task, event_count
	Order string `yaml:"order,omitempty"`

	// task, machine
	Machine   string   `yaml:"machine,omitempty"`
	Remaining *float64 `yaml:"remaining,omitempty"`
	Active    *bool    `yaml:"active,omitempty"`

	// machine
	Available  *bool   `yaml:"available,omitempty"`
	Free       *bool   `yaml:"free,omitempty"`
	BoundOrder *string `yaml:"bound_order,omitempty"`

	// event_count
	Kind  string `yaml:"kind,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// event_order: "kind" or "kind:order"
	Events []string `yaml:"events,omitempty"`
}

// Assertion type constants.
const (
	AssertQueue      = "queue"
	AssertTask       = "task"
	AssertMachine    = "machine"
	AssertEventCount = "event_count"
	AssertEventOrder = "event_order"
)

const defaultRunID = "scenario-run"

var eventKinds = []engine.EventKind{
	engine.EventAdmitted,
	engine.EventDispatched,
	engine.EventCompleted,
	engine.EventPruned,
	engine.EventFault,
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos do not silently disable checks.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// DiscoverScenarios returns the scenario files in dir, sorted by name.
func DiscoverScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Steps < 0 {
		return fmt.Errorf("steps must be non-negative")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if err := s.Catalog.Validate(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], s.Steps); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.AfterStep < 0 || a.AfterStep > steps {
		return fmt.Errorf("assertions[%d]: after_step %d outside 0..%d", index, a.AfterStep, steps)
	}

	switch a.Type {
	case AssertQueue:
	case AssertTask:
		if a.Order == "" {
			return fmt.Errorf("assertions[%d]: order is required for task", index)
		}
	case AssertMachine:
		if a.Machine == "" {
			return fmt.Errorf("assertions[%d]: machine is required for machine", index)
		}
		if a.Available == nil && a.Free == nil && a.BoundOrder == nil {
			return fmt.Errorf("assertions[%d]: machine needs available, free or bound_order", index)
		}
	case AssertEventCount:
		if !validKind(a.Kind) {
			return fmt.Errorf("assertions[%d]: unknown event kind %q", index, a.Kind)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
		for _, ev := range a.Events {
			kind, _ := splitEventRef(ev)
			if !validKind(kind) {
				return fmt.Errorf("assertions[%d]: unknown event kind in %q", index, ev)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func validKind(kind string) bool {
	return slices.Contains(eventKinds, engine.EventKind(kind))
}

// splitEventRef splits "kind:order" into its parts. The order is empty
// when the reference names a kind only.
func splitEventRef(ref string) (kind, order string) {
	kind, order, _ = strings.Cut(ref, ":")
	return kind, order
}
