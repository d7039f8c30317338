package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const failingScenario = `name: failing
description: "Expects the wrong queue"
steps: 1
catalog:
  machines:
    - { id: M1, available_from: 0, available_to: 10, daily_capacity: 8 }
  orders:
    - { id: O1, start: 0 }
  routing:
    - { order: O1, machine: M1, sequence: 1, duration: 16 }
assertions:
  - type: queue
    after_step: 1
    orders: [O9]
`

// scenarioDir copies the harness queue_order scenario into a fresh
// scenarios directory and returns it with the harness golden content.
func scenarioDir(t *testing.T) (string, []byte) {
	t.Helper()
	scenario, err := os.ReadFile(filepath.Join("..", "harness", "testdata", "scenarios", "queue_order.yaml"))
	require.NoError(t, err)
	golden, err := os.ReadFile(filepath.Join("..", "harness", "testdata", "golden", "queue_order.golden"))
	require.NoError(t, err)

	dir := filepath.Join(workspace(t), "scenarios")
	writeFile(t, dir, "queue_order.yaml", string(scenario))
	return dir, golden
}

func TestTestCommand_MissingArgs(t *testing.T) {
	workspace(t)
	_, err := executeCLI(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommand_MissingDir(t *testing.T) {
	dir := workspace(t)

	_, err := executeCLI(t, "test", filepath.Join(dir, "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommand_EmptyDir(t *testing.T) {
	dir := workspace(t)

	out, err := executeCLI(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")

	out, err = executeCLI(t, "--format", "json", "test", dir)
	require.NoError(t, err)
	var result TestResult
	assert.Equal(t, "ok", decodeData(t, out, &result))
	assert.Equal(t, 0, result.Total)
	assert.NotNil(t, result.Scenarios)
}

func TestTestCommand_PassesWithoutGolden(t *testing.T) {
	dir, _ := scenarioDir(t)

	out, err := executeCLI(t, "--format", "json", "test", dir)
	require.NoError(t, err)

	var result TestResult
	decodeData(t, out, &result)
	require.Len(t, result.Scenarios, 1)
	assert.True(t, result.Scenarios[0].Pass)
	assert.Equal(t, "queue_order", result.Scenarios[0].Name)
	assert.Equal(t, "missing", result.Scenarios[0].Golden)
}

func TestTestCommand_UpdateWritesGolden(t *testing.T) {
	dir, want := scenarioDir(t)

	out, err := executeCLI(t, "test", "--update", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ queue_order (golden updated)")

	got, err := os.ReadFile(filepath.Join(dir, "golden", "queue_order.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	out, err = executeCLI(t, "--format", "json", "test", dir)
	require.NoError(t, err)
	var result TestResult
	decodeData(t, out, &result)
	assert.Equal(t, "match", result.Scenarios[0].Golden)
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	dir, want := scenarioDir(t)
	tampered := strings.Replace(string(want), `"remaining": 24`, `"remaining": 25`, 1)
	writeFile(t, dir, filepath.Join("golden", "queue_order.golden"), tampered)

	out, err := executeCLI(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ queue_order")
	assert.Contains(t, out, "trace does not match golden file")
	assert.Contains(t, out, "Error [E_TEST_FAILED]: 1 scenario(s) failed")
}

func TestTestCommand_FailingAssertion(t *testing.T) {
	dir, _ := scenarioDir(t)
	writeFile(t, dir, "failing.yaml", failingScenario)

	out, err := executeCLI(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ failing")
	assert.Contains(t, out, "✓ queue_order")
	assert.Contains(t, out, "Assertion failed: queue")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommand_Filter(t *testing.T) {
	dir, _ := scenarioDir(t)
	writeFile(t, dir, "failing.yaml", failingScenario)

	out, err := executeCLI(t, "--format", "json", "test", "--filter", "queue_*", dir)
	require.NoError(t, err)

	var result TestResult
	decodeData(t, out, &result)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Passed)
}

func TestTestCommand_BrokenScenarioFile(t *testing.T) {
	dir := workspace(t)
	writeFile(t, dir, "broken.yaml", "name: broken\nsteps: -1\n")

	out, err := executeCLI(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "load:")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "queue_order.golden"),
		goldenFilePath(filepath.Join("scenarios", "queue_order.yaml")))
}
