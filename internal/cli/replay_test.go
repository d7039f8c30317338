package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplay_Deterministic(t *testing.T) {
	db := runPlant(t)

	out, err := executeCLI(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Replay of run run-1 (start day 0)")
	assert.Contains(t, out, "recorded events: 10")
	assert.Contains(t, out, "matching events: 10")
	assert.Contains(t, out, "✓ Replay matches the recording")
}

func TestReplay_DivergesAfterCatalogChange(t *testing.T) {
	db := runPlant(t)
	dir := filepath.Dir(db)

	changed := strings.Replace(plantYAML,
		"{ order: O2, machine: M1, sequence: 1, duration: 8 }",
		"{ order: O2, machine: M1, sequence: 1, duration: 16 }", 1)
	_, err := executeCLI(t, "import", "--db", db, writeFile(t, dir, "changed.yaml", changed))
	require.NoError(t, err)

	out, err := executeCLI(t, "--format", "json", "replay", "--db", db, "--run", "run-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ReplayResult
	assert.Equal(t, "error", decodeData(t, out, &result))
	assert.False(t, result.Deterministic)
	assert.Equal(t, 6, result.Compared)
	require.NotNil(t, result.Divergence)
	assert.Equal(t, 6, result.Divergence.Index)
	require.NotNil(t, result.Divergence.Expected)
	require.NotNil(t, result.Divergence.Got)
	assert.Equal(t, 8.0, result.Divergence.Expected.Remaining)
	assert.Equal(t, 16.0, result.Divergence.Got.Remaining)
	assert.Contains(t, out, "E_REPLAY_DIVERGED")
}

func TestReplay_NoRuns(t *testing.T) {
	db := importPlant(t)

	_, err := executeCLI(t, "replay", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no runs recorded")
}
