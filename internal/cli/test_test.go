package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mergeq/internal/store"
)

func TestTest_RunsScenarios(t *testing.T) {
	golden := t.TempDir()

	out, err := execute(t, NewTestCommand(textOpts()), scenarioDir, "--golden", golden)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ fox_triple (no golden file)")
	assert.Contains(t, out, "10 passed, 0 failed")
}

func TestTest_GoldenRoundTrip(t *testing.T) {
	golden := t.TempDir()

	out, err := execute(t, NewTestCommand(textOpts()), scenarioDir, "--golden", golden, "--update", "--filter", "fox")
	require.NoError(t, err, out)
	assert.FileExists(t, filepath.Join(golden, "fox_triple.golden"))
	assert.FileExists(t, filepath.Join(golden, "fox_quad.golden"))

	out, err = execute(t, NewTestCommand(jsonOpts()), scenarioDir, "--golden", golden, "--filter", "fox")
	require.NoError(t, err, out)

	var resp struct {
		Data TestReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Golden, 2)
	for _, check := range resp.Data.Golden {
		assert.Equal(t, GoldenMatch, check.Status, check.Scenario)
	}

	require.NoError(t, os.WriteFile(filepath.Join(golden, "fox_triple.golden"), []byte("{}"), 0o644))
	out, err = execute(t, NewTestCommand(textOpts()), scenarioDir, "--golden", golden, "--filter", "fox")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ fox_triple (golden mismatch)")
}

func TestTest_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(`
name: wrong
description: expects the wrong queue
flow:
  - invoke: purchase
    args: {type: Fox}
assertions:
  - type: count
    count: 2
`), 0o644))

	out, err := execute(t, NewTestCommand(textOpts()), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "0 passed, 1 failed")
	assert.NoDirExists(t, filepath.Join(dir, "golden"))
}

func TestTest_JournalsIntoDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "mergeq.db")

	_, err := execute(t, NewTestCommand(textOpts()), scenarioDir, "--golden", t.TempDir(), "--db", db, "--filter", "queen_rat")
	require.NoError(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	sessions, err := st.ListSessions(t.Context())
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestTest_MissingPath(t *testing.T) {
	_, err := execute(t, NewTestCommand(textOpts()), filepath.Join(t.TempDir(), "none"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}

func TestDefaultGoldenDir(t *testing.T) {
	assert.Equal(t, filepath.Join(scenarioDir, "golden"), defaultGoldenDir(scenarioDir))
	file := filepath.Join(scenarioDir, "busy.yaml")
	assert.Equal(t, filepath.Join(scenarioDir, "golden"), defaultGoldenDir(file))
}
