package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFilesUnifies(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "queue.cue")
	b := filepath.Join(dir, "units.cue")
	require.NoError(t, os.WriteFile(a, []byte(`queue: capacity: 4`), 0o644))
	require.NoError(t, os.WriteFile(b, []byte(`unit: Fox: tier: 1`), 0o644))

	cfg, err := LoadFiles(a, b)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Queue.Capacity)
	require.Len(t, cfg.Units, 1)
	assert.EqualValues(t, "Fox", cfg.Units[0].ID)
}

func TestLoadFilesConflict(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.cue")
	b := filepath.Join(dir, "b.cue")
	require.NoError(t, os.WriteFile(a, []byte(`queue: capacity: 4`), 0o644))
	require.NoError(t, os.WriteFile(b, []byte(`queue: capacity: 5`), 0o644))

	_, err := LoadFiles(a, b)
	assert.Error(t, err)
}

func TestLoadFilesErrors(t *testing.T) {
	_, err := LoadFiles()
	assert.Error(t, err)

	_, err = LoadFiles(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}

func TestLoadStringPositions(t *testing.T) {
	_, err := LoadString("inline.cue", "unit: Fox: {\n\tname: \"Fox\"\n}")
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "unit.Fox.tier", ce.Field)
}
