package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, "mergeq", root.Use)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"compile", "validate", "run", "replay", "test", "trace"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	root := NewRootCommand()

	verbose := root.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	format := root.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := execute(t, NewRootCommand(), "--format", "xml", "validate", configDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootCommand_Version(t *testing.T) {
	out, err := execute(t, NewRootCommand(), "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "0.1.0 (journal v1)")
}

func TestRootCommand_DispatchesToValidate(t *testing.T) {
	out, err := execute(t, NewRootCommand(), "validate", configDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Config valid")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))

	wrapped := WrapExitError(ExitFailure, "replay failed", errors.New("diverged"))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "replay failed: diverged", wrapped.Error())
	assert.EqualError(t, errors.Unwrap(wrapped), "diverged")
}
