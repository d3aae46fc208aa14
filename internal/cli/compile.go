package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/mergeq/internal/compiler"
	"github.com/roach88/mergeq/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string
}

// CompileResult is the JSON payload of a successful compile.
type CompileResult struct {
	Hash   string          `json:"config_hash"`
	Files  []string        `json:"files"`
	Stats  ConfigStats     `json:"stats"`
	Output string          `json:"output,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <config>",
		Short: "Compile a CUE merge configuration to canonical JSON",
		Long: `Compile and validate a CUE merge configuration.

The compiled config is written as canonical JSON, the exact bytes the
config hash covers. Sessions record that hash, so replay can tell when
a config changed after a session was recorded.

Examples:
  mergeq compile ./config
  mergeq compile ./config -o config.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the compiled config to this file")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loaded, err := LoadConfig(path)
	if err != nil {
		code, msg := describeLoadError(err)
		return formatter.fail(ExitCommandError, code, msg)
	}
	if errs := compiler.Validate(loaded.Config); len(errs) > 0 {
		_ = formatter.Error(errs[0].Code, errs[0].Error(), errs)
		return NewExitError(ExitFailure, fmt.Sprintf("config invalid with %d error(s)", len(errs)))
	}

	data, err := ir.MarshalConfig(loaded.Config)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("marshaling config: %v", err))
	}

	result := CompileResult{
		Hash:   loaded.Hash,
		Files:  loaded.Files,
		Stats:  statsOf(loaded.Config),
		Output: opts.Output,
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, append(data, '\n'), 0o644); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing %s: %v", opts.Output, err))
		}
		formatter.VerboseLog("Wrote %d bytes to %s", len(data)+1, opts.Output)
	} else {
		result.Config = data
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	if opts.Output == "" {
		fmt.Fprintln(formatter.Writer, string(data))
		return nil
	}
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d file(s) to %s\n", len(loaded.Files), opts.Output)
	fmt.Fprintf(formatter.Writer, "  config hash: %s\n", loaded.Hash)
	return nil
}
