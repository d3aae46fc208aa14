package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mergeq/internal/compiler"
	"github.com/roach88/mergeq/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
	Stats    ConfigStats                `json:"stats"`
}

// ConfigStats counts the declarations of a config.
type ConfigStats struct {
	Units    int `json:"units"`
	Rules    int `json:"rules"`
	Recipes  int `json:"recipes"`
	Capacity int `json:"capacity"`
}

func statsOf(cfg *ir.Config) ConfigStats {
	return ConfigStats{
		Units:    len(cfg.Units),
		Rules:    len(cfg.Rules),
		Recipes:  len(cfg.Recipes),
		Capacity: cfg.Queue.Capacity,
	}
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a merge configuration",
		Long: `Validate a CUE merge configuration without writing any output.

Checks the schema, value ranges and cross references (unit successors,
recipe sequences), and warns about successor loops in the unit progression.
Warnings never fail validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loaded, err := LoadConfig(path)
	if err != nil {
		code, msg := describeLoadError(err)
		return formatter.fail(ExitCommandError, code, msg)
	}
	formatter.VerboseLog("Loaded %d CUE file(s) from %s", len(loaded.Files), path)

	result := ValidationResult{
		Errors:   compiler.Validate(loaded.Config),
		Warnings: compiler.AnalyzeProgression(loaded.Config.Units),
		Stats:    statsOf(loaded.Config),
	}
	result.Valid = len(result.Errors) == 0

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			resp.Status = "error"
			resp.Error = &CLIError{Code: result.Errors[0].Code, Message: result.Errors[0].Message}
		}
		if err := writeJSON(formatter.Writer, resp); err != nil {
			return err
		}
	} else {
		printValidation(formatter, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}

func printValidation(f *OutputFormatter, result ValidationResult) {
	w := f.Writer
	if result.Valid {
		fmt.Fprintf(w, "✓ Config valid (%d units, %d rules, %d recipes, capacity %d)\n",
			result.Stats.Units, result.Stats.Rules, result.Stats.Recipes, result.Stats.Capacity)
	} else {
		fmt.Fprintln(w, "✗ Validation failed")
		fmt.Fprintln(w)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s %s: %s\n", e.Code, e.Field, e.Message)
		}
	}
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "  %s: %s\n", warn.Level, warn.Message)
	}
}
