package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/mergeq/internal/harness"
	"github.com/roach88/mergeq/internal/store"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter    string
	Update    bool
	GoldenDir string
	Database  string
}

// GoldenStatus is the outcome of one golden comparison.
type GoldenStatus string

const (
	GoldenMatch    GoldenStatus = "match"
	GoldenMismatch GoldenStatus = "mismatch"
	GoldenMissing  GoldenStatus = "missing"
	GoldenUpdated  GoldenStatus = "updated"
)

// GoldenCheck records the golden comparison for one scenario.
type GoldenCheck struct {
	Scenario string       `json:"scenario"`
	Path     string       `json:"path"`
	Status   GoldenStatus `json:"status"`
}

// TestReport is the JSON payload of the test command.
type TestReport struct {
	*harness.SuiteResult
	Golden []GoldenCheck `json:"golden"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios>",
		Short: "Run merge scenarios and compare golden traces",
		Long: `Run YAML merge scenarios against the engine.

Each scenario drives a fresh engine through its setup and flow steps,
checks the queue invariants after every step and evaluates its assertions.
Passing scenarios are compared with <golden-dir>/<name>.golden; a missing
golden file is reported but does not fail the run.

Exit codes:
  0 - All scenarios passed
  1 - A scenario or golden comparison failed
  2 - Command error (path not found, database error)

Examples:
  mergeq test ./scenarios
  mergeq test ./scenarios --filter queen_rat
  mergeq test ./scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run only scenarios whose name contains this text")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files from this run")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory (default <scenarios>/golden)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "journal every scenario into this SQLite database")

	return cmd
}

func runTests(opts *TestOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	var st *store.Store
	if opts.Database != "" {
		var err error
		st, err = store.Open(opts.Database)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStoreFailed, fmt.Sprintf("opening database: %v", err))
		}
		defer st.Close()
	}

	suite, err := harness.RunSuite(ctx, path, st, harness.WithFilter(opts.Filter))
	if err != nil {
		var nf *harness.ScenarioNotFoundError
		if errors.As(err, &nf) {
			return formatter.fail(ExitCommandError, ErrCodeNotFound, err.Error())
		}
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}

	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = defaultGoldenDir(path)
	}
	report := TestReport{SuiteResult: suite, Golden: []GoldenCheck{}}
	for _, run := range suite.Results {
		if !run.Result.Pass {
			continue
		}
		check, err := checkGolden(goldenDir, run, opts.Update)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWriteFailed, err.Error())
		}
		formatter.VerboseLog("golden %s: %s", check.Path, check.Status)
		report.Golden = append(report.Golden, check)
	}

	failed := suite.Failed
	for _, check := range report.Golden {
		if check.Status == GoldenMismatch {
			failed++
		}
	}

	if formatter.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		printTestReport(formatter, report)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario check(s) failed", failed))
	}
	return nil
}

// defaultGoldenDir is <path>/golden for a directory, a sibling golden/ for a file.
func defaultGoldenDir(path string) string {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return filepath.Join(filepath.Dir(path), "golden")
	}
	return filepath.Join(path, "golden")
}

// checkGolden compares a run's trace snapshot with its golden file, or
// rewrites the file when update is set. The file format is the one
// harness.AssertGolden reads.
func checkGolden(dir string, run harness.ScenarioRun, update bool) (GoldenCheck, error) {
	name := run.Scenario.Name
	check := GoldenCheck{Scenario: name, Path: filepath.Join(dir, name+".golden")}

	snap := harness.NewTraceSnapshot(name, run.Result)
	data, err := snap.MarshalCanonical()
	if err != nil {
		return check, fmt.Errorf("snapshot %s: %w", name, err)
	}

	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return check, fmt.Errorf("creating golden dir: %w", err)
		}
		if err := os.WriteFile(check.Path, data, 0o644); err != nil {
			return check, fmt.Errorf("writing golden file: %w", err)
		}
		check.Status = GoldenUpdated
		return check, nil
	}

	want, err := os.ReadFile(check.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		check.Status = GoldenMissing
	case err != nil:
		return check, fmt.Errorf("reading golden file: %w", err)
	case bytes.Equal(want, data):
		check.Status = GoldenMatch
	default:
		check.Status = GoldenMismatch
	}
	return check, nil
}

func printTestReport(f *OutputFormatter, report TestReport) {
	w := f.Writer
	golden := make(map[string]GoldenStatus, len(report.Golden))
	for _, c := range report.Golden {
		golden[c.Scenario] = c.Status
	}

	for _, run := range report.Results {
		status := golden[run.Scenario.Name]
		switch {
		case !run.Result.Pass:
			// listed with the failures below
		case status == GoldenMismatch:
			fmt.Fprintf(w, "✗ %s (golden mismatch)\n", run.Scenario.Name)
		case status == GoldenMissing:
			fmt.Fprintf(w, "✓ %s (no golden file)\n", run.Scenario.Name)
		default:
			fmt.Fprintf(w, "✓ %s\n", run.Scenario.Name)
		}
	}
	for _, failure := range report.Failures {
		label := failure.Name
		if label == "" {
			label = failure.Path
		}
		fmt.Fprintf(w, "✗ %s\n", label)
		for _, e := range failure.Errors {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d passed, %d failed", report.Passed, report.Failed)
	if report.Skipped > 0 {
		fmt.Fprintf(w, ", %d skipped", report.Skipped)
	}
	fmt.Fprintln(w)
}
