package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/mergeq/internal/store"
)

// ScenarioNotFoundError is returned when a scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// FindScenarios expands path into scenario files: a file is returned as is,
// a directory yields its *.yaml and *.yml files in lexical order.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: path}
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// SuiteResult summarizes a suite run.
type SuiteResult struct {
	Total    int            `json:"total"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Skipped  int            `json:"skipped"`
	Results  []ScenarioRun  `json:"results"`
	Failures []SuiteFailure `json:"failures,omitempty"`
}

// ScenarioRun is one executed scenario.
type ScenarioRun struct {
	Path     string    `json:"path"`
	Scenario *Scenario `json:"-"`
	Result   *Result   `json:"result"`
}

// SuiteFailure describes one failed scenario.
type SuiteFailure struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Errors []string `json:"errors"`
}

// SuiteOption configures RunSuite.
type SuiteOption func(*suiteConfig)

type suiteConfig struct {
	filter string
}

// WithFilter runs only scenarios whose name contains substr. Scenarios that
// fail to load are always reported.
func WithFilter(substr string) SuiteOption {
	return func(c *suiteConfig) {
		c.filter = substr
	}
}

// RunSuite loads and runs every scenario under path.
//
// With a non-nil st every scenario journals into it, so scenarios must use
// distinct sessions; otherwise each gets its own in-memory store. Load and
// execution errors count as failures and do not stop the suite.
func RunSuite(ctx context.Context, path string, st *store.Store, opts ...SuiteOption) (*SuiteResult, error) {
	var cfg suiteConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	files, err := FindScenarios(path)
	if err != nil {
		return nil, err
	}

	res := &SuiteResult{Results: []ScenarioRun{}}
	for _, file := range files {
		scenario, err := LoadScenario(file)
		if err != nil {
			res.Total++
			res.fail(file, "", fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}
		if cfg.filter != "" && !strings.Contains(scenario.Name, cfg.filter) {
			res.Skipped++
			continue
		}
		res.Total++

		var result *Result
		if st != nil {
			result, err = RunInto(ctx, scenario, st)
		} else {
			result, err = Run(scenario)
		}
		if err != nil {
			res.fail(file, scenario.Name, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}

		res.Results = append(res.Results, ScenarioRun{Path: file, Scenario: scenario, Result: result})
		if !result.Pass {
			res.Failed++
			res.Failures = append(res.Failures, SuiteFailure{Path: file, Name: scenario.Name, Errors: result.Errors})
			continue
		}
		res.Passed++
	}
	return res, nil
}

func (r *SuiteResult) fail(path, name, msg string) {
	r.Failed++
	r.Failures = append(r.Failures, SuiteFailure{Path: path, Name: name, Errors: []string{msg}})
}
