package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/mergeq/internal/ir"
)

// GoldenDir is the default golden fixture directory, relative to the test's
// package directory.
const GoldenDir = "testdata/golden"

// TraceSnapshot captures the trace and final queue of a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Session      string       `json:"session"`
	Trace        []TraceEvent `json:"trace"`
	FinalTypes   []ir.TypeID  `json:"final_types"`
	FinalHash    string       `json:"final_hash"`
}

// NewTraceSnapshot builds the snapshot of a result.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		Session:      result.Session,
		Trace:        result.Trace,
		FinalTypes:   result.Final.Types,
		FinalHash:    result.Final.Hash,
	}
}

// toCanonicalMap converts the snapshot for ir.MarshalCanonical, which only
// accepts primitives, []any and map[string]any.
//
// Events keep their order but not their seq: advance entries are left out of
// the trace yet still consume seqs, so seq values change with frame timing.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"kind": string(event.Kind),
		}
		if len(event.Payload) > 0 {
			eventMap["payload"] = event.Payload
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"session":       s.Session,
		"trace":         traceList,
		"final_types":   ir.TypeList(s.FinalTypes),
		"final_hash":    s.FinalHash,
	}
}

// MarshalCanonical returns the snapshot as canonical JSON.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace snapshot against
// {GoldenDir}/{scenario.Name}.golden. opts are applied after the defaults,
// so goldie.WithFixtureDir overrides the directory.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check Pass. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result, opts...); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file.
func AssertGolden(t *testing.T, name string, result *Result, opts ...goldie.Option) error {
	t.Helper()

	snapshot := NewTraceSnapshot(name, result)
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t, append([]goldie.Option{
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	}, opts...)...)
	g.Assert(t, name, data)
	return nil
}
