package harness

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mergeq/internal/ir"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Kind: ir.EntryPurchase, Payload: map[string]any{"type": "Fox"}},
		{Seq: 5, Kind: ir.EntryMerge, Payload: map[string]any{
			"rule_id": "three-chain",
			"result":  "Wolf",
			"output":  int64(1),
			"index":   int64(0),
			"sources": []any{int64(1), int64(2), int64(3)},
		}},
		{Seq: 9, Kind: ir.EntrySnapshot, Payload: map[string]any{"hash": "h"}},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Kind: "merge"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{
		Kind:    "merge",
		Payload: map[string]any{"rule_id": "three-chain", "index": 0, "sources": []any{1, 2, 3}},
	}))

	err := assertTraceContains(trace, Assertion{Kind: "merge", Payload: map[string]any{"index": 2}})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), "Full trace:")

	assert.Error(t, assertTraceContains(trace, Assertion{Kind: "recipe"}))
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Kinds: []string{"purchase", "snapshot"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Kinds: []string{"purchase", "merge", "snapshot"}}))
	assert.Error(t, assertTraceOrder(trace, Assertion{Kinds: []string{"merge", "purchase"}}))
	assert.Error(t, assertTraceOrder(trace, Assertion{Kinds: []string{"purchase", "purchase"}}))
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Kind: "merge", Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Kind: "recipe", Count: 0}))
	assert.Error(t, assertTraceCount(trace, Assertion{Kind: "merge", Count: 2}))
}

func TestAssertQueueTypes(t *testing.T) {
	types := []ir.TypeID{"Fox", "Wolf"}

	assert.NoError(t, assertQueueTypes(types, Assertion{Types: []string{"Fox", "Wolf"}}))
	assert.Error(t, assertQueueTypes(types, Assertion{Types: []string{"Wolf", "Fox"}}))
	assert.NoError(t, assertQueueTypes(nil, Assertion{}))
	assert.NoError(t, assertQueueTypes([]ir.TypeID{}, Assertion{Types: []string{}}))
}

func TestAssertCount(t *testing.T) {
	assert.NoError(t, assertCount([]ir.TypeID{"Fox"}, Assertion{Count: 1}))
	assert.Error(t, assertCount(nil, Assertion{Count: 1}))
}

func TestAssertMessage(t *testing.T) {
	messages := []string{"Triple merge!", "Queen Rat appeared!"}

	assert.NoError(t, assertMessage(messages, Assertion{Text: "Queen Rat"}))
	assert.Error(t, assertMessage(messages, Assertion{Text: "Quad"}))
}

func TestAssertRewards(t *testing.T) {
	rewards := []ir.TypeID{"Fox", "QueenRat"}

	assert.NoError(t, assertRewards(rewards, Assertion{Types: []string{"Fox", "QueenRat"}}))
	assert.Error(t, assertRewards(rewards, Assertion{Types: []string{"QueenRat"}}))
	assert.NoError(t, assertRewards(nil, Assertion{}))
}

func TestAssertMergeCountAndActivation(t *testing.T) {
	merges := []ir.PendingMerge{
		{RuleID: "three-chain"},
		{RuleID: "four-chain"},
		{RuleID: "three-chain"},
		{RuleID: "QueenRat", IsRecipe: true},
	}

	assert.NoError(t, assertMergeCount(merges, Assertion{Count: 3}))
	assert.NoError(t, assertMergeCount(merges, Assertion{Rule: "three-chain", Count: 2}))
	assert.Error(t, assertMergeCount(merges, Assertion{Rule: "four-chain", Count: 2}))

	assert.NoError(t, assertActivation(merges, Assertion{Recipe: "QueenRat", Count: 1}))
	assert.Error(t, assertActivation(merges, Assertion{Recipe: "QueenRat", Count: 0}))
}

func TestMatchValue(t *testing.T) {
	tests := []struct {
		name string
		got  any
		want any
		ok   bool
	}{
		{"int vs int64", int64(3), 3, true},
		{"int mismatch", int64(3), 4, false},
		{"string", "Fox", "Fox", true},
		{"string vs int", "3", 3, false},
		{"int vs string", int64(3), "3", false},
		{"bool", true, true, true},
		{"array", []any{int64(1), "a"}, []any{1, "a"}, true},
		{"array length", []any{int64(1)}, []any{1, 2}, false},
		{"nested subset", map[string]any{"a": int64(1), "b": "x"}, map[string]any{"a": 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, matchValue(tt.got, tt.want))
		})
	}
}

func TestEvaluateAssertions_IndexedMessages(t *testing.T) {
	actx := &AssertionContext{Result: &Result{
		Trace: sampleTrace(),
	}}
	errs := EvaluateAssertions([]Assertion{
		{Type: AssertTraceCount, Kind: "merge", Count: 1},
		{Type: AssertTraceCount, Kind: "merge", Count: 5},
		{Type: "bogus"},
	}, actx)

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertions[1]")
	assert.Contains(t, errs[1], `unknown assertion type "bogus"`)
}
