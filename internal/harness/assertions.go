package harness

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/mergeq/internal/engine"
	"github.com/roach88/mergeq/internal/ir"
)

// AssertionContext is what assertions are evaluated against.
type AssertionContext struct {
	Engine *engine.Engine
	Result *Result
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Seq, event.Kind, event.Payload)
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(a Assertion, actx *AssertionContext) error {
	r := actx.Result
	switch a.Type {
	case AssertQueueTypes:
		return assertQueueTypes(r.Final.Types, a)
	case AssertCount:
		return assertCount(r.Final.Types, a)
	case AssertState:
		return assertState(actx.Engine.State(), a)
	case AssertRecipeMatchable:
		return assertRecipeMatchable(actx.Engine, a)
	case AssertMessage:
		return assertMessage(r.Messages, a)
	case AssertRewards:
		return assertRewards(r.Rewards, a)
	case AssertActivation:
		return assertActivation(r.Merges, a)
	case AssertMergeCount:
		return assertMergeCount(r.Merges, a)
	case AssertTraceContains:
		return assertTraceContains(r.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(r.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(r.Trace, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func typeStrings(types []ir.TypeID) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func assertQueueTypes(types []ir.TypeID, a Assertion) error {
	got := typeStrings(types)
	want := a.Types
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertQueueTypes,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

func assertCount(types []ir.TypeID, a Assertion) error {
	if len(types) != a.Count {
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%d tokens", a.Count),
			Actual:   fmt.Sprintf("%d tokens %v", len(types), typeStrings(types)),
		}
	}
	return nil
}

func assertState(state engine.State, a Assertion) error {
	if string(state) != a.State {
		return &AssertionError{
			Type:     AssertState,
			Expected: a.State,
			Actual:   string(state),
		}
	}
	return nil
}

// assertRecipeMatchable checks availability as of the last settle.
func assertRecipeMatchable(e *engine.Engine, a Assertion) error {
	ok, start := e.IsRecipeCurrentlyMatchable(a.Recipe)
	if ok != *a.Matchable {
		return &AssertionError{
			Type:     AssertRecipeMatchable,
			Expected: fmt.Sprintf("%s matchable=%t", a.Recipe, *a.Matchable),
			Actual:   fmt.Sprintf("matchable=%t", ok),
		}
	}
	if a.Start != nil && start != *a.Start {
		return &AssertionError{
			Type:     AssertRecipeMatchable,
			Expected: fmt.Sprintf("%s at %d", a.Recipe, *a.Start),
			Actual:   fmt.Sprintf("at %d", start),
		}
	}
	return nil
}

func assertMessage(messages []string, a Assertion) error {
	for _, m := range messages {
		if strings.Contains(m, a.Text) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertMessage,
		Expected: fmt.Sprintf("message containing %q", a.Text),
		Actual:   fmt.Sprintf("%q", messages),
	}
}

func assertRewards(rewards []ir.TypeID, a Assertion) error {
	got := typeStrings(rewards)
	want := a.Types
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertRewards,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// assertActivation counts committed activations of one recipe.
func assertActivation(merges []ir.PendingMerge, a Assertion) error {
	count := 0
	for _, m := range merges {
		if m.IsRecipe && m.RuleID == a.Recipe {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertActivation,
			Expected: fmt.Sprintf("%d activations of %s", a.Count, a.Recipe),
			Actual:   fmt.Sprintf("%d activations", count),
		}
	}
	return nil
}

// assertMergeCount counts committed run merges, optionally of one rule.
func assertMergeCount(merges []ir.PendingMerge, a Assertion) error {
	count := 0
	for _, m := range merges {
		if m.IsRecipe {
			continue
		}
		if a.Rule != "" && m.RuleID != a.Rule {
			continue
		}
		count++
	}
	if count != a.Count {
		what := "merges"
		if a.Rule != "" {
			what = a.Rule + " merges"
		}
		return &AssertionError{
			Type:     AssertMergeCount,
			Expected: fmt.Sprintf("%d %s", a.Count, what),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}

// assertTraceContains checks for an entry of the kind whose payload contains
// every expected field.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if string(event.Kind) == a.Kind && matchPayload(event.Payload, a.Payload) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s with payload %v", a.Kind, a.Payload),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that kinds appear in order. Intervening entries
// are allowed; each expected kind matches the first occurrence after the
// previous match.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	pos := 0
	for _, kind := range a.Kinds {
		found := false
		for pos < len(trace) {
			k := string(trace[pos].Kind)
			pos++
			if k == kind {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("kinds in order: %v", a.Kinds),
				Actual:   fmt.Sprintf("no %s after the preceding kinds", kind),
				Trace:    trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if string(event.Kind) == a.Kind {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s entries", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d entries", count),
			Trace:    trace,
		}
	}
	return nil
}

// matchPayload reports whether actual contains every field of expected.
func matchPayload(actual, expected map[string]any) bool {
	for k, want := range expected {
		got, ok := actual[k]
		if !ok || !matchValue(got, want) {
			return false
		}
	}
	return true
}

// matchValue compares YAML-decoded values with journal payload values.
// Integers compare by value regardless of Go type.
func matchValue(got, want any) bool {
	if gi, ok := asInt64(got); ok {
		wi, ok := asInt64(want)
		return ok && gi == wi
	}
	switch w := want.(type) {
	case []any:
		g, ok := got.([]any)
		if !ok || len(g) != len(w) {
			return false
		}
		for i := range w {
			if !matchValue(g[i], w[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		g, ok := got.(map[string]any)
		return ok && matchPayload(g, w)
	}
	return reflect.DeepEqual(got, want)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}
