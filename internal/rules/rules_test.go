package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mergeq/internal/ir"
)

func ruleIDs(rules []ir.MergeRule) []string {
	ids := make([]string, len(rules))
	for i, r := range rules {
		ids[i] = r.ID
	}
	return ids
}

func TestNewRuleSetSortsByPriority(t *testing.T) {
	set, err := NewRuleSet([]ir.MergeRule{
		{ID: "three", RequiredRunLength: 3, OutputCount: 1, Priority: 1},
		{ID: "four", RequiredRunLength: 4, OutputCount: 2, Priority: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"four", "three"}, ruleIDs(set.Rules()))
	assert.Equal(t, 3, set.MinRunLength())
}

func TestNewRuleSetStableOnTies(t *testing.T) {
	set, err := NewRuleSet([]ir.MergeRule{
		{ID: "a", RequiredRunLength: 2, OutputCount: 1, Priority: 1},
		{ID: "b", RequiredRunLength: 5, OutputCount: 1, Priority: 3},
		{ID: "c", RequiredRunLength: 3, OutputCount: 1, Priority: 1},
		{ID: "d", RequiredRunLength: 4, OutputCount: 1, Priority: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c", "d"}, ruleIDs(set.Rules()))
}

func TestNewRuleSetDoesNotMutateInput(t *testing.T) {
	in := ir.DefaultRules()
	in[0], in[1] = in[1], in[0]
	_, err := NewRuleSet(in)
	require.NoError(t, err)
	assert.Equal(t, "three-chain", in[0].ID)
}

func TestNewRuleSetRejects(t *testing.T) {
	tests := []struct {
		name  string
		rules []ir.MergeRule
	}{
		{"short run", []ir.MergeRule{{ID: "x", RequiredRunLength: 1, OutputCount: 1}}},
		{"zero output", []ir.MergeRule{{ID: "x", RequiredRunLength: 3, OutputCount: 0}}},
		{"duplicate id", []ir.MergeRule{
			{ID: "x", RequiredRunLength: 3, OutputCount: 1},
			{ID: "x", RequiredRunLength: 4, OutputCount: 1},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuleSet(tt.rules)
			assert.Error(t, err)
		})
	}
}

func TestEmptyRuleSet(t *testing.T) {
	set, err := NewRuleSet(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
	assert.Equal(t, 0, set.MinRunLength())
}
