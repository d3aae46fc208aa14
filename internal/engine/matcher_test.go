package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mergeq/internal/ir"
)

// mapProgression is a test Progression backed by a map.
type mapProgression map[ir.TypeID]ir.TypeID

func (m mapProgression) Successor(t ir.TypeID) (ir.TypeID, bool) {
	next, ok := m[t]
	return next, ok
}

func typeIDs(ids ...string) []ir.TypeID {
	out := make([]ir.TypeID, len(ids))
	for i, id := range ids {
		out[i] = ir.TypeID(id)
	}
	return out
}

var testProgression = mapProgression{"Fox": "Wolf", "Mouse": "Rat", "Wolf": "Dragon"}

func TestFindRunMerge_PriorityOrderDecides(t *testing.T) {
	m, ok := findRunMerge(typeIDs("Fox", "Fox", "Fox", "Fox"), ir.DefaultRules(), testProgression, nil)
	require.True(t, ok)
	assert.Equal(t, "four-chain", m.Rule.ID)
	assert.Equal(t, 0, m.Start)
	assert.Equal(t, 4, m.Length)
	assert.Equal(t, ir.TypeID("Wolf"), m.Result)
}

func TestFindRunMerge_LowerPriorityFirstWins(t *testing.T) {
	rules := []ir.MergeRule{
		{ID: "three", RequiredRunLength: 3, OutputCount: 1, Priority: 5},
		{ID: "four", RequiredRunLength: 4, OutputCount: 2, Priority: 1},
	}
	m, ok := findRunMerge(typeIDs("Fox", "Fox", "Fox", "Fox"), rules, testProgression, nil)
	require.True(t, ok)
	assert.Equal(t, "three", m.Rule.ID, "first rule in priority order wins even with a smaller requirement")
	assert.Equal(t, 3, m.Length)
}

func TestFindRunMerge_ShortRunsSkipped(t *testing.T) {
	m, ok := findRunMerge(typeIDs("Fox", "Fox", "Mouse", "Mouse", "Mouse"), ir.DefaultRules(), testProgression, nil)
	require.True(t, ok)
	assert.Equal(t, 2, m.Start)
	assert.Equal(t, "three-chain", m.Rule.ID)
	assert.Equal(t, ir.TypeID("Rat"), m.Result)
}

func TestFindRunMerge_LeftmostOnly(t *testing.T) {
	m, ok := findRunMerge(typeIDs("Mouse", "Mouse", "Mouse", "Fox", "Fox", "Fox"), ir.DefaultRules(), testProgression, nil)
	require.True(t, ok)
	assert.Equal(t, 0, m.Start)
	assert.Equal(t, ir.TypeID("Mouse"), m.Source)
}

func TestFindRunMerge_MissingSuccessorSkipsRun(t *testing.T) {
	var misses []ir.TypeID
	miss := func(t ir.TypeID, _ ir.MergeRule) { misses = append(misses, t) }

	m, ok := findRunMerge(typeIDs("Dragon", "Dragon", "Dragon", "Dragon", "Fox", "Fox", "Fox"), ir.DefaultRules(), testProgression, miss)
	require.True(t, ok)
	assert.Equal(t, 4, m.Start)
	assert.Equal(t, []ir.TypeID{"Dragon", "Dragon"}, misses, "each eligible rule reports one miss")
}

func TestFindRunMerge_None(t *testing.T) {
	tests := []struct {
		name  string
		types []ir.TypeID
	}{
		{"empty", nil},
		{"single", typeIDs("Fox")},
		{"alternating", typeIDs("Fox", "Mouse", "Fox", "Mouse")},
		{"pairs", typeIDs("Fox", "Fox", "Mouse", "Mouse")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := findRunMerge(tt.types, ir.DefaultRules(), testProgression, nil)
			assert.False(t, ok)
		})
	}
}

func TestFindRunMerge_NoRules(t *testing.T) {
	_, ok := findRunMerge(typeIDs("Fox", "Fox", "Fox"), nil, testProgression, nil)
	assert.False(t, ok)
}

func TestFindRecipeMatches(t *testing.T) {
	recipes := []ir.Recipe{
		{ID: "pair", Sequence: typeIDs("A", "B"), Result: "R", OutputCount: 1, Unlocked: true},
		{ID: "triple", Sequence: typeIDs("A", "B", "A"), Result: "R", OutputCount: 1},
		{ID: "absent", Sequence: typeIDs("Z"), Result: "R", OutputCount: 1},
	}
	matches := findRecipeMatches(typeIDs("X", "A", "B", "A", "Y"), recipes)
	require.Len(t, matches, 3)

	assert.Equal(t, ir.RecipeMatch{RecipeID: "pair", Matched: true, StartIndex: 1, Unlocked: true}, matches[0])
	assert.Equal(t, ir.RecipeMatch{RecipeID: "triple", Matched: true, StartIndex: 1}, matches[1])
	assert.Equal(t, ir.RecipeMatch{RecipeID: "absent", StartIndex: -1}, matches[2])
}

func TestFindRecipeMatches_Exactness(t *testing.T) {
	recipe := ir.Recipe{ID: "aba", Sequence: typeIDs("A", "B", "A"), Result: "R", OutputCount: 1}

	for _, q := range [][]ir.TypeID{
		typeIDs("A", "A", "B"),
		typeIDs("A", "X", "B", "A"),
		typeIDs("B", "A", "A"),
		typeIDs("A", "B"),
	} {
		matches := findRecipeMatches(q, []ir.Recipe{recipe})
		assert.False(t, matches[0].Matched, "%v", q)
	}
}

func TestFindRecipeMatches_FirstStartOnly(t *testing.T) {
	recipe := ir.Recipe{ID: "ab", Sequence: typeIDs("A", "B"), Result: "R", OutputCount: 1}
	matches := findRecipeMatches(typeIDs("A", "B", "A", "B"), []ir.Recipe{recipe})
	assert.Equal(t, 0, matches[0].StartIndex)
}
