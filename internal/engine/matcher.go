package engine

import (
	"github.com/roach88/mergeq/internal/ir"
)

// RunMerge is a same-type run the scanner selected for merging.
type RunMerge struct {
	Rule   ir.MergeRule
	Start  int
	Length int
	Source ir.TypeID
	Result ir.TypeID
}

// findRunMerge scans types left to right for the first mergeable run.
//
// The match is determined by:
//  1. Streak: the maximal run of equal types starting at position i
//  2. Rule: the first rule, in priority order, whose required length fits the streak
//  3. Successor: the progression must yield a next type for the run's type
//
// A rule without a successor is skipped and later rules are tried. When no
// rule fits, the scan jumps past the whole streak. At most one merge is
// returned per scan. The rule order, not the largest requirement, decides.
func findRunMerge(types []ir.TypeID, rules []ir.MergeRule, next Progression, miss func(ir.TypeID, ir.MergeRule)) (RunMerge, bool) {
	for i := 0; i < len(types); {
		streak := 1
		for j := i + 1; j < len(types) && types[j] == types[i]; j++ {
			streak++
		}

		for _, rule := range rules {
			if streak < rule.RequiredRunLength {
				continue
			}
			result, ok := next.Successor(types[i])
			if !ok {
				if miss != nil {
					miss(types[i], rule)
				}
				continue
			}
			return RunMerge{
				Rule:   rule,
				Start:  i,
				Length: rule.RequiredRunLength,
				Source: types[i],
				Result: result,
			}, true
		}

		i += streak
	}
	return RunMerge{}, false
}

// findRecipeMatches reports the first exact window match of every recipe on
// types, in registry order. Unlock state is copied through but never consulted.
func findRecipeMatches(types []ir.TypeID, recipes []ir.Recipe) []ir.RecipeMatch {
	matches := make([]ir.RecipeMatch, len(recipes))
	for ri, r := range recipes {
		m := ir.RecipeMatch{RecipeID: r.ID, StartIndex: -1, Unlocked: r.Unlocked}
		for start := 0; start+r.Window() <= len(types); start++ {
			if r.MatchesAt(types, start) {
				m.Matched = true
				m.StartIndex = start
				break
			}
		}
		matches[ri] = m
	}
	return matches
}
