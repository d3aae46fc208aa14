// Package rules holds the merge rule table and the recipe registry.
package rules

import (
	"fmt"
	"sort"

	"github.com/roach88/mergeq/internal/ir"
)

// RuleSet is the priority-ordered list of same-type run rules.
type RuleSet struct {
	rules []ir.MergeRule
}

// NewRuleSet validates rules and stable-sorts them by descending priority.
// Equal priorities keep their declaration order.
func NewRuleSet(rules []ir.MergeRule) (*RuleSet, error) {
	seen := make(map[string]bool, len(rules))
	sorted := make([]ir.MergeRule, len(rules))
	copy(sorted, rules)

	for _, r := range sorted {
		if r.RequiredRunLength < 2 {
			return nil, fmt.Errorf("rule %q: required run length must be at least 2, got %d", r.ID, r.RequiredRunLength)
		}
		if r.OutputCount < 1 {
			return nil, fmt.Errorf("rule %q: output count must be at least 1, got %d", r.ID, r.OutputCount)
		}
		if r.ID != "" {
			if seen[r.ID] {
				return nil, fmt.Errorf("rule %q: duplicate id", r.ID)
			}
			seen[r.ID] = true
		}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return &RuleSet{rules: sorted}, nil
}

// Rules returns the rules in evaluation order.
func (s *RuleSet) Rules() []ir.MergeRule {
	out := make([]ir.MergeRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Len returns the number of rules.
func (s *RuleSet) Len() int { return len(s.rules) }

// MinRunLength is the smallest required run length, or 0 for an empty set.
func (s *RuleSet) MinRunLength() int {
	shortest := 0
	for _, r := range s.rules {
		if shortest == 0 || r.RequiredRunLength < shortest {
			shortest = r.RequiredRunLength
		}
	}
	return shortest
}
