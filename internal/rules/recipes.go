package rules

import (
	"fmt"

	"github.com/roach88/mergeq/internal/ir"
)

// Registry holds recipes in declaration order.
// Only the Unlocked flag is mutable after construction.
type Registry struct {
	recipes []ir.Recipe
	index   map[string]int
}

// NewRegistry validates and stores recipes.
func NewRegistry(recipes []ir.Recipe) (*Registry, error) {
	r := &Registry{
		recipes: make([]ir.Recipe, 0, len(recipes)),
		index:   make(map[string]int, len(recipes)),
	}
	for _, rec := range recipes {
		if rec.ID == "" {
			return nil, fmt.Errorf("recipe: id is required")
		}
		if _, dup := r.index[rec.ID]; dup {
			return nil, fmt.Errorf("recipe %q: duplicate id", rec.ID)
		}
		if len(rec.Sequence) == 0 {
			return nil, fmt.Errorf("recipe %q: sequence must not be empty", rec.ID)
		}
		if rec.Result == "" {
			return nil, fmt.Errorf("recipe %q: result is required", rec.ID)
		}
		if rec.OutputCount < 1 {
			return nil, fmt.Errorf("recipe %q: output count must be at least 1, got %d", rec.ID, rec.OutputCount)
		}
		seq := make([]ir.TypeID, len(rec.Sequence))
		copy(seq, rec.Sequence)
		rec.Sequence = seq

		r.index[rec.ID] = len(r.recipes)
		r.recipes = append(r.recipes, rec)
	}
	return r, nil
}

// All returns a copy of every recipe in declaration order.
func (r *Registry) All() []ir.Recipe {
	out := make([]ir.Recipe, len(r.recipes))
	copy(out, r.recipes)
	return out
}

// Len returns the number of recipes.
func (r *Registry) Len() int { return len(r.recipes) }

// Get returns the recipe with id.
func (r *Registry) Get(id string) (ir.Recipe, bool) {
	i, ok := r.index[id]
	if !ok {
		return ir.Recipe{}, false
	}
	return r.recipes[i], true
}

// SetUnlocked changes a recipe's unlock state. Returns false for unknown ids.
func (r *Registry) SetUnlocked(id string, unlocked bool) bool {
	i, ok := r.index[id]
	if !ok {
		return false
	}
	r.recipes[i].Unlocked = unlocked
	return true
}

// UnlockThrough unlocks every locked recipe whose threshold is at most wave and
// returns the newly unlocked recipes in declaration order.
func (r *Registry) UnlockThrough(wave int) []ir.Recipe {
	var unlocked []ir.Recipe
	for i := range r.recipes {
		rec := &r.recipes[i]
		if rec.Unlocked || rec.UnlockThreshold > wave {
			continue
		}
		rec.Unlocked = true
		unlocked = append(unlocked, *rec)
	}
	return unlocked
}
