package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/mergeq/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Queue and pool errors (E101-E109)
	ErrCapacityNotPositive = "E101" // capacity must be > 0
	ErrNegativeGeometry    = "E102" // width/padding must be >= 0
	ErrPoolKeyEmpty        = "E103" // pool key is required
	ErrNegativeTiming      = "E104" // durations and pool counts must be >= 0
	ErrDuplicateID         = "E105" // duplicate unit/rule/recipe id

	// Unit errors (E110-E119)
	ErrUnitTier        = "E110" // tier must be >= 1
	ErrUnknownNextUnit = "E111" // next references an unknown unit

	// Rule errors (E120-E129)
	ErrRuleRunLength = "E120" // required run length must be >= 2
	ErrRuleOutput    = "E121" // output count must be >= 1
	ErrRuleID        = "E122" // rule id is required

	// Recipe errors (E130-E139)
	ErrRecipeEmpty       = "E130" // sequence must be non-empty
	ErrRecipeResult      = "E131" // result is required
	ErrRecipeOutput      = "E132" // output count must be >= 1
	ErrRecipeUnknownUnit = "E133" // sequence or result references an unknown unit
	ErrRecipeTooLong     = "E134" // sequence longer than queue capacity
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled config.
// Returns all errors found (does not fail-fast).
//
// Unit references are only checked when the config declares units; a config
// without a unit block relies on an externally supplied progression.
func Validate(cfg *ir.Config) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	// Queue
	if cfg.Queue.Capacity <= 0 {
		add("queue.capacity", ErrCapacityNotPositive, "capacity must be positive, got %d", cfg.Queue.Capacity)
	}
	if cfg.Queue.Width < 0 {
		add("queue.width", ErrNegativeGeometry, "width must not be negative, got %v", cfg.Queue.Width)
	}
	if cfg.Queue.Padding < 0 {
		add("queue.padding", ErrNegativeGeometry, "padding must not be negative, got %v", cfg.Queue.Padding)
	}

	// Timing and pool
	t := cfg.Timing
	if t.Reposition < 0 || t.Lift < 0 || t.Converge < 0 || t.Message < 0 {
		add("timing", ErrNegativeTiming, "durations must not be negative")
	}
	if strings.TrimSpace(cfg.Pool.Key) == "" {
		add("pool.key", ErrPoolKeyEmpty, "pool key is required")
	}
	if cfg.Pool.Prewarm < 0 {
		add("pool.prewarm", ErrNegativeTiming, "prewarm must not be negative, got %d", cfg.Pool.Prewarm)
	}
	if cfg.Pool.Limit < 0 {
		add("pool.limit", ErrNegativeTiming, "limit must not be negative, got %d", cfg.Pool.Limit)
	}

	// Units
	units := make(map[ir.TypeID]bool, len(cfg.Units))
	for i, u := range cfg.Units {
		field := fmt.Sprintf("units[%d]", i)
		if units[u.ID] {
			add(field+".id", ErrDuplicateID, "duplicate unit id: %q", u.ID)
		}
		units[u.ID] = true
		if u.Tier < 1 {
			add(field+".tier", ErrUnitTier, "unit %q: tier must be at least 1, got %d", u.ID, u.Tier)
		}
	}
	known := func(t ir.TypeID) bool {
		return len(cfg.Units) == 0 || units[t]
	}
	for i, u := range cfg.Units {
		if u.Next != "" && !units[u.Next] {
			add(fmt.Sprintf("units[%d].next", i), ErrUnknownNextUnit, "unit %q: next %q is not a declared unit", u.ID, u.Next)
		}
	}

	// Rules
	ruleIDs := make(map[string]bool, len(cfg.Rules))
	for i, r := range cfg.Rules {
		field := fmt.Sprintf("rules[%d]", i)
		if r.ID == "" {
			add(field+".id", ErrRuleID, "rule id is required")
		} else if ruleIDs[r.ID] {
			add(field+".id", ErrDuplicateID, "duplicate rule id: %q", r.ID)
		}
		ruleIDs[r.ID] = true
		if r.RequiredRunLength < 2 {
			add(field+".required", ErrRuleRunLength, "rule %q: required run length must be at least 2, got %d", r.ID, r.RequiredRunLength)
		}
		if r.OutputCount < 1 {
			add(field+".output", ErrRuleOutput, "rule %q: output count must be at least 1, got %d", r.ID, r.OutputCount)
		}
	}

	// Recipes
	recipeIDs := make(map[string]bool, len(cfg.Recipes))
	for i, r := range cfg.Recipes {
		field := fmt.Sprintf("recipes[%d]", i)
		if recipeIDs[r.ID] {
			add(field+".id", ErrDuplicateID, "duplicate recipe id: %q", r.ID)
		}
		recipeIDs[r.ID] = true
		if len(r.Sequence) == 0 {
			add(field+".sequence", ErrRecipeEmpty, "recipe %q: sequence must not be empty", r.ID)
		}
		if cfg.Queue.Capacity > 0 && len(r.Sequence) > cfg.Queue.Capacity {
			add(field+".sequence", ErrRecipeTooLong, "recipe %q: sequence of %d can never fit a queue of %d", r.ID, len(r.Sequence), cfg.Queue.Capacity)
		}
		for j, s := range r.Sequence {
			if !known(s) {
				add(fmt.Sprintf("%s.sequence[%d]", field, j), ErrRecipeUnknownUnit, "recipe %q: unknown unit %q", r.ID, s)
			}
		}
		if r.Result == "" {
			add(field+".result", ErrRecipeResult, "recipe %q: result is required", r.ID)
		} else if !known(r.Result) {
			add(field+".result", ErrRecipeUnknownUnit, "recipe %q: unknown result unit %q", r.ID, r.Result)
		}
		if r.OutputCount < 1 {
			add(field+".output", ErrRecipeOutput, "recipe %q: output count must be at least 1, got %d", r.ID, r.OutputCount)
		}
	}

	return errs
}
