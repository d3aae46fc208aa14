// Package compiler turns CUE configuration values into an ir.Config and
// checks the result.
//
// The CUE layout is:
//
//	queue:  { capacity: 9, padding: 6, width: 540, left: -270 }
//	timing: { reposition_ms: 200, lift_ms: 300, converge_ms: 400, message_ms: 1500, lift_offset: 50 }
//	pool:   { key: "UnitBlock", prewarm: 9, limit: 0 }
//	unit:   Fox: { name: "Fox", tier: 1 }
//	rule:   "four-chain": { required: 4, output: 2, priority: 2, message: "Quad merge!" }
//	recipe: QueenRat: { sequence: [...], result: "QueenRat", output: 1, unlock_wave: 2 }
//
// Every block is optional. Omitted queue, timing and pool fields take the
// ir defaults; a config without a rule block gets ir.DefaultRules.
// Units, rules and recipes keep their declaration order.
package compiler

import (
	"fmt"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/mergeq/internal/ir"
)

// CompileConfig parses a CUE value into an ir.Config.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is the root of the configuration, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`queue: capacity: 9`)
//	cfg, err := CompileConfig(v)
func CompileConfig(v cue.Value) (*ir.Config, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	cfg := ir.DefaultConfig()
	var err error

	if q := v.LookupPath(cue.ParsePath("queue")); q.Exists() {
		if err = parseQueue(q, &cfg.Queue); err != nil {
			return nil, err
		}
	}
	if t := v.LookupPath(cue.ParsePath("timing")); t.Exists() {
		if err = parseTiming(t, &cfg.Timing); err != nil {
			return nil, err
		}
	}
	if p := v.LookupPath(cue.ParsePath("pool")); p.Exists() {
		if err = parsePool(p, &cfg.Pool); err != nil {
			return nil, err
		}
	}

	if cfg.Units, err = parseUnits(v); err != nil {
		return nil, err
	}
	if ruleVal := v.LookupPath(cue.ParsePath("rule")); ruleVal.Exists() {
		if cfg.Rules, err = parseRules(ruleVal); err != nil {
			return nil, err
		}
	}
	if cfg.Recipes, err = parseRecipes(v); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseQueue(v cue.Value, q *ir.QueueConfig) error {
	widthSet := false
	if err := optInt(v, "capacity", &q.Capacity); err != nil {
		return err
	}
	if err := optFloat(v, "padding", &q.Padding); err != nil {
		return err
	}
	if v.LookupPath(cue.ParsePath("width")).Exists() {
		widthSet = true
		if err := optFloat(v, "width", &q.Width); err != nil {
			return err
		}
	}
	if v.LookupPath(cue.ParsePath("left")).Exists() {
		return optFloat(v, "left", &q.Left)
	}
	// Without an explicit left edge the container stays centred on x=0.
	if widthSet {
		q.Left = -q.Width / 2
	}
	return nil
}

func parseTiming(v cue.Value, t *ir.TimingConfig) error {
	for _, f := range []struct {
		name string
		dst  *time.Duration
	}{
		{"reposition_ms", &t.Reposition},
		{"lift_ms", &t.Lift},
		{"converge_ms", &t.Converge},
		{"message_ms", &t.Message},
	} {
		var ms int
		fv := v.LookupPath(cue.ParsePath(f.name))
		if !fv.Exists() {
			continue
		}
		if err := optInt(v, f.name, &ms); err != nil {
			return err
		}
		if ms < 0 {
			return &CompileError{
				Field:   "timing." + f.name,
				Message: fmt.Sprintf("duration must not be negative, got %d", ms),
				Pos:     fv.Pos(),
			}
		}
		*f.dst = time.Duration(ms) * time.Millisecond
	}
	return optFloat(v, "lift_offset", &t.LiftOffset)
}

func parsePool(v cue.Value, p *ir.PoolConfig) error {
	if err := optString(v, "key", &p.Key); err != nil {
		return err
	}
	if err := optInt(v, "prewarm", &p.Prewarm); err != nil {
		return err
	}
	return optInt(v, "limit", &p.Limit)
}

// parseUnits extracts unit types in declaration order.
func parseUnits(v cue.Value) ([]ir.UnitType, error) {
	unitVal := v.LookupPath(cue.ParsePath("unit"))
	if !unitVal.Exists() {
		return nil, nil
	}

	iter, err := unitVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var units []ir.UnitType
	for iter.Next() {
		uv := iter.Value()
		u := ir.UnitType{ID: ir.TypeID(iter.Selector().Unquoted())}

		if err := optString(uv, "name", &u.Name); err != nil {
			return nil, err
		}
		tierVal := uv.LookupPath(cue.ParsePath("tier"))
		if !tierVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("unit.%s.tier", u.ID),
				Message: "tier is required",
				Pos:     uv.Pos(),
			}
		}
		if err := optInt(uv, "tier", &u.Tier); err != nil {
			return nil, err
		}
		var next string
		if err := optString(uv, "next", &next); err != nil {
			return nil, err
		}
		u.Next = ir.TypeID(next)

		units = append(units, u)
	}
	return units, nil
}

// parseRules extracts merge rules in declaration order. Sorting by priority
// happens when the engine builds its rule set.
func parseRules(ruleVal cue.Value) ([]ir.MergeRule, error) {
	iter, err := ruleVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	rules := []ir.MergeRule{}
	for iter.Next() {
		rv := iter.Value()
		r := ir.MergeRule{ID: iter.Selector().Unquoted()}

		for _, req := range []string{"required", "output"} {
			if !rv.LookupPath(cue.ParsePath(req)).Exists() {
				return nil, &CompileError{
					Field:   fmt.Sprintf("rule.%s.%s", r.ID, req),
					Message: req + " is required",
					Pos:     rv.Pos(),
				}
			}
		}
		if err := optInt(rv, "required", &r.RequiredRunLength); err != nil {
			return nil, err
		}
		if err := optInt(rv, "output", &r.OutputCount); err != nil {
			return nil, err
		}
		if err := optInt(rv, "priority", &r.Priority); err != nil {
			return nil, err
		}
		if err := optString(rv, "message", &r.MessageTemplate); err != nil {
			return nil, err
		}

		rules = append(rules, r)
	}
	return rules, nil
}

// parseRecipes extracts recipes in declaration order.
func parseRecipes(v cue.Value) ([]ir.Recipe, error) {
	recipeVal := v.LookupPath(cue.ParsePath("recipe"))
	if !recipeVal.Exists() {
		return nil, nil
	}

	iter, err := recipeVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var recipes []ir.Recipe
	for iter.Next() {
		rv := iter.Value()
		r := ir.Recipe{ID: iter.Selector().Unquoted(), OutputCount: 1}

		seqVal := rv.LookupPath(cue.ParsePath("sequence"))
		if !seqVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("recipe.%s.sequence", r.ID),
				Message: "sequence is required",
				Pos:     rv.Pos(),
			}
		}
		seqIter, err := seqVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for seqIter.Next() {
			s, err := seqIter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			r.Sequence = append(r.Sequence, ir.TypeID(s))
		}

		var result string
		if err := optString(rv, "result", &result); err != nil {
			return nil, err
		}
		r.Result = ir.TypeID(result)
		if err := optInt(rv, "output", &r.OutputCount); err != nil {
			return nil, err
		}
		if err := optString(rv, "message", &r.UnlockMessage); err != nil {
			return nil, err
		}
		if err := optInt(rv, "unlock_wave", &r.UnlockThreshold); err != nil {
			return nil, err
		}
		if uv := rv.LookupPath(cue.ParsePath("unlocked")); uv.Exists() {
			b, err := uv.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			r.Unlocked = b
		}

		recipes = append(recipes, r)
	}
	return recipes, nil
}

// optInt sets *dst from field name when present.
func optInt(v cue.Value, name string, dst *int) error {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return nil
	}
	n, err := fv.Int64()
	if err != nil {
		return formatCUEError(err)
	}
	*dst = int(n)
	return nil
}

// optFloat sets *dst from field name when present. Ints are accepted.
func optFloat(v cue.Value, name string, dst *float64) error {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return nil
	}
	f, err := fv.Float64()
	if err != nil {
		return formatCUEError(err)
	}
	*dst = f
	return nil
}

// optString sets *dst from field name when present.
func optString(v cue.Value, name string, dst *string) error {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return nil
	}
	s, err := fv.String()
	if err != nil {
		return formatCUEError(err)
	}
	*dst = s
	return nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
