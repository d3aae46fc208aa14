package ir

import (
	"math"
	"strings"
)

// TypeID names a token type (unit kind), e.g. "Fox".
type TypeID string

// TokenID identifies a token within one queue. IDs are never reused.
type TokenID uint64

// Token is one queued unit of a given type.
type Token struct {
	ID   TokenID `json:"id"`
	Type TypeID  `json:"type"`
}

// Vec2 is a point on the queue container plane.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Lerp interpolates from v to o, t in [0,1].
func (v Vec2) Lerp(o Vec2, t float64) Vec2 {
	return Vec2{X: v.X + (o.X-v.X)*t, Y: v.Y + (o.Y-v.Y)*t}
}

// Near reports whether v and o are within eps on both axes.
func (v Vec2) Near(o Vec2, eps float64) bool {
	return math.Abs(v.X-o.X) <= eps && math.Abs(v.Y-o.Y) <= eps
}

// Centroid returns the arithmetic mean of points. The zero vector for none.
func Centroid(points []Vec2) Vec2 {
	if len(points) == 0 {
		return Vec2{}
	}
	var sum Vec2
	for _, p := range points {
		sum = sum.Add(p)
	}
	n := float64(len(points))
	return Vec2{X: sum.X / n, Y: sum.Y / n}
}

// UnitPlaceholder is replaced by the result unit's display name in merge messages.
const UnitPlaceholder = "{unit}"

// MergeRule is a same-type run rule.
// Rules are sorted descending by Priority once at load; ties keep declaration order.
type MergeRule struct {
	ID                string `json:"id"`
	RequiredRunLength int    `json:"required"`
	OutputCount       int    `json:"output"`
	Priority          int    `json:"priority"`
	MessageTemplate   string `json:"message,omitempty"`
}

// RenderMessage substitutes the result unit name into the message template.
func (r MergeRule) RenderMessage(unitName string) string {
	return strings.ReplaceAll(r.MessageTemplate, UnitPlaceholder, unitName)
}

// Recipe is a fixed ordered multi-type pattern that converts into reward units
// through manual activation.
//
// Unlocked is the only field mutated at runtime (by the progression system).
// Structural matching never looks at it.
type Recipe struct {
	ID              string   `json:"id"`
	Sequence        []TypeID `json:"sequence"`
	Result          TypeID   `json:"result"`
	OutputCount     int      `json:"output"`
	UnlockMessage   string   `json:"message,omitempty"`
	UnlockThreshold int      `json:"unlock_wave"`
	Unlocked        bool     `json:"unlocked"`
}

// Window is the number of contiguous tokens the recipe consumes.
func (r Recipe) Window() int {
	return len(r.Sequence)
}

// MatchesAt reports whether types[start:start+Window()] equals the sequence exactly.
func (r Recipe) MatchesAt(types []TypeID, start int) bool {
	w := r.Window()
	if w == 0 || start < 0 || start > len(types)-w {
		return false
	}
	for offset, want := range r.Sequence {
		if types[start+offset] != want {
			return false
		}
	}
	return true
}

// Description renders "ID: A + B + C -> Result".
func (r Recipe) Description() string {
	parts := make([]string, len(r.Sequence))
	for i, t := range r.Sequence {
		parts[i] = string(t)
	}
	return r.ID + ": " + strings.Join(parts, " + ") + " -> " + string(r.Result)
}

// PendingMerge describes one in-flight merge.
type PendingMerge struct {
	RuleID         string    `json:"rule_id"`
	SourceTokenIDs []TokenID `json:"source_token_ids"`
	Result         TypeID    `json:"result"`
	OutputCount    int       `json:"output"`
	InsertionIndex int       `json:"index"`
	Message        string    `json:"message,omitempty"`
	IsRecipe       bool      `json:"is_recipe"`
}

// RecipeMatch is the structural availability of a recipe on the current queue.
// StartIndex is -1 when Matched is false.
type RecipeMatch struct {
	RecipeID   string `json:"recipe_id"`
	Matched    bool   `json:"matched"`
	StartIndex int    `json:"start_index"`
	Unlocked   bool   `json:"unlocked"`
}

// Activatable reports whether the player may activate the recipe right now.
func (m RecipeMatch) Activatable() bool {
	return m.Matched && m.Unlocked
}

// UnitType is a token type in the catalog.
// Next, when set, overrides tier-based progression.
type UnitType struct {
	ID   TypeID `json:"id"`
	Name string `json:"name"`
	Tier int    `json:"tier"`
	Next TypeID `json:"next,omitempty"`
}

// DisplayName returns Name, falling back to the ID.
func (u UnitType) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return string(u.ID)
}
