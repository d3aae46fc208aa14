// Package catalog is the unit type catalog and its tier-based progression.
//
// Successor resolves a unit's next type: an explicit Next wins, otherwise the
// first declared unit of the following tier. Units at the highest tier have
// no successor.
package catalog

import (
	"fmt"
	"math/rand"

	"github.com/roach88/mergeq/internal/ir"
)

// Catalog indexes unit types by id and tier.
type Catalog struct {
	units  []ir.UnitType
	byID   map[ir.TypeID]int
	byTier map[int][]ir.TypeID
	max    int
}

// New builds a catalog. Unit ids must be unique and tiers positive.
func New(units []ir.UnitType) (*Catalog, error) {
	c := &Catalog{
		units:  make([]ir.UnitType, 0, len(units)),
		byID:   make(map[ir.TypeID]int, len(units)),
		byTier: make(map[int][]ir.TypeID),
	}
	for _, u := range units {
		if u.ID == "" {
			return nil, fmt.Errorf("unit: id is required")
		}
		if _, dup := c.byID[u.ID]; dup {
			return nil, fmt.Errorf("unit %q: duplicate id", u.ID)
		}
		if u.Tier < 1 {
			return nil, fmt.Errorf("unit %q: tier must be at least 1, got %d", u.ID, u.Tier)
		}
		c.byID[u.ID] = len(c.units)
		c.units = append(c.units, u)
		c.byTier[u.Tier] = append(c.byTier[u.Tier], u.ID)
		if u.Tier > c.max {
			c.max = u.Tier
		}
	}
	return c, nil
}

// Unit returns the unit type with id.
func (c *Catalog) Unit(id ir.TypeID) (ir.UnitType, bool) {
	i, ok := c.byID[id]
	if !ok {
		return ir.UnitType{}, false
	}
	return c.units[i], true
}

// Name returns the display name of id, or the id itself when unknown.
func (c *Catalog) Name(id ir.TypeID) string {
	if u, ok := c.Unit(id); ok {
		return u.DisplayName()
	}
	return string(id)
}

// MaxTier returns the highest tier in the catalog, 0 when empty.
func (c *Catalog) MaxTier() int { return c.max }

// OfTier returns the unit ids of tier in declaration order.
func (c *Catalog) OfTier(tier int) []ir.TypeID {
	ids := c.byTier[tier]
	out := make([]ir.TypeID, len(ids))
	copy(out, ids)
	return out
}

// Successor returns the type a run of id merges into.
func (c *Catalog) Successor(id ir.TypeID) (ir.TypeID, bool) {
	u, ok := c.Unit(id)
	if !ok {
		return "", false
	}
	if u.Next != "" {
		return u.Next, true
	}
	next := c.byTier[u.Tier+1]
	if len(next) == 0 {
		return "", false
	}
	return next[0], true
}

// RandomOfTier picks a unit of tier using r. A nil r picks the first declared.
func (c *Catalog) RandomOfTier(tier int, r *rand.Rand) (ir.TypeID, bool) {
	ids := c.byTier[tier]
	if len(ids) == 0 {
		return "", false
	}
	if r == nil {
		return ids[0], true
	}
	return ids[r.Intn(len(ids))], true
}
