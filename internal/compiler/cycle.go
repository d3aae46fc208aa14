package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/mergeq/internal/ir"
)

// CycleWarning represents a loop in the unit progression.
//
// Loops are warnings, not errors: the engine still terminates because it
// resolves one merge per trigger, and cascades are bounded. They usually
// mean an explicit next link points back down the tiers by mistake.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["Fox", "Wolf", "Fox"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeProgression finds successor loops among units.
//
// Every unit has at most one successor: its explicit Next, or the first
// declared unit of the following tier. Tier edges always climb, so only
// explicit links can close a loop. With out-degree one, a walk from any unit
// either ends or runs into a loop, and each loop is found exactly once.
//
// Warnings are sorted by path; an acyclic progression returns an empty list.
func AnalyzeProgression(units []ir.UnitType) []CycleWarning {
	succ := successors(units)

	const (
		unseen = iota
		walking
		done
	)
	state := make(map[string]int, len(succ))
	warnings := []CycleWarning{}

	for _, u := range units {
		var walk []string
		at := make(map[string]int)
		for id := string(u.ID); ; {
			if _, known := succ[id]; !known || state[id] == done {
				break
			}
			if state[id] == walking {
				warnings = append(warnings, loopWarning(walk[at[id]:]))
				break
			}
			state[id] = walking
			at[id] = len(walk)
			walk = append(walk, id)

			if id = succ[id]; id == "" {
				break
			}
		}
		for _, id := range walk {
			state[id] = done
		}
	}

	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(strings.Join(a.Path, ","), strings.Join(b.Path, ","))
	})
	return warnings
}

// successors maps each unit id to its successor id, "" past the last tier.
func successors(units []ir.UnitType) map[string]string {
	firstOfTier := make(map[int]string)
	for _, u := range units {
		if _, ok := firstOfTier[u.Tier]; !ok {
			firstOfTier[u.Tier] = string(u.ID)
		}
	}

	succ := make(map[string]string, len(units))
	for _, u := range units {
		if u.Next != "" {
			succ[string(u.ID)] = string(u.Next)
			continue
		}
		succ[string(u.ID)] = firstOfTier[u.Tier+1]
	}
	return succ
}

// loopWarning describes one loop, starting from its lexically smallest
// member so output does not depend on declaration order.
func loopWarning(loop []string) CycleWarning {
	if len(loop) == 1 {
		id := loop[0]
		return CycleWarning{
			Path:    []string{id, id},
			Message: fmt.Sprintf("Unit merges into itself: %s → %s", id, id),
			Level:   "warning",
		}
	}

	start := 0
	for i, id := range loop {
		if id < loop[start] {
			start = i
		}
	}
	path := append(slices.Clone(loop[start:]), loop[:start]...)
	path = append(path, path[0])
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Progression loop detected: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}
