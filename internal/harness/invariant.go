package harness

import (
	"fmt"

	"github.com/roach88/mergeq/internal/engine"
	"github.com/roach88/mergeq/internal/ir"
)

// CheckInvariants checks the engine against the queue it had before a step.
// Returns one message per violation, empty when everything holds.
//
// Checked:
//   - length never exceeds capacity
//   - token ids are unique
//   - tokens present before and after keep their relative order
//   - a pending merge exists only while the pipeline is running
func CheckInvariants(e *engine.Engine, before []ir.Token) []string {
	var out []string
	q := e.Queue()
	after := q.Tokens()

	if q.Len() > q.Capacity() {
		out = append(out, fmt.Sprintf("length %d exceeds capacity %d", q.Len(), q.Capacity()))
	}

	seen := make(map[ir.TokenID]bool, len(after))
	for _, t := range after {
		if seen[t.ID] {
			out = append(out, fmt.Sprintf("duplicate token id %d", t.ID))
		}
		seen[t.ID] = true
	}

	if v := orderViolation(before, after); v != "" {
		out = append(out, v)
	}

	snap := e.Snapshot()
	running := snap.State == engine.StateScanning || snap.State == engine.StateAnimating || snap.State == engine.StateCommitting
	if snap.Pending != nil && !running {
		out = append(out, fmt.Sprintf("pending merge %s while %s", snap.Pending.RuleID, snap.State))
	}
	return out
}

// orderViolation reports the first surviving token that moved before one it
// used to follow.
func orderViolation(before, after []ir.Token) string {
	rank := make(map[ir.TokenID]int, len(before))
	for i, t := range before {
		rank[t.ID] = i
	}

	last := -1
	var lastID ir.TokenID
	for _, t := range after {
		r, ok := rank[t.ID]
		if !ok {
			continue
		}
		if r < last {
			return fmt.Sprintf("token %d reordered before token %d", t.ID, lastID)
		}
		last = r
		lastID = t.ID
	}
	return ""
}
