package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/mergeq/internal/ir"
)

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Applied  int
	Skipped  int
	Snapshot Snapshot

	// Expected is the hash of the last recorded snapshot, "" if none.
	Expected string
}

// Matches reports whether the replayed queue equals the recorded one.
// Sessions without a snapshot entry always match.
func (r ReplayResult) Matches() bool {
	return r.Expected == "" || r.Expected == r.Snapshot.Hash
}

// Replay re-executes a session's command entries on a fresh engine e.
// Entries must belong to one session and be sorted by seq.
//
// Only command entries are applied, in seq order; effect entries are what the
// commands are expected to reproduce. Advance entries carry every time step
// taken while the engine was busy, so resolution follows the same phase
// boundaries as the recorded run. Idle time is never recorded because it
// cannot change state.
//
// After the last command the engine is settled with step. Matches on the
// result compares the final queue with the last recorded snapshot entry.
func Replay(ctx context.Context, e *Engine, entries []ir.JournalEntry, step time.Duration, maxSteps int) (ReplayResult, error) {
	var res ReplayResult
	var last int64

	for _, entry := range entries {
		if entry.Seq <= last {
			return res, fmt.Errorf("replay: entries out of order at seq %d", entry.Seq)
		}
		last = entry.Seq

		if entry.Kind == ir.EntrySnapshot {
			if h, ok := entry.Payload["hash"].(string); ok {
				res.Expected = h
			}
		}
		if !entry.Kind.IsCommand() {
			res.Skipped++
			continue
		}

		cmd, err := CommandFromEntry(entry)
		if err != nil {
			return res, fmt.Errorf("replay: %w", err)
		}
		if err := e.Apply(ctx, cmd); err != nil {
			return res, fmt.Errorf("replay: apply seq %d (%s): %w", entry.Seq, entry.Kind, err)
		}
		res.Applied++
	}

	if err := e.Settle(ctx, step, maxSteps); err != nil {
		return res, fmt.Errorf("replay: %w", err)
	}
	res.Snapshot = e.Snapshot()
	return res, nil
}
