// Package engine implements the queue-merge resolution engine.
//
// The engine owns a bounded queue of unit tokens. Commands (purchase,
// consume, unlock, recipe activation) change the queue; after every change
// the queue relayouts, recipe windows are recomputed and the queue is scanned
// for a mergeable run. A found run is lifted, converged onto its output
// slots and committed, then the queue settles again.
//
// ARCHITECTURE:
//
// Frame Loop:
// All state lives on the goroutine that calls Update. The host advances time
// by calling Update with a frame step; animations, relayouts and the merge
// pipeline only move inside Update. Runner provides such a loop and
// serializes commands sent from other goroutines through an unbounded inbox.
//
// Merge Lifecycle:
//  1. Scanning - rules are tried in priority order, the first run wins
//  2. Lifting - source tokens animate out of the queue
//  3. Converging - lifted tokens move onto the output positions
//  4. Committing - sources are removed, results inserted, rewards emitted
//
// Only one lifecycle is in flight. Commands that would disturb the tokens it
// captured are refused with BUSY; a stale capture is re-validated against
// the queue contents before commit.
//
// Journal:
// Accepted commands, frame steps taken while busy, merges, recipe
// activations and snapshots are recorded with a seq from Clock. Replay
// re-executes the command entries of a session on a fresh engine and compares
// the final queue hash with the last recorded snapshot.
//
// Wall-clock time never orders entries. PurchaseRandom draws only from the
// *rand.Rand the caller passes in.
package engine
