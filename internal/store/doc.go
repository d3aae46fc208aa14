// Package store provides SQLite-backed durable storage for the merge journal.
//
// The store is an append-only log with:
//   - Sessions: one engine run, keyed by id, with the hash of its config
//   - Entries: commands and effects recorded by the engine, keyed by (session, seq)
//
// # Ordering
//
// All ordering uses seq INTEGER (the engine's logical clock), never
// timestamps. Every read ends in ORDER BY session_id, seq so results are
// identical across runs.
//
// # Idempotency
//
// Writes use ON CONFLICT DO NOTHING: re-recording the same (session, seq)
// is a no-op. Entry payloads are canonical JSON and carry a content hash
// computed by ir.EntryHash; Verify recomputes it.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Entries must belong to a session
package store
