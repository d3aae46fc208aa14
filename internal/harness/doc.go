// Package harness runs YAML scenarios against a real engine.
//
// A scenario names a CUE config (files or inline source), a list of setup
// steps that must succeed, and a flow of steps whose outcome is checked
// against an expect clause. Every step is followed by a settle at a fixed
// frame rate unless the step opts out, so merges resolve on the same frame
// boundaries on every run.
//
// Each run gets a fresh in-memory journal store. The engine journals into it,
// and the trace used by trace assertions and golden files is read back from
// the store, which exercises the same path the CLI uses for persisted
// sessions.
//
// After every step the harness checks the engine invariants: the queue never
// exceeds capacity, token ids are unique, surviving tokens keep their
// relative order, and at most one merge is pending. Violations fail the
// scenario like assertion failures do.
package harness
