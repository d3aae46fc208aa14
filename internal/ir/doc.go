// Package ir provides the shared domain types for mergeq.
//
// This package contains type definitions and the canonical serialization used
// for content hashes. All other internal packages import ir; ir imports nothing
// internal. This keeps ir as the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - A Token's position in the queue is derived from its list index, never stored
//   - Merge rules and recipes are immutable after load, except Recipe.Unlocked
//   - Canonical JSON forbids floats; geometry is hashed through its decimal text
//   - All JSON tags use snake_case
package ir
