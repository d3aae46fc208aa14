package store

import (
	"context"
	"fmt"

	"github.com/roach88/mergeq/internal/ir"
)

// SessionState summarizes a recorded session for trace and replay.
type SessionState struct {
	Session  ir.Session
	Entries  []ir.JournalEntry
	LastSeq  int64
	Commands int // entries replay will re-execute
	Merges   int // run merges committed
	Recipes  int // recipe activations committed

	// FinalHash is the queue hash of the last snapshot entry, "" if none.
	FinalHash string
}

// GetSessionState reads a session and its entries and summarizes them.
func (s *Store) GetSessionState(ctx context.Context, sessionID string) (SessionState, error) {
	sess, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return SessionState{}, fmt.Errorf("get session state: %w", err)
	}
	entries, err := s.ReadEntries(ctx, sessionID)
	if err != nil {
		return SessionState{}, fmt.Errorf("get session state: %w", err)
	}

	state := SessionState{Session: sess, Entries: entries}
	for _, e := range entries {
		if e.Seq > state.LastSeq {
			state.LastSeq = e.Seq
		}
		switch {
		case e.Kind.IsCommand():
			state.Commands++
		case e.Kind == ir.EntryMerge:
			state.Merges++
		case e.Kind == ir.EntryRecipe:
			state.Recipes++
		case e.Kind == ir.EntrySnapshot:
			if h, ok := e.Payload["hash"].(string); ok {
				state.FinalHash = h
			}
		}
	}
	return state, nil
}

// HashMismatch is one entry whose stored hash does not match its content.
type HashMismatch struct {
	Seq      int64
	Stored   string
	Computed string
}

// Verify recomputes every entry hash of a session and returns the mismatches.
// An empty result means the journal is intact.
func (s *Store) Verify(ctx context.Context, sessionID string) ([]HashMismatch, error) {
	entries, err := s.ReadEntries(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}

	mismatches := []HashMismatch{}
	for _, e := range entries {
		computed, err := ir.EntryHash(e.SessionID, e.Seq, e.Kind, e.Payload)
		if err != nil {
			return nil, fmt.Errorf("verify seq %d: %w", e.Seq, err)
		}
		if computed != e.Hash {
			mismatches = append(mismatches, HashMismatch{Seq: e.Seq, Stored: e.Hash, Computed: computed})
		}
	}
	return mismatches, nil
}
