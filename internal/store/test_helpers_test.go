package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/mergeq/internal/ir"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession writes a session with a fixed config hash.
func createTestSession(t *testing.T, s *Store, id string) ir.Session {
	t.Helper()
	sess := ir.Session{ID: id, ConfigHash: "cfg-hash", Label: "test"}
	if err := s.WriteSession(context.Background(), sess); err != nil {
		t.Fatalf("WriteSession() failed: %v", err)
	}
	return sess
}

// createTestEntry builds a hashed entry.
func createTestEntry(t *testing.T, sessionID string, seq int64, kind ir.EntryKind, payload map[string]any) ir.JournalEntry {
	t.Helper()
	hash, err := ir.EntryHash(sessionID, seq, kind, payload)
	if err != nil {
		t.Fatalf("EntryHash() failed: %v", err)
	}
	return ir.JournalEntry{SessionID: sessionID, Seq: seq, Kind: kind, Payload: payload, Hash: hash}
}
