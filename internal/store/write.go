package store

import (
	"context"
	"fmt"

	"github.com/roach88/mergeq/internal/ir"
)

// WriteSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteSession(ctx context.Context, sess ir.Session) error {
	if sess.ID == "" {
		return fmt.Errorf("write session: id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, config_hash, label, created_seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		sess.ConfigHash,
		sess.Label,
		sess.CreatedSeq,
	)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteEntry inserts a journal entry.
// Uses ON CONFLICT DO NOTHING for idempotency - re-recording the same
// (session_id, seq) is silently ignored.
//
// The payload is serialized to canonical JSON. An entry without a hash gets
// one computed here.
//
// Note: The session referenced by SessionID must exist (foreign key constraint).
func (s *Store) WriteEntry(ctx context.Context, entry ir.JournalEntry) error {
	payloadJSON, err := marshalPayload(entry.Payload)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}

	hash := entry.Hash
	if hash == "" {
		if hash, err = ir.EntryHash(entry.SessionID, entry.Seq, entry.Kind, entry.Payload); err != nil {
			return fmt.Errorf("write entry: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries (session_id, seq, kind, payload, hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		entry.SessionID,
		entry.Seq,
		string(entry.Kind),
		payloadJSON,
		hash,
	)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return nil
}

// Record implements engine.Journal.
func (s *Store) Record(ctx context.Context, entry ir.JournalEntry) error {
	return s.WriteEntry(ctx, entry)
}
