package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/mergeq/internal/ir"
	"github.com/roach88/mergeq/internal/queryir"
	"github.com/roach88/mergeq/internal/querysql"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("not found")

// ReadSession returns one session.
func (s *Store) ReadSession(ctx context.Context, id string) (ir.Session, error) {
	var sess ir.Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, config_hash, label, created_seq
		FROM sessions
		WHERE id = ?
	`, id).Scan(&sess.ID, &sess.ConfigHash, &sess.Label, &sess.CreatedSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.Session{}, fmt.Errorf("read session: %w", err)
	}
	return sess, nil
}

// ListSessions returns every session ordered by id.
// Session ids are UUIDv7, so id order is creation order.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListSessions(ctx context.Context) ([]ir.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, config_hash, label, created_seq
		FROM sessions
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []ir.Session{}
	for rows.Next() {
		var sess ir.Session
		if err := rows.Scan(&sess.ID, &sess.ConfigHash, &sess.Label, &sess.CreatedSeq); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadEntries returns every entry of a session in seq order.
//
// Returns an empty slice (not nil) if the session has no entries.
func (s *Store) ReadEntries(ctx context.Context, sessionID string) ([]ir.JournalEntry, error) {
	return s.ReadEntriesWhere(ctx, queryir.Select{
		Filter: &queryir.Equals{Field: queryir.FieldSession, Value: sessionID},
	})
}

// ReadEntriesWhere returns the entries matching q, ordered by session and seq.
func (s *Store) ReadEntriesWhere(ctx context.Context, q queryir.Select) ([]ir.JournalEntry, error) {
	query, params, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []ir.JournalEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// LastSeq returns the highest seq recorded for a session, 0 if none.
func (s *Store) LastSeq(ctx context.Context, sessionID string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM entries WHERE session_id = ?
	`, sessionID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

// scanEntry reads one row in querysql.Columns order.
func scanEntry(rows *sql.Rows) (ir.JournalEntry, error) {
	var (
		entry   ir.JournalEntry
		kind    string
		payload string
	)
	if err := rows.Scan(&entry.SessionID, &entry.Seq, &kind, &payload, &entry.Hash); err != nil {
		return ir.JournalEntry{}, fmt.Errorf("scan entry: %w", err)
	}
	entry.Kind = ir.EntryKind(kind)

	p, err := unmarshalPayload(payload)
	if err != nil {
		return ir.JournalEntry{}, fmt.Errorf("entry %s/%d: %w", entry.SessionID, entry.Seq, err)
	}
	entry.Payload = p
	return entry, nil
}
