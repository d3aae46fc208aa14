// Package querysql compiles journal queries to parameterized SQLite SQL.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/mergeq/internal/queryir"
)

// Columns selected by every compiled query, in scan order.
const Columns = "session_id, seq, kind, payload, hash"

// SQLCompiler compiles queryir.Select to parameterized SQL for SQLite.
//
// CRITICAL: every query ends in ORDER BY session_id, seq for deterministic results.
// CRITICAL: all values are parameterized, never interpolated.
type SQLCompiler struct {
	// Table is the entries table name. Default "entries".
	Table string
}

// NewSQLCompiler creates a compiler for the default entries table.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{Table: "entries"}
}

// Compile validates q and converts it to SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q queryir.Select) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", Columns, c.Table)

	var params []any
	if q.Filter != nil {
		where, p, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		params = p
	}

	b.WriteString(" ORDER BY session_id COLLATE BINARY ASC, seq ASC")
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return b.String(), params, nil
}

// compilePredicate converts a predicate to a SQL boolean expression.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.PayloadEquals:
		return c.compilePayloadEquals(*pred)
	case queryir.PayloadEquals:
		return c.compilePayloadEquals(pred)
	case *queryir.KindIn:
		return c.compileKindIn(*pred)
	case queryir.KindIn:
		return c.compileKindIn(pred)
	case *queryir.SeqRange:
		return c.compileSeqRange(*pred)
	case queryir.SeqRange:
		return c.compileSeqRange(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileEquals(e queryir.Equals) (string, []any, error) {
	return e.Field + " = ?", []any{e.Value}, nil
}

// compilePayloadEquals compares a top-level payload field. Payloads are
// canonical JSON, so json_extract returns TEXT for strings and INTEGER for
// numbers; bools come back as 0/1.
func (c *SQLCompiler) compilePayloadEquals(e queryir.PayloadEquals) (string, []any, error) {
	v := e.Value
	if b, ok := v.(bool); ok {
		if b {
			v = 1
		} else {
			v = 0
		}
	}
	return "json_extract(payload, '$." + e.Path + "') = ?", []any{v}, nil
}

func (c *SQLCompiler) compileKindIn(k queryir.KindIn) (string, []any, error) {
	if len(k.Kinds) == 0 {
		return "0", nil, nil
	}
	marks := make([]string, len(k.Kinds))
	params := make([]any, len(k.Kinds))
	for i, kind := range k.Kinds {
		marks[i] = "?"
		params[i] = string(kind)
	}
	return "kind IN (" + strings.Join(marks, ", ") + ")", params, nil
}

func (c *SQLCompiler) compileSeqRange(r queryir.SeqRange) (string, []any, error) {
	switch {
	case r.From > 0 && r.To > 0:
		return "seq BETWEEN ? AND ?", []any{r.From, r.To}, nil
	case r.From > 0:
		return "seq >= ?", []any{r.From}, nil
	case r.To > 0:
		return "seq <= ?", []any{r.To}, nil
	}
	return "1", nil, nil
}

func (c *SQLCompiler) compileAnd(a queryir.And) (string, []any, error) {
	if len(a.Predicates) == 0 {
		return "1", nil, nil
	}
	parts := make([]string, 0, len(a.Predicates))
	var params []any
	for i, p := range a.Predicates {
		sql, ps, err := c.compilePredicate(p)
		if err != nil {
			return "", nil, fmt.Errorf("and[%d]: %w", i, err)
		}
		parts = append(parts, "("+sql+")")
		params = append(params, ps...)
	}
	return strings.Join(parts, " AND "), params, nil
}
