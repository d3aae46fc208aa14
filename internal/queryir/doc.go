// Package queryir provides an abstract filter representation for reading the
// merge journal.
//
// A journal query is a Select with an optional predicate tree. The predicate
// types form a small portable fragment:
//   - Equals: entry column = literal (session_id, kind, seq)
//   - PayloadEquals: payload field = literal
//   - KindIn: entry kind is one of a set
//   - SeqRange: seq within an inclusive range
//   - And: all predicates must hold
//
// Backends (querysql today) compile a validated Select into their own
// query language. The fragment has no OR and no NULLs, and every literal is
// a string, integer or bool, matching what canonical JSON payloads can hold.
//
// SEALED INTERFACES:
//
// Predicate is sealed with a marker method, so backends can switch over the
// concrete types exhaustively:
//
//	switch p := pred.(type) {
//	case *Equals:
//	case *PayloadEquals:
//	case *KindIn:
//	case *SeqRange:
//	case *And:
//	}
package queryir
