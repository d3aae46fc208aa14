package queryir

import "github.com/roach88/mergeq/internal/ir"

// Predicate represents a filter condition on journal entries.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Entry columns that Equals may reference.
const (
	FieldSession = "session_id"
	FieldKind    = "kind"
	FieldSeq     = "seq"
)

// Select reads journal entries.
//
// Semantics:
//
//	SELECT entries WHERE <filter> ORDER BY session, seq LIMIT <limit>
//
// A nil Filter selects every entry. Limit 0 means no limit.
type Select struct {
	Filter Predicate
	Limit  int
}

// Equals matches an entry column against a literal.
type Equals struct {
	Field string // one of FieldSession, FieldKind, FieldSeq
	Value any    // string, int, int64 or bool
}

func (Equals) predicateNode() {}

// PayloadEquals matches a top-level payload field against a literal, e.g.
// {Path: "rule_id", Value: "four-chain"}.
type PayloadEquals struct {
	Path  string
	Value any
}

func (PayloadEquals) predicateNode() {}

// KindIn matches entries whose kind is in Kinds. An empty set matches nothing.
type KindIn struct {
	Kinds []ir.EntryKind
}

func (KindIn) predicateNode() {}

// SeqRange matches From <= seq <= To. Zero leaves that end open.
type SeqRange struct {
	From int64
	To   int64
}

func (SeqRange) predicateNode() {}

// And requires every predicate to hold. An empty And matches everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Where combines predicates, dropping nils. Returns nil when none remain and
// the single predicate when only one does.
func Where(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &And{Predicates: kept}
}
