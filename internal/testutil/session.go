package testutil

// FixedSessionGenerator generates the same session id every time.
//
// The same scenario with the same FixedSessionGenerator produces byte-identical
// journals, which golden traces rely on.
//
// Thread-safety: FixedSessionGenerator is stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	id string
}

// NewFixedSessionGenerator creates a generator that always returns id.
func NewFixedSessionGenerator(id string) *FixedSessionGenerator {
	return &FixedSessionGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedSessionGenerator) Generate() string {
	return g.id
}
