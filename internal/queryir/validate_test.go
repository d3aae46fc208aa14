package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mergeq/internal/ir"
)

func TestValidateAccepts(t *testing.T) {
	tests := []struct {
		name string
		q    Select
	}{
		{"no filter", Select{}},
		{"session", Select{Filter: &Equals{Field: FieldSession, Value: "s1"}}},
		{"seq int64", Select{Filter: Equals{Field: FieldSeq, Value: int64(3)}}},
		{"payload string", Select{Filter: &PayloadEquals{Path: "rule_id", Value: "four-chain"}}},
		{"payload int", Select{Filter: &PayloadEquals{Path: "index", Value: 0}}},
		{"kinds", Select{Filter: &KindIn{Kinds: []ir.EntryKind{ir.EntryMerge}}}},
		{"open range", Select{Filter: &SeqRange{From: 5}}},
		{"nested and", Select{Filter: &And{Predicates: []Predicate{
			&Equals{Field: FieldKind, Value: "merge"},
			&And{Predicates: []Predicate{&SeqRange{From: 1, To: 9}}},
		}}, Limit: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, Validate(tt.q))
		})
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		q    Select
		path string
	}{
		{"negative limit", Select{Limit: -1}, "limit"},
		{"unknown field", Select{Filter: &Equals{Field: "payload", Value: "x"}}, "filter"},
		{"kind not string", Select{Filter: &Equals{Field: FieldKind, Value: 1}}, "filter"},
		{"seq not int", Select{Filter: &Equals{Field: FieldSeq, Value: "1"}}, "filter"},
		{"injection path", Select{Filter: &PayloadEquals{Path: "a') OR 1=1 --", Value: "x"}}, "filter"},
		{"float literal", Select{Filter: &PayloadEquals{Path: "x", Value: 1.5}}, "filter"},
		{"inverted range", Select{Filter: &SeqRange{From: 9, To: 2}}, "filter"},
		{"nil inside and", Select{Filter: &And{Predicates: []Predicate{&SeqRange{}, nil}}}, "filter.and[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.q)
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.path, ve.Path)
		})
	}
}

func TestWhere(t *testing.T) {
	assert.Nil(t, Where())
	assert.Nil(t, Where(nil, nil))

	single := &SeqRange{From: 1}
	assert.Same(t, single, Where(nil, single))

	combined := Where(single, &KindIn{Kinds: []ir.EntryKind{ir.EntryMerge}})
	and, ok := combined.(*And)
	require.True(t, ok)
	assert.Len(t, and.Predicates, 2)
}
