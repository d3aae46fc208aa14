package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mergeq/internal/engine"
	"github.com/roach88/mergeq/internal/ir"
)

func TestTraceSnapshot_Canonical(t *testing.T) {
	result := &Result{
		Session: "s",
		Trace: []TraceEvent{
			{Seq: 1, Kind: ir.EntryPurchase, Payload: map[string]any{"type": "Fox"}},
			{Seq: 2, Kind: ir.EntrySnapshot},
		},
		Final: engine.Snapshot{Types: []ir.TypeID{"Fox"}, Hash: "abc"},
	}

	snap := NewTraceSnapshot("demo", result)
	data, err := snap.MarshalCanonical()
	require.NoError(t, err)

	want := `{"final_hash":"abc","final_types":["Fox"],"scenario_name":"demo","session":"s",` +
		`"trace":[{"kind":"purchase","payload":{"type":"Fox"}},{"kind":"snapshot"}]}`
	assert.Equal(t, want, string(data))
}

func TestTraceSnapshot_EmptyTrace(t *testing.T) {
	snap := NewTraceSnapshot("empty", &Result{Trace: []TraceEvent{}})
	data, err := snap.MarshalCanonical()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"trace":[]`)
	assert.Contains(t, string(data), `"final_types":[]`)
}

func TestTraceSnapshot_IgnoresSeqGaps(t *testing.T) {
	dense := &Result{Trace: []TraceEvent{
		{Seq: 1, Kind: ir.EntryPurchase, Payload: map[string]any{"type": "Fox"}},
		{Seq: 2, Kind: ir.EntrySnapshot},
	}}
	sparse := &Result{Trace: []TraceEvent{
		{Seq: 1, Kind: ir.EntryPurchase, Payload: map[string]any{"type": "Fox"}},
		{Seq: 40, Kind: ir.EntrySnapshot},
	}}

	a := NewTraceSnapshot("s", dense)
	b := NewTraceSnapshot("s", sparse)
	da, err := a.MarshalCanonical()
	require.NoError(t, err)
	db, err := b.MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, string(da), string(db))
}
