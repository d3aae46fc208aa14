package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mergeq/internal/ir"
	"github.com/roach88/mergeq/internal/queryir"
)

func TestBuildTraceQuery(t *testing.T) {
	q, err := buildTraceQuery(&TraceOptions{Session: "s"})
	require.NoError(t, err)
	and, ok := q.Filter.(*queryir.And)
	require.True(t, ok)
	require.Len(t, and.Predicates, 2)
	assert.Equal(t, &queryir.KindIn{Kinds: traceKinds}, and.Predicates[1])

	q, err = buildTraceQuery(&TraceOptions{Session: "s", Kinds: []string{"Merge", " advance"}, Rule: "four-chain", From: 3, Limit: 2})
	require.NoError(t, err)
	and = q.Filter.(*queryir.And)
	require.Len(t, and.Predicates, 4)
	assert.Equal(t, &queryir.KindIn{Kinds: []ir.EntryKind{ir.EntryMerge, ir.EntryAdvance}}, and.Predicates[1])
	assert.Equal(t, &queryir.PayloadEquals{Path: "rule_id", Value: "four-chain"}, and.Predicates[2])
	assert.Equal(t, &queryir.SeqRange{From: 3}, and.Predicates[3])
	assert.Equal(t, 2, q.Limit)

	_, err = buildTraceQuery(&TraceOptions{Session: "s", Kinds: []string{"teleport"}})
	assert.ErrorContains(t, err, `unknown entry kind "teleport"`)

	_, err = buildTraceQuery(&TraceOptions{Session: "s", From: 9, To: 2})
	assert.Error(t, err)
}

func TestTrace_Session(t *testing.T) {
	db := filepath.Join(t.TempDir(), "mergeq.db")
	recordScenario(t, db, "fox_triple.yaml")

	out, err := execute(t, NewTraceCommand(textOpts()), "--db", db, "--session", "fox-triple")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Session: fox-triple (fox_triple)")
	assert.Contains(t, out, "> purchase type=Fox")
	assert.Contains(t, out, "rule_id=three-chain")
	assert.Contains(t, out, "snapshot")
	assert.NotContains(t, out, "advance")
	assert.Contains(t, out, ", 1 merges, 0 recipes, final ")
}

func TestTrace_FiltersJSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "mergeq.db")
	recordScenario(t, db, "fox_quad.yaml")

	out, err := execute(t, NewTraceCommand(jsonOpts()), "--db", db, "--session", "fox-quad", "--kind", "merge")
	require.NoError(t, err, out)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Timeline, 1)
	assert.Equal(t, ir.EntryMerge, resp.Data.Timeline[0].Kind)
	assert.Equal(t, "four-chain", resp.Data.Timeline[0].Payload["rule_id"])
	assert.Equal(t, 1, resp.Data.Stats.Merges)

	out, err = execute(t, NewTraceCommand(textOpts()), "--db", db, "--session", "fox-quad", "--rule", "three-chain")
	require.NoError(t, err, out)
	assert.Contains(t, out, "No matching entries")
}

func TestTrace_ListsSessions(t *testing.T) {
	db := filepath.Join(t.TempDir(), "mergeq.db")

	out, err := execute(t, NewTraceCommand(textOpts()), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions recorded")

	recordScenario(t, db, "fox_triple.yaml")
	recordScenario(t, db, "busy.yaml")

	out, err = execute(t, NewTraceCommand(textOpts()), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "fox-triple  fox_triple")
	assert.Contains(t, out, "busy  busy")
}

func TestTrace_Errors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "mergeq.db")

	_, err := execute(t, NewTraceCommand(textOpts()), "--db", db, "--session", "ghost")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNoSession)

	_, err = execute(t, NewTraceCommand(textOpts()), "--db", db, "--session", "ghost", "--kind", "teleport")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFormatPayload(t *testing.T) {
	assert.Equal(t, "", formatPayload(nil))
	assert.Equal(t, "index=0 rule_id=three-chain", formatPayload(map[string]any{"rule_id": "three-chain", "index": int64(0)}))
}
