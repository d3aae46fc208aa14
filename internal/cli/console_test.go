package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mergeq/internal/engine"
	"github.com/roach88/mergeq/internal/ir"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want inputLine
	}{
		{"purchase Fox", command(engine.Command{Kind: ir.EntryPurchase, Type: "Fox"})},
		{"  BUY   Wolf ", command(engine.Command{Kind: ir.EntryPurchase, Type: "Wolf"})},
		{"consume 7", command(engine.Command{Kind: ir.EntryConsume, TokenID: 7})},
		{"unlock QueenRat", command(engine.Command{Kind: ir.EntryUnlock, Recipe: "QueenRat"})},
		{"unlock-wave 2", command(engine.Command{Kind: ir.EntryUnlock, Wave: 2})},
		{"activate QueenRat 3", command(engine.Command{Kind: ir.EntryActivate, Recipe: "QueenRat", Start: 3})},
		{"activate QueenRat", inputLine{action: actionCommand, cmd: engine.Command{Kind: ir.EntryActivate, Recipe: "QueenRat"}, autoStart: true}},
		{"cancel", command(engine.Command{Kind: ir.EntryCancel})},
		{"snapshot", inputLine{action: actionSnapshot}},
		{"state", inputLine{action: actionSnapshot}},
		{"settle", inputLine{action: actionSettle}},
		{"quit", inputLine{action: actionQuit}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseLine(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLine_Errors(t *testing.T) {
	for _, line := range []string{"", "   ", "# a comment"} {
		_, err := parseLine(line)
		assert.ErrorIs(t, err, errEmptyLine, "%q", line)
	}

	tests := map[string]string{
		"purchase":            "wrong number of arguments",
		"purchase Fox Wolf":   "wrong number of arguments",
		"consume x":           "invalid token id",
		"consume -1":          "invalid token id",
		"unlock-wave soon":    "invalid wave",
		"activate":            "wrong number of arguments",
		"activate QueenRat x": "invalid start",
		"snapshot now":        "wrong number of arguments",
		"cancel now":          "wrong number of arguments",
		"fly Fox":             `unknown command "fly"`,
	}
	for line, want := range tests {
		t.Run(line, func(t *testing.T) {
			_, err := parseLine(line)
			require.Error(t, err)
			assert.NotErrorIs(t, err, errEmptyLine)
			assert.Contains(t, err.Error(), want)
		})
	}
}

func TestStartFor(t *testing.T) {
	snap := engine.Snapshot{Recipes: []ir.RecipeMatch{
		{RecipeID: "QueenRat", Matched: true, StartIndex: 2, Unlocked: true},
		{RecipeID: "Other", Matched: false, StartIndex: -1},
	}}
	assert.Equal(t, 2, startFor(snap, "QueenRat"))
	assert.Equal(t, -1, startFor(snap, "Other"))
	assert.Equal(t, -1, startFor(snap, "Missing"))
}

func TestConsole_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	c := newConsole(buf, "text")

	c.emit(ConsoleEvent{Event: "ok", Input: "purchase Fox"})
	c.ShowMessage("Triple merge!", 0)
	c.Emit("QueenRat")
	c.fail("purchase Dragon", &engine.Error{Code: engine.CodeUnknownType, Message: "unknown type Dragon"})
	c.fail("fly", errors.New(`unknown command "fly"`))
	snap := engine.Snapshot{
		Types:   []ir.TypeID{"Fox", "Wolf"},
		State:   engine.StateIdle,
		Hash:    "0123456789abcdef",
		Recipes: []ir.RecipeMatch{{RecipeID: "QueenRat", Matched: true, StartIndex: 0, Unlocked: true}},
	}
	c.emit(ConsoleEvent{Event: "snapshot", Snapshot: &snap})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "ok purchase Fox", lines[0])
	assert.Equal(t, "» Triple merge!", lines[1])
	assert.Equal(t, "+ QueenRat", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "error UNKNOWN_TYPE: "))
	assert.Equal(t, `error: unknown command "fly"`, lines[4])
	assert.Equal(t, "queue [Fox Wolf] state=idle hash=0123456789ab", lines[5])
	assert.Equal(t, "  recipe QueenRat ready at 0", lines[6])
}

func TestConsole_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	c := newConsole(buf, "json")

	c.emit(ConsoleEvent{Event: "ok", Input: "purchase Fox"})
	c.ShowMessage("Triple merge!", 0)

	assert.Equal(t,
		`{"event":"ok","input":"purchase Fox"}`+"\n"+`{"event":"message","message":"Triple merge!"}`+"\n",
		buf.String())
}
