package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/roach88/mergeq/internal/engine"
	"github.com/roach88/mergeq/internal/ir"
)

// errEmptyLine marks blank and comment lines.
var errEmptyLine = errors.New("empty line")

type lineAction int

const (
	actionCommand lineAction = iota
	actionSnapshot
	actionSettle
	actionQuit
)

// inputLine is one parsed line of the run console.
type inputLine struct {
	action lineAction
	cmd    engine.Command

	// autoStart is set for "activate <recipe>" without a start index; the
	// start is then taken from the recipe's current availability.
	autoStart bool
}

// parseLine parses one console line:
//
//	purchase <type>
//	consume <token-id>
//	unlock <recipe-id>
//	unlock-wave <wave>
//	activate <recipe-id> [start]
//	cancel
//	snapshot
//	settle
//	quit
//
// Blank lines and lines starting with # return errEmptyLine.
func parseLine(line string) (inputLine, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return inputLine{}, errEmptyLine
	}

	verb, args := strings.ToLower(fields[0]), fields[1:]
	arity := func(lo, hi int) error {
		if len(args) < lo || len(args) > hi {
			return fmt.Errorf("%s: wrong number of arguments", verb)
		}
		return nil
	}

	switch verb {
	case "purchase", "buy":
		if err := arity(1, 1); err != nil {
			return inputLine{}, err
		}
		return command(engine.Command{Kind: ir.EntryPurchase, Type: ir.TypeID(args[0])}), nil

	case "consume":
		if err := arity(1, 1); err != nil {
			return inputLine{}, err
		}
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return inputLine{}, fmt.Errorf("consume: invalid token id %q", args[0])
		}
		return command(engine.Command{Kind: ir.EntryConsume, TokenID: ir.TokenID(id)}), nil

	case "unlock":
		if err := arity(1, 1); err != nil {
			return inputLine{}, err
		}
		return command(engine.Command{Kind: ir.EntryUnlock, Recipe: args[0]}), nil

	case "unlock-wave":
		if err := arity(1, 1); err != nil {
			return inputLine{}, err
		}
		wave, err := strconv.Atoi(args[0])
		if err != nil || wave < 0 {
			return inputLine{}, fmt.Errorf("unlock-wave: invalid wave %q", args[0])
		}
		return command(engine.Command{Kind: ir.EntryUnlock, Wave: wave}), nil

	case "activate":
		if err := arity(1, 2); err != nil {
			return inputLine{}, err
		}
		in := command(engine.Command{Kind: ir.EntryActivate, Recipe: args[0]})
		if len(args) == 1 {
			in.autoStart = true
			return in, nil
		}
		start, err := strconv.Atoi(args[1])
		if err != nil {
			return inputLine{}, fmt.Errorf("activate: invalid start %q", args[1])
		}
		in.cmd.Start = start
		return in, nil

	case "cancel":
		return command(engine.Command{Kind: ir.EntryCancel}), arity(0, 0)

	case "snapshot", "state":
		return inputLine{action: actionSnapshot}, arity(0, 0)
	case "settle":
		return inputLine{action: actionSettle}, arity(0, 0)
	case "quit", "exit":
		return inputLine{action: actionQuit}, arity(0, 0)
	}
	return inputLine{}, fmt.Errorf("unknown command %q", verb)
}

func command(c engine.Command) inputLine {
	return inputLine{action: actionCommand, cmd: c}
}

// startFor returns the captured start index of recipeID in snap, or -1.
func startFor(snap engine.Snapshot, recipeID string) int {
	for _, m := range snap.Recipes {
		if m.RecipeID == recipeID {
			return m.StartIndex
		}
	}
	return -1
}

// ConsoleEvent is one line of run console output.
type ConsoleEvent struct {
	Event    string           `json:"event"` // "ok", "error", "snapshot", "message", "reward"
	Input    string           `json:"input,omitempty"`
	Code     string           `json:"code,omitempty"`
	Message  string           `json:"message,omitempty"`
	Unit     ir.TypeID        `json:"unit,omitempty"`
	Snapshot *engine.Snapshot `json:"snapshot,omitempty"`
}

// console writes run output. Engine callbacks arrive on the runner
// goroutine while responses come from the input loop, so writes are
// serialized.
type console struct {
	mu     sync.Mutex
	w      io.Writer
	asJSON bool
}

func newConsole(w io.Writer, format string) *console {
	return &console{w: w, asJSON: format == "json"}
}

func (c *console) emit(ev ConsoleEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.asJSON {
		_ = json.NewEncoder(c.w).Encode(ev)
		return
	}
	switch ev.Event {
	case "ok":
		fmt.Fprintf(c.w, "ok %s\n", ev.Input)
	case "error":
		if ev.Code != "" {
			fmt.Fprintf(c.w, "error %s: %s\n", ev.Code, ev.Message)
		} else {
			fmt.Fprintf(c.w, "error: %s\n", ev.Message)
		}
	case "message":
		fmt.Fprintf(c.w, "» %s\n", ev.Message)
	case "reward":
		fmt.Fprintf(c.w, "+ %s\n", ev.Unit)
	case "snapshot":
		fmt.Fprintln(c.w, formatSnapshot(*ev.Snapshot))
	}
}

func (c *console) fail(input string, err error) {
	c.emit(ConsoleEvent{Event: "error", Input: input, Code: string(engine.CodeOf(err)), Message: err.Error()})
}

// ShowMessage implements engine.Notifier.
func (c *console) ShowMessage(text string, _ time.Duration) {
	c.emit(ConsoleEvent{Event: "message", Message: text})
}

// Emit implements engine.RewardSink.
func (c *console) Emit(t ir.TypeID) {
	c.emit(ConsoleEvent{Event: "reward", Unit: t})
}

func formatSnapshot(s engine.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "queue [%s] state=%s hash=%s", joinTypes(s.Types), s.State, shortHash(s.Hash))
	for _, m := range s.Recipes {
		if m.Activatable() {
			fmt.Fprintf(&b, "\n  recipe %s ready at %d", m.RecipeID, m.StartIndex)
		}
	}
	return b.String()
}

func joinTypes(types []ir.TypeID) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, " ")
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
