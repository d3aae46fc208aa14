package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roach88/mergeq/internal/ir"
)

// Command is one external input to the engine. Commands are what the journal
// records and what replay re-executes.
type Command struct {
	Kind ir.EntryKind

	Type    ir.TypeID     // purchase
	TokenID ir.TokenID    // consume
	Recipe  string        // unlock (single recipe), activate
	Start   int           // activate
	Wave    int           // unlock through wave, when Recipe is empty
	DT      time.Duration // advance
}

// Apply executes c on the engine.
func (e *Engine) Apply(ctx context.Context, c Command) error {
	switch c.Kind {
	case ir.EntryPurchase:
		_, err := e.Purchase(ctx, c.Type)
		return err
	case ir.EntryConsume:
		return e.Consume(ctx, c.TokenID)
	case ir.EntryUnlock:
		if c.Recipe != "" {
			return e.Unlock(ctx, c.Recipe)
		}
		_, err := e.UnlockThrough(ctx, c.Wave)
		return err
	case ir.EntryActivate:
		return e.ActivateRecipe(ctx, c.Recipe, c.Start)
	case ir.EntryAdvance:
		e.Update(ctx, c.DT)
		return nil
	case ir.EntryCancel:
		if !e.CancelMerge(ctx) {
			return errors.New("cancel: no merge in flight")
		}
		return nil
	default:
		return fmt.Errorf("unknown command kind %q", c.Kind)
	}
}

// CommandFromEntry decodes a journal command entry.
//
// Payload numbers may arrive as any Go numeric type or json.Number, depending
// on whether the entry came straight from the engine or from the store.
func CommandFromEntry(entry ir.JournalEntry) (Command, error) {
	c := Command{Kind: entry.Kind}
	p := entry.Payload

	var err error
	switch entry.Kind {
	case ir.EntryPurchase:
		var t string
		t, err = stringField(p, "type")
		c.Type = ir.TypeID(t)
	case ir.EntryConsume:
		var id int64
		id, err = intField(p, "token_id")
		c.TokenID = ir.TokenID(id)
	case ir.EntryUnlock:
		if _, ok := p["recipe_id"]; ok {
			c.Recipe, err = stringField(p, "recipe_id")
			break
		}
		var wave int64
		wave, err = intField(p, "wave")
		c.Wave = int(wave)
	case ir.EntryActivate:
		c.Recipe, err = stringField(p, "recipe_id")
		if err == nil {
			var start int64
			start, err = intField(p, "start")
			c.Start = int(start)
		}
	case ir.EntryAdvance:
		var ns int64
		ns, err = intField(p, "dt_ns")
		c.DT = time.Duration(ns)
	case ir.EntryCancel:
		// The recorded phase is informational; replay cancels whatever is in flight.
	default:
		return Command{}, fmt.Errorf("entry %d: kind %q is not a command", entry.Seq, entry.Kind)
	}
	if err != nil {
		return Command{}, fmt.Errorf("entry %d (%s): %w", entry.Seq, entry.Kind, err)
	}
	return c, nil
}

func stringField(p map[string]any, key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q: expected string, got %T", key, v)
	}
	return s, nil
}

func intField(p map[string]any, key string) (int64, error) {
	v, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("missing field %q", key)
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("field %q: %d overflows int64", key, n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("field %q: %v is not an integer", key, n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("field %q: expected integer, got %T", key, v)
	}
}
