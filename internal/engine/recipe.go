package engine

import (
	"context"

	"github.com/roach88/mergeq/internal/ir"
)

// ActivateRecipe converts the recipe window at capturedStart into reward units.
//
// capturedStart is the index the caller saw when the recipe became available.
// The queue may have changed since, so bounds and contents are re-validated
// before anything else:
//  1. unknown recipe: CodeUnknownRecipe
//  2. window out of bounds or contents differ: CodeStaleIndex
//  3. recipe locked: CodeLocked
//  4. merge in flight: CodeBusy
//
// On success the window's tokens are removed, OutputCount result units are
// emitted to the RewardSink (they never enter the queue), the unlock message
// is shown, and a relayout starts that scans once it settles.
func (e *Engine) ActivateRecipe(ctx context.Context, recipeID string, capturedStart int) error {
	if err := e.ready(); err != nil {
		return err
	}
	r, ok := e.recipes.Get(recipeID)
	if !ok {
		return &Error{Code: CodeUnknownRecipe, Message: "unknown recipe", RecipeID: recipeID}
	}

	types := e.queue.Types()
	if capturedStart < 0 || capturedStart > len(types)-r.Window() {
		return &Error{
			Code:     CodeStaleIndex,
			Message:  "captured index out of bounds",
			RecipeID: recipeID,
		}
	}
	if !r.MatchesAt(types, capturedStart) {
		return &Error{
			Code:     CodeStaleIndex,
			Message:  "queue contents changed at captured index",
			RecipeID: recipeID,
		}
	}
	if !r.Unlocked {
		return &Error{Code: CodeLocked, Message: "recipe is locked", RecipeID: recipeID}
	}
	if e.pipeline.busy() {
		return &Error{Code: CodeBusy, Message: "activation refused while a merge is in flight", RecipeID: recipeID}
	}

	m := ir.PendingMerge{
		RuleID:         r.ID,
		Result:         r.Result,
		OutputCount:    r.OutputCount,
		InsertionIndex: capturedStart,
		Message:        r.UnlockMessage,
		IsRecipe:       true,
	}
	for i := capturedStart; i < capturedStart+r.Window(); i++ {
		b, _ := e.queue.At(i)
		m.SourceTokenIDs = append(m.SourceTokenIDs, b.Token.ID)
	}

	e.record(ctx, ir.EntryActivate, map[string]any{"recipe_id": recipeID, "start": capturedStart})

	for _, id := range m.SourceTokenIDs {
		if b, ok := e.queue.Remove(id); ok {
			e.cancelTransitions(b.Node)
		}
	}
	for k := 0; k < r.OutputCount; k++ {
		e.rewards.Emit(r.Result)
	}
	if r.UnlockMessage != "" {
		e.notifier.ShowMessage(r.UnlockMessage, e.cfg.Timing.Message)
	}

	e.logger.Info("recipe activated",
		"recipe_id", r.ID,
		"result", r.Result,
		"output", r.OutputCount,
		"start", capturedStart,
	)
	e.mergeCommitted(ctx, m)
	e.startSettle(true)
	return nil
}

// IsRecipeCurrentlyMatchable reports whether the recipe matched the queue at
// the last settle, and the start index to activate it with (-1 when not).
func (e *Engine) IsRecipeCurrentlyMatchable(recipeID string) (bool, int) {
	for _, m := range e.availability {
		if m.RecipeID == recipeID {
			return m.Matched, m.StartIndex
		}
	}
	return false, -1
}

// Availability returns the recipe matches computed at the last settle.
func (e *Engine) Availability() []ir.RecipeMatch {
	return append([]ir.RecipeMatch(nil), e.availability...)
}
