package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/roach88/mergeq/internal/ir"
	"github.com/roach88/mergeq/internal/pool"
)

// Allocator is the token allocator the engine registers its pool with.
// Implemented by *pool.Manager.
type Allocator interface {
	Register(key string, prototype pool.Node, prewarm int, opts ...pool.Option) error
	Acquire(key, parent string) *pool.Node
	Release(n *pool.Node)
}

// Progression resolves the type a same-type run merges into.
// Implemented by *catalog.Catalog.
type Progression interface {
	Successor(t ir.TypeID) (ir.TypeID, bool)
}

// TypeCatalog picks purchasable types by tier.
// Implemented by *catalog.Catalog.
type TypeCatalog interface {
	RandomOfTier(tier int, r *rand.Rand) (ir.TypeID, bool)
}

// Namer resolves display names for merge messages.
type Namer interface {
	Name(t ir.TypeID) string
}

// Notifier displays transient messages.
type Notifier interface {
	ShowMessage(text string, d time.Duration)
}

// RewardSink receives units that leave the queue as external rewards:
// recipe results and consumed tokens.
type RewardSink interface {
	Emit(t ir.TypeID)
}

// Observer is notified of engine events.
// Calls happen synchronously on the engine's goroutine.
type Observer interface {
	MergeCommitted(m ir.PendingMerge)
	RecipeAvailability(m ir.RecipeMatch)
	TokenActivated(id ir.TokenID)
}

// Journal persists engine commands and effects.
type Journal interface {
	Record(ctx context.Context, entry ir.JournalEntry) error
}

// NopNotifier discards messages.
type NopNotifier struct{}

// ShowMessage implements Notifier.
func (NopNotifier) ShowMessage(string, time.Duration) {}

// NopRewardSink discards rewards.
type NopRewardSink struct{}

// Emit implements RewardSink.
func (NopRewardSink) Emit(ir.TypeID) {}

// NopObserver ignores every event.
type NopObserver struct{}

// MergeCommitted implements Observer.
func (NopObserver) MergeCommitted(ir.PendingMerge) {}

// RecipeAvailability implements Observer.
func (NopObserver) RecipeAvailability(ir.RecipeMatch) {}

// TokenActivated implements Observer.
func (NopObserver) TokenActivated(ir.TokenID) {}
