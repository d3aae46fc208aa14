package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mergeq/internal/ir"
)

var queenRatWindow = []ir.TypeID{"Mouse", "Mouse", "Penguin", "Mouse", "Mouse"}

func unlockedConfig() *ir.Config {
	cfg := testConfig()
	cfg.Recipes[0].Unlocked = true
	return cfg
}

func TestActivateRecipe_Unlocked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, unlockedConfig())
	f.purchase(t, queenRatWindow...)
	f.settle(t)

	ok, start := f.e.IsRecipeCurrentlyMatchable("QueenRat")
	require.True(t, ok)
	require.Equal(t, 0, start)

	require.NoError(t, f.e.ActivateRecipe(ctx, "QueenRat", start))
	assert.Equal(t, 0, f.e.Queue().Len())
	assert.Equal(t, []ir.TypeID{"QueenRat"}, f.rec.Rewards(), "results go to the reward sink")
	assert.Equal(t, []string{"Queen Rat appeared!"}, f.rec.Messages())

	merges := f.rec.Merges()
	require.Len(t, merges, 1)
	assert.True(t, merges[0].IsRecipe)
	assert.Equal(t, []ir.TokenID{1, 2, 3, 4, 5}, merges[0].SourceTokenIDs)

	f.settle(t)
	ok, start = f.e.IsRecipeCurrentlyMatchable("QueenRat")
	assert.False(t, ok)
	assert.Equal(t, -1, start)
}

func TestActivateRecipe_OutputCount(t *testing.T) {
	ctx := context.Background()
	cfg := unlockedConfig()
	cfg.Recipes[0].OutputCount = 3
	f := newFixture(t, cfg)
	f.purchase(t, queenRatWindow...)
	f.settle(t)

	require.NoError(t, f.e.ActivateRecipe(ctx, "QueenRat", 0))
	assert.Equal(t, repeat("QueenRat", 3), f.rec.Rewards())
}

func TestActivateRecipe_Locked(t *testing.T) {
	f := newFixture(t, testConfig())
	f.purchase(t, queenRatWindow...)
	f.settle(t)

	err := f.e.ActivateRecipe(context.Background(), "QueenRat", 0)
	assert.True(t, IsLocked(err))
	assert.Equal(t, queenRatWindow, f.e.Queue().Types())
	assert.Empty(t, f.rec.Rewards())

	avail := f.e.Availability()
	require.Len(t, avail, 1)
	assert.True(t, avail[0].Matched, "matching ignores unlock state")
	assert.False(t, avail[0].Unlocked)
}

func TestActivateRecipe_StaleByBounds(t *testing.T) {
	f := newFixture(t, unlockedConfig())
	f.purchase(t, append([]ir.TypeID{"Fox"}, queenRatWindow...)...)
	f.settle(t)
	_, start := f.e.IsRecipeCurrentlyMatchable("QueenRat")
	require.Equal(t, 1, start)

	require.NoError(t, f.e.Consume(context.Background(), 1))
	f.settle(t)

	for _, s := range []int{1, -1, 9} {
		err := f.e.ActivateRecipe(context.Background(), "QueenRat", s)
		assert.True(t, IsStaleIndex(err), "start %d", s)
	}
	assert.Equal(t, queenRatWindow, f.e.Queue().Types())
}

func TestActivateRecipe_HugeStartIsStale(t *testing.T) {
	f := newFixture(t, unlockedConfig())
	f.purchase(t, queenRatWindow...)
	f.settle(t)

	for _, s := range []int{math.MaxInt, math.MaxInt - 2, math.MinInt} {
		var err error
		require.NotPanics(t, func() {
			err = f.e.ActivateRecipe(context.Background(), "QueenRat", s)
		}, "start %d", s)
		assert.True(t, IsStaleIndex(err), "start %d", s)
	}
	assert.Equal(t, queenRatWindow, f.e.Queue().Types())
	assert.Empty(t, f.rec.Rewards())
}

func TestActivateRecipe_StaleByContents(t *testing.T) {
	f := newFixture(t, unlockedConfig())
	f.purchase(t, append(append([]ir.TypeID(nil), queenRatWindow...), "Fox")...)
	f.settle(t)
	_, start := f.e.IsRecipeCurrentlyMatchable("QueenRat")
	require.Equal(t, 0, start)

	require.NoError(t, f.e.Consume(context.Background(), 1))
	f.settle(t)

	err := f.e.ActivateRecipe(context.Background(), "QueenRat", start)
	require.True(t, IsStaleIndex(err))
	assert.Contains(t, err.Error(), "contents changed")
	assert.Equal(t, 5, f.e.Queue().Len())
}

func TestActivateRecipe_Unknown(t *testing.T) {
	f := newFixture(t, testConfig())
	err := f.e.ActivateRecipe(context.Background(), "KingRat", 0)
	assert.Equal(t, CodeUnknownRecipe, CodeOf(err))
}

func TestActivateRecipe_RefusalOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("stale before locked", func(t *testing.T) {
		f := newFixture(t, testConfig())
		f.purchase(t, queenRatWindow...)
		f.settle(t)
		assert.True(t, IsStaleIndex(f.e.ActivateRecipe(ctx, "QueenRat", 3)))
	})

	inFlight := func(t *testing.T, cfg *ir.Config) *fixture {
		f := newFixture(t, cfg)
		f.purchase(t, queenRatWindow...)
		f.purchase(t, repeat("Fox", 3)...)
		f.e.Update(ctx, 200*time.Millisecond)
		require.Equal(t, PhaseLifting, f.e.Phase())
		return f
	}

	t.Run("locked before busy", func(t *testing.T) {
		f := inFlight(t, testConfig())
		assert.True(t, IsLocked(f.e.ActivateRecipe(ctx, "QueenRat", 0)))
	})

	t.Run("busy", func(t *testing.T) {
		f := inFlight(t, unlockedConfig())
		assert.True(t, IsBusy(f.e.ActivateRecipe(ctx, "QueenRat", 0)))
		assert.Equal(t, 8, f.e.Queue().Len())
	})
}

func TestActivateRecipe_SettleScansRemainder(t *testing.T) {
	f := newFixture(t, unlockedConfig())
	f.purchase(t, "Fox", "Fox")
	f.purchase(t, queenRatWindow...)
	f.purchase(t, "Fox")
	f.settle(t)
	require.Empty(t, f.rec.Merges())

	require.NoError(t, f.e.ActivateRecipe(context.Background(), "QueenRat", 2))
	assert.Equal(t, repeat("Fox", 3), f.e.Queue().Types())

	f.settle(t)
	assert.Equal(t, []ir.TypeID{"NextTier"}, f.e.Queue().Types())
	assert.Len(t, f.rec.Merges(), 2)
}

func TestUnlock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testConfig())

	require.NoError(t, f.e.Unlock(ctx, "QueenRat"))
	require.NoError(t, f.e.Unlock(ctx, "QueenRat"))
	assert.Equal(t, []string{"Queen Rat appeared!"}, f.rec.Messages(), "second unlock is a no-op")
	assert.True(t, f.e.Recipes()[0].Unlocked)

	avail := f.rec.Availability()
	require.Len(t, avail, 2)
	assert.True(t, avail[1].Unlocked)

	assert.Equal(t, CodeUnknownRecipe, CodeOf(f.e.Unlock(ctx, "KingRat")))
}

func TestUnlock_DoesNotTouchConfig(t *testing.T) {
	cfg := testConfig()
	f := newFixture(t, cfg)
	require.NoError(t, f.e.Unlock(context.Background(), "QueenRat"))
	assert.False(t, cfg.Recipes[0].Unlocked)
}

func TestUnlockThrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testConfig())

	ids, err := f.e.UnlockThrough(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = f.e.UnlockThrough(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"QueenRat"}, ids)

	ids, err = f.e.UnlockThrough(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Len(t, f.rec.Messages(), 1)
}

func TestAvailability_PushesOnlyChanges(t *testing.T) {
	f := newFixture(t, testConfig())
	require.Len(t, f.rec.Availability(), 1)

	f.purchase(t, "Fox")
	f.settle(t)
	assert.Len(t, f.rec.Availability(), 1, "unchanged match is not pushed")

	f.purchase(t, queenRatWindow...)
	f.settle(t)
	avail := f.rec.Availability()
	require.Len(t, avail, 2)
	assert.Equal(t, ir.RecipeMatch{RecipeID: "QueenRat", Matched: true, StartIndex: 1}, avail[1])
}
