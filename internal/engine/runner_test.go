package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mergeq/internal/ir"
)

func instantConfig() *ir.Config {
	cfg := testConfig()
	cfg.Timing = ir.TimingConfig{}
	return cfg
}

func startRunner(t *testing.T, f *fixture) (*Runner, context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(f.e, time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(cancel)
	return r, cancel, done
}

func TestRunner_AppliesCommandsAndTicks(t *testing.T) {
	f := newFixture(t, instantConfig())
	r, _, done := startRunner(t, f)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Do(ctx, Command{Kind: ir.EntryPurchase, Type: "Fox"}))
	}

	require.Eventually(t, func() bool {
		snap, err := r.Snapshot(ctx)
		return err == nil && snap.State == StateIdle && len(snap.Types) == 1
	}, 2*time.Second, 5*time.Millisecond)

	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ir.TypeID{"NextTier"}, snap.Types)

	r.Stop()
	require.NoError(t, <-done)
}

func TestRunner_DoReturnsCommandError(t *testing.T) {
	f := newFixture(t, instantConfig())
	r, _, done := startRunner(t, f)

	err := r.Do(context.Background(), Command{Kind: ir.EntryPurchase, Type: "Ghost"})
	assert.Equal(t, CodeUnknownType, CodeOf(err))

	r.Stop()
	require.NoError(t, <-done)
}

func TestRunner_StopDrainsQueued(t *testing.T) {
	f := newFixture(t, instantConfig())
	r := NewRunner(f.e, time.Hour)

	assert.True(t, r.Enqueue(Command{Kind: ir.EntryPurchase, Type: "Fox"}))
	assert.True(t, r.Enqueue(Command{Kind: ir.EntryPurchase, Type: "Mouse"}))
	assert.Equal(t, 2, r.Pending())

	r.Stop()
	assert.False(t, r.Enqueue(Command{Kind: ir.EntryPurchase, Type: "Fox"}))
	assert.ErrorIs(t, r.Do(context.Background(), Command{Kind: ir.EntryPurchase, Type: "Fox"}), ErrRunnerStopped)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []ir.TypeID{"Fox", "Mouse"}, f.e.Queue().Types())
	assert.Equal(t, 0, r.Pending())
}

func TestRunner_ContextCancel(t *testing.T) {
	f := newFixture(t, instantConfig())
	r, cancel, done := startRunner(t, f)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}

	_, err := r.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrRunnerStopped)
}

func TestRunner_DoHonoursCallerContext(t *testing.T) {
	f := newFixture(t, instantConfig())
	r := NewRunner(f.e, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Do(ctx, Command{Kind: ir.EntryPurchase, Type: "Fox"})
	assert.ErrorIs(t, err, context.Canceled)
	r.Stop()
}
