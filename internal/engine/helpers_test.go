package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/mergeq/internal/anim"
	"github.com/roach88/mergeq/internal/ir"
	"github.com/roach88/mergeq/internal/pool"
	"github.com/roach88/mergeq/internal/testutil"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const frame = 16 * time.Millisecond

func testConfig() *ir.Config {
	cfg := ir.DefaultConfig()
	cfg.Units = []ir.UnitType{
		{ID: "Fox", Name: "Fox", Tier: 1, Next: "NextTier"},
		{ID: "Mouse", Name: "Mouse", Tier: 1, Next: "Rat"},
		{ID: "Penguin", Name: "Penguin", Tier: 1},
		{ID: "NextTier", Name: "Next Tier", Tier: 2},
		{ID: "Rat", Name: "Rat", Tier: 2},
		{ID: "QueenRat", Name: "Queen Rat", Tier: 3},
	}
	cfg.Recipes = []ir.Recipe{{
		ID:              "QueenRat",
		Sequence:        []ir.TypeID{"Mouse", "Mouse", "Penguin", "Mouse", "Mouse"},
		Result:          "QueenRat",
		OutputCount:     1,
		UnlockMessage:   "Queen Rat appeared!",
		UnlockThreshold: 2,
	}}
	return cfg
}

// move is one MoveTo call seen by recordingScheduler.
type move struct {
	to ir.Vec2
	d  time.Duration
}

// recordingScheduler logs MoveTo calls on top of a real timeline.
type recordingScheduler struct {
	*anim.Timeline
	moves []move
}

func newRecordingScheduler() *recordingScheduler {
	return &recordingScheduler{Timeline: anim.NewTimeline(anim.WithLogger(quietLogger))}
}

func (s *recordingScheduler) MoveTo(target anim.Movable, to ir.Vec2, d time.Duration) *anim.Signal {
	s.moves = append(s.moves, move{to: to, d: d})
	return s.Timeline.MoveTo(target, to, d)
}

// countingAllocator counts Acquire calls on top of a real pool.
type countingAllocator struct {
	*pool.Manager
	acquires int
}

func (c *countingAllocator) Acquire(key, parent string) *pool.Node {
	c.acquires++
	return c.Manager.Acquire(key, parent)
}

type fixture struct {
	e     *Engine
	rec   *testutil.Recorder
	alloc *countingAllocator
	sched *recordingScheduler
}

func newFixture(t *testing.T, cfg *ir.Config, opts ...EngineOption) *fixture {
	t.Helper()
	f := &fixture{
		rec:   testutil.NewRecorder(),
		alloc: &countingAllocator{Manager: pool.NewManager(quietLogger)},
		sched: newRecordingScheduler(),
	}
	opts = append([]EngineOption{WithLogger(quietLogger), WithSession("session-test")}, opts...)
	e, err := New(cfg, Deps{
		Allocator: f.alloc,
		Scheduler: f.sched,
		Notifier:  f.rec,
		Rewards:   f.rec,
		Observer:  f.rec,
		Journal:   f.rec,
	}, opts...)
	require.NoError(t, err)
	f.e = e
	t.Cleanup(func() { _ = e.Close() })
	return f
}

func (f *fixture) purchase(t *testing.T, types ...ir.TypeID) {
	t.Helper()
	for _, ty := range types {
		_, err := f.e.Purchase(context.Background(), ty)
		require.NoError(t, err, "purchase %s", ty)
	}
}

func (f *fixture) settle(t *testing.T) {
	t.Helper()
	require.NoError(t, f.e.Settle(context.Background(), frame, 1000))
}

func repeat(t ir.TypeID, n int) []ir.TypeID {
	out := make([]ir.TypeID, n)
	for i := range out {
		out[i] = t
	}
	return out
}
