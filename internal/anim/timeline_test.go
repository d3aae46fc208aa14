package anim

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mergeq/internal/ir"
)

type point struct{ pos ir.Vec2 }

func (p *point) Position() ir.Vec2     { return p.pos }
func (p *point) SetPosition(v ir.Vec2) { p.pos = v }

func newQuietTimeline(opts ...Option) *Timeline {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewTimeline(opts...)
}

func TestMoveToInterpolatesAndCompletes(t *testing.T) {
	tl := newQuietTimeline()
	p := &point{}

	sig := tl.MoveTo(p, ir.Vec2{X: 100, Y: 50}, 200*time.Millisecond)
	assert.False(t, sig.Done())
	assert.Equal(t, 1, tl.Active())

	tl.Advance(100 * time.Millisecond)
	assert.True(t, p.pos.Near(ir.Vec2{X: 50, Y: 25}, 1e-9))
	assert.False(t, sig.Done())

	tl.Advance(100 * time.Millisecond)
	assert.Equal(t, ir.Vec2{X: 100, Y: 50}, p.pos)
	assert.True(t, sig.Done())
	assert.False(t, sig.Cancelled())
	assert.Equal(t, 0, tl.Active())
	assert.Equal(t, 200*time.Millisecond, tl.Now())
}

func TestMoveToOvershootSnapsToTarget(t *testing.T) {
	tl := newQuietTimeline(WithEasing(OutQuad))
	p := &point{}

	sig := tl.MoveTo(p, ir.Vec2{X: 10}, 50*time.Millisecond)
	tl.Advance(time.Second)
	assert.Equal(t, ir.Vec2{X: 10}, p.pos)
	assert.True(t, sig.Done())
}

func TestMoveToZeroDurationIsImmediate(t *testing.T) {
	tl := newQuietTimeline()
	p := &point{}

	sig := tl.MoveTo(p, ir.Vec2{X: 7, Y: 3}, 0)
	assert.True(t, sig.Done())
	assert.Equal(t, ir.Vec2{X: 7, Y: 3}, p.pos)
	assert.Equal(t, 0, tl.Active())
}

func TestMoveToReplacesRunningTransition(t *testing.T) {
	tl := newQuietTimeline()
	p := &point{}

	first := tl.MoveTo(p, ir.Vec2{X: 100}, 100*time.Millisecond)
	second := tl.MoveTo(p, ir.Vec2{X: -100}, 100*time.Millisecond)

	assert.True(t, first.Cancelled())
	assert.Equal(t, 1, tl.Active())

	tl.Advance(100 * time.Millisecond)
	assert.True(t, second.Done())
	assert.Equal(t, ir.Vec2{X: -100}, p.pos)
}

func TestCancelLeavesPositionInPlace(t *testing.T) {
	tl := newQuietTimeline()
	p := &point{}
	q := &point{}

	sp := tl.MoveTo(p, ir.Vec2{X: 100}, 100*time.Millisecond)
	sq := tl.MoveTo(q, ir.Vec2{X: 100}, 100*time.Millisecond)
	tl.Advance(50 * time.Millisecond)

	tl.Cancel(p)
	assert.True(t, sp.Done())
	assert.True(t, sp.Cancelled())
	assert.False(t, sq.Done())

	tl.Advance(50 * time.Millisecond)
	assert.True(t, p.pos.Near(ir.Vec2{X: 50}, 1e-9))
	assert.Equal(t, ir.Vec2{X: 100}, q.pos)
}

func TestCancelAll(t *testing.T) {
	tl := newQuietTimeline()
	a := tl.MoveTo(&point{}, ir.Vec2{X: 1}, time.Second)
	b := tl.MoveTo(&point{}, ir.Vec2{X: 1}, time.Second)

	tl.CancelAll()
	assert.True(t, Join(a, b).Cancelled())
	assert.Equal(t, 0, tl.Active())
}

func TestJoin(t *testing.T) {
	tl := newQuietTimeline()
	short := tl.MoveTo(&point{}, ir.Vec2{X: 1}, 100*time.Millisecond)
	long := tl.MoveTo(&point{}, ir.Vec2{X: 1}, 300*time.Millisecond)
	joined := Join(short, long)

	tl.Advance(100 * time.Millisecond)
	require.True(t, short.Done())
	assert.False(t, joined.Done())

	tl.Advance(200 * time.Millisecond)
	assert.True(t, joined.Done())
	assert.False(t, joined.Cancelled())
}

func TestJoinEmptyIsCompleted(t *testing.T) {
	assert.True(t, Join().Done())
	assert.True(t, Join(nil, nil).Done())
	assert.True(t, Completed().Done())

	var nilSignal *Signal
	assert.True(t, nilSignal.Done())
	assert.False(t, nilSignal.Cancelled())
}

func TestEasingEndpoints(t *testing.T) {
	for name, e := range map[string]Easing{"linear": Linear, "out_quad": OutQuad, "in_out_quad": InOutQuad} {
		assert.InDelta(t, 0.0, e(0), 1e-9, name)
		assert.InDelta(t, 1.0, e(1), 1e-9, name)
	}
	assert.InDelta(t, 0.5, InOutQuad(0.5), 1e-9)
}
