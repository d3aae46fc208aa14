// Package anim is the reference transition scheduler.
//
// A Timeline owns a logical clock that only moves when Advance is called, so
// transitions resolve deterministically in tests and in the harness. A host
// with a real frame loop calls Advance once per frame with the frame delta.
package anim

import (
	"log/slog"
	"time"

	"github.com/roach88/mergeq/internal/ir"
)

// Movable is anything with a position that a transition can drive.
type Movable interface {
	Position() ir.Vec2
	SetPosition(ir.Vec2)
}

// Scheduler starts position transitions and returns their completion signals.
type Scheduler interface {
	MoveTo(target Movable, to ir.Vec2, d time.Duration) *Signal
}

// Advancer is implemented by schedulers whose clock the caller drives.
type Advancer interface {
	Advance(dt time.Duration)
}

// Canceller is implemented by schedulers that can abort transitions.
type Canceller interface {
	Cancel(target Movable)
	CancelAll()
}

type tween struct {
	target Movable
	from   ir.Vec2
	to     ir.Vec2
	start  time.Duration
	dur    time.Duration
	signal *Signal
}

// Option configures a Timeline.
type Option func(*Timeline)

// WithEasing sets the easing applied to every transition.
func WithEasing(e Easing) Option {
	return func(tl *Timeline) {
		if e != nil {
			tl.ease = e
		}
	}
}

// WithLogger sets the timeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(tl *Timeline) {
		if l != nil {
			tl.logger = l
		}
	}
}

// Timeline is a deterministic Scheduler driven by Advance.
// Not safe for concurrent use; it belongs to the engine's goroutine.
type Timeline struct {
	now    time.Duration
	tweens []*tween
	ease   Easing
	logger *slog.Logger
}

// NewTimeline creates a timeline at logical time zero.
func NewTimeline(opts ...Option) *Timeline {
	tl := &Timeline{
		ease:   Linear,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(tl)
	}
	return tl
}

// MoveTo starts moving target to `to` over d.
//
// A non-positive duration applies the position immediately and returns a
// completed signal. Starting a transition on a target that is already moving
// cancels the earlier one.
func (tl *Timeline) MoveTo(target Movable, to ir.Vec2, d time.Duration) *Signal {
	if target == nil {
		return Completed()
	}
	tl.Cancel(target)

	if d <= 0 {
		target.SetPosition(to)
		return Completed()
	}

	tw := &tween{
		target: target,
		from:   target.Position(),
		to:     to,
		start:  tl.now,
		dur:    d,
		signal: &Signal{},
	}
	tl.tweens = append(tl.tweens, tw)
	return tw.signal
}

// Advance moves the logical clock forward by dt and updates every transition.
// Transitions that reach their end snap to the target and complete.
func (tl *Timeline) Advance(dt time.Duration) {
	if dt < 0 {
		return
	}
	tl.now += dt

	live := tl.tweens[:0]
	for _, tw := range tl.tweens {
		elapsed := tl.now - tw.start
		if elapsed >= tw.dur {
			tw.target.SetPosition(tw.to)
			tw.signal.complete()
			continue
		}
		t := float64(elapsed) / float64(tw.dur)
		tw.target.SetPosition(tw.from.Lerp(tw.to, tl.ease(t)))
		live = append(live, tw)
	}
	for i := len(live); i < len(tl.tweens); i++ {
		tl.tweens[i] = nil
	}
	tl.tweens = live
}

// Cancel aborts every transition on target, leaving it where it currently is.
func (tl *Timeline) Cancel(target Movable) {
	live := tl.tweens[:0]
	for _, tw := range tl.tweens {
		if tw.target == target {
			tw.signal.cancel()
			continue
		}
		live = append(live, tw)
	}
	for i := len(live); i < len(tl.tweens); i++ {
		tl.tweens[i] = nil
	}
	tl.tweens = live
}

// CancelAll aborts every transition.
func (tl *Timeline) CancelAll() {
	if n := len(tl.tweens); n > 0 {
		tl.logger.Debug("cancelling transitions", "count", n)
	}
	for _, tw := range tl.tweens {
		tw.signal.cancel()
	}
	tl.tweens = nil
}

// Active returns the number of running transitions.
func (tl *Timeline) Active() int {
	return len(tl.tweens)
}

// Now returns the timeline's logical time.
func (tl *Timeline) Now() time.Duration {
	return tl.now
}
