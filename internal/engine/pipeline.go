package engine

import (
	"context"
	"errors"

	"github.com/roach88/mergeq/internal/anim"
	"github.com/roach88/mergeq/internal/ir"
	"github.com/roach88/mergeq/internal/queue"
)

// Phase is the pipeline's position in one merge lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseLifting
	PhaseConverging
	PhaseCommitting
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseLifting:
		return "lifting"
	case PhaseConverging:
		return "converging"
	case PhaseCommitting:
		return "committing"
	}
	return "unknown"
}

// pipeline resolves one run merge at a time.
//
// Lifecycle: Idle -> Scanning -> Lifting -> Converging -> Committing -> Idle.
// Each animated phase waits on a joined signal; step advances at most one
// phase per call and only once that signal has finished. The phase field is
// the single-flight guard: Trigger is refused unless the pipeline is idle.
type pipeline struct {
	e *Engine

	phase   Phase
	pending *ir.PendingMerge
	sources []*queue.Block
	center  ir.Vec2
	wait    *anim.Signal

	cascade *QuotaEnforcer
}

func newPipeline(e *Engine) *pipeline {
	return &pipeline{e: e, phase: PhaseIdle}
}

func (p *pipeline) busy() bool {
	return p.phase != PhaseIdle
}

// trigger starts a scan from an external event. Returns true if a merge began.
func (p *pipeline) trigger(ctx context.Context) bool {
	if p.busy() {
		p.e.logger.Debug("scan ignored: merge in flight", "phase", p.phase.String())
		return false
	}
	if p.cascade != nil {
		p.cascade.Reset()
	}
	return p.scan(ctx)
}

func (p *pipeline) scan(ctx context.Context) bool {
	e := p.e
	p.phase = PhaseScanning

	run, ok := findRunMerge(e.queue.Types(), e.rules.Rules(), e.progression, func(t ir.TypeID, r ir.MergeRule) {
		e.logger.Debug("no successor for run", "type", t, "rule_id", r.ID)
	})
	if !ok {
		p.phase = PhaseIdle
		return false
	}

	m := ir.PendingMerge{
		RuleID:         run.Rule.ID,
		Result:         run.Result,
		OutputCount:    run.Rule.OutputCount,
		InsertionIndex: run.Start,
		Message:        run.Rule.RenderMessage(e.name(run.Result)),
	}
	sources := make([]*queue.Block, 0, run.Length)
	positions := make([]ir.Vec2, 0, run.Length)
	for i := run.Start; i < run.Start+run.Length; i++ {
		b, _ := e.queue.At(i)
		sources = append(sources, b)
		positions = append(positions, b.Node.Position())
		m.SourceTokenIDs = append(m.SourceTokenIDs, b.Token.ID)
	}

	p.pending = &m
	p.sources = sources
	p.center = ir.Centroid(positions)

	e.logger.Info("merge started",
		"rule_id", m.RuleID,
		"type", run.Source,
		"result", m.Result,
		"index", m.InsertionIndex,
		"sources", len(sources),
	)

	lift := ir.Vec2{Y: e.cfg.Timing.LiftOffset}
	signals := make([]*anim.Signal, len(sources))
	for i, b := range sources {
		signals[i] = e.sched.MoveTo(b.Node, b.Node.Position().Add(lift), e.cfg.Timing.Lift)
	}
	p.wait = anim.Join(signals...)
	p.phase = PhaseLifting
	return true
}

// step advances one phase if the awaited transitions finished.
// Returns true when the phase changed.
func (p *pipeline) step(ctx context.Context) bool {
	switch p.phase {
	case PhaseLifting, PhaseConverging, PhaseCommitting:
	default:
		return false
	}
	if !p.wait.Done() {
		return false
	}
	if p.wait.Cancelled() && p.phase != PhaseCommitting {
		p.e.logger.Warn("merge transitions cancelled", "phase", p.phase.String(), "rule_id", p.pending.RuleID)
		p.reset()
		return true
	}

	switch p.phase {
	case PhaseLifting:
		p.converge()
	case PhaseConverging:
		p.commit(ctx)
	case PhaseCommitting:
		p.finish(ctx)
	}
	return true
}

func (p *pipeline) converge() {
	e := p.e
	signals := make([]*anim.Signal, 0, len(p.sources))
	for _, b := range p.sources {
		if !e.queue.Contains(b.Token.ID) {
			continue
		}
		signals = append(signals, e.sched.MoveTo(b.Node, p.center, e.cfg.Timing.Converge))
	}
	p.wait = anim.Join(signals...)
	p.phase = PhaseConverging
}

func (p *pipeline) commit(ctx context.Context) {
	e := p.e
	m := *p.pending
	p.phase = PhaseCommitting

	for _, id := range m.SourceTokenIDs {
		e.queue.Remove(id)
	}
	// Released nodes may be reacquired for the results below.
	p.sources = nil

	inserted := 0
	for k := 0; k < m.OutputCount; k++ {
		index := m.InsertionIndex
		if index > e.queue.Len() {
			index = e.queue.Len()
		}
		if _, err := e.queue.Insert(m.Result, index); err != nil {
			e.logger.Error("merge result insert failed",
				"rule_id", m.RuleID,
				"result", m.Result,
				"inserted", inserted,
				"want", m.OutputCount,
				"code", string(e.insertErrorCode(err)),
				"error", err,
			)
			break
		}
		inserted++
	}

	if m.Message != "" {
		e.notifier.ShowMessage(m.Message, e.cfg.Timing.Message)
	}

	e.logger.Info("merge committed",
		"rule_id", m.RuleID,
		"result", m.Result,
		"output", inserted,
		"index", m.InsertionIndex,
		"len", e.queue.Len(),
	)
	e.mergeCommitted(ctx, m)

	p.wait = e.queue.Relayout(e.sched, e.cfg.Timing.Reposition)
}

func (p *pipeline) finish(ctx context.Context) {
	p.reset()
	p.e.refreshAvailability()

	if p.cascade == nil {
		return
	}
	if err := p.cascade.Check(p.e.sessionID); err != nil {
		p.e.logger.Warn("cascade stopped", "steps", p.cascade.Current(), "limit", p.cascade.MaxSteps(), "error", err)
		p.cascade.Reset()
		return
	}
	if !p.scan(ctx) {
		p.cascade.Reset()
	}
}

// cancel aborts the in-flight merge without touching the queue.
func (p *pipeline) cancel() bool {
	if !p.busy() {
		return false
	}
	if c, ok := p.e.sched.(anim.Canceller); ok {
		for _, b := range p.sources {
			c.Cancel(b.Node)
		}
	}
	p.e.logger.Info("merge cancelled", "phase", p.phase.String())
	p.reset()
	return true
}

func (p *pipeline) reset() {
	p.phase = PhaseIdle
	p.pending = nil
	p.sources = nil
	p.wait = nil
}

// insertErrorCode classifies a queue insert failure. An allocator that never
// got its pool registered is a configuration error, not exhaustion.
func (e *Engine) insertErrorCode(err error) ErrorCode {
	if e.poolErr != nil && errors.Is(err, queue.ErrAllocatorExhausted) {
		return CodeConfiguration
	}
	return insertErrorCode(err)
}

func insertErrorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, queue.ErrQueueFull):
		return CodeQueueFull
	case errors.Is(err, queue.ErrAllocatorExhausted):
		return CodeAllocatorExhausted
	}
	return CodeConfiguration
}
