package engine

import (
	"context"
	"errors"
	"time"
)

// ErrRunnerStopped is returned for requests made after the runner stopped.
var ErrRunnerStopped = errors.New("runner stopped")

// Runner drives an Engine from a single goroutine and accepts commands from
// any goroutine.
//
// Run owns the engine: it applies queued commands in FIFO order and calls
// Update on every frame tick. Command failures are logged and the loop
// continues; callers that need the result use Do.
type Runner struct {
	e     *Engine
	frame time.Duration
	inbox *inbox
}

// NewRunner creates a runner ticking every frame. Non-positive frame uses DefaultFrame.
func NewRunner(e *Engine, frame time.Duration) *Runner {
	if frame <= 0 {
		frame = DefaultFrame
	}
	return &Runner{e: e, frame: frame, inbox: newInbox()}
}

// Enqueue submits a command without waiting. Returns false once stopped.
func (r *Runner) Enqueue(c Command) bool {
	return r.inbox.push(request{cmd: &c})
}

// Do submits a command and waits for its result.
func (r *Runner) Do(ctx context.Context, c Command) error {
	reply := make(chan error, 1)
	if !r.inbox.push(request{cmd: &c, reply: reply}) {
		return ErrRunnerStopped
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err, ok := <-reply:
		if !ok {
			return ErrRunnerStopped
		}
		return err
	}
}

// Snapshot takes a snapshot on the loop goroutine.
func (r *Runner) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := make(chan Snapshot, 1)
	if !r.inbox.push(request{snap: snap}) {
		return Snapshot{}, ErrRunnerStopped
	}
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case s, ok := <-snap:
		if !ok {
			return Snapshot{}, ErrRunnerStopped
		}
		return s, nil
	}
}

// Run blocks until ctx is cancelled or Stop is called.
// Must be called from exactly one goroutine.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.frame)
	defer ticker.Stop()

	r.e.logger.Info("runner starting", "frame", r.frame)
	for {
		r.drain(ctx)

		select {
		case <-ctx.Done():
			r.e.logger.Info("runner stopping: context cancelled")
			r.inbox.close()
			r.abandon()
			return ctx.Err()

		case <-ticker.C:
			r.e.Update(ctx, r.frame)

		case _, ok := <-r.inbox.wait():
			if !ok {
				r.drain(ctx)
				r.e.logger.Info("runner stopping: inbox closed")
				return nil
			}
		}
	}
}

// Stop closes the inbox. Run returns after applying what was already queued.
func (r *Runner) Stop() {
	r.inbox.close()
}

// Pending returns the number of queued requests.
func (r *Runner) Pending() int {
	return r.inbox.len()
}

func (r *Runner) drain(ctx context.Context) {
	for {
		req, ok := r.inbox.pop()
		if !ok {
			return
		}
		if req.snap != nil {
			req.snap <- r.e.Snapshot()
			continue
		}
		err := r.e.Apply(ctx, *req.cmd)
		if err != nil && req.reply == nil {
			r.e.logger.Warn("command failed", "kind", string(req.cmd.Kind), "error", err)
		}
		if req.reply != nil {
			req.reply <- err
		}
	}
}

// abandon fails every queued request after cancellation.
func (r *Runner) abandon() {
	for {
		req, ok := r.inbox.pop()
		if !ok {
			return
		}
		if req.reply != nil {
			close(req.reply)
		}
		if req.snap != nil {
			close(req.snap)
		}
	}
}
