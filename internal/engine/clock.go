package engine

import "sync/atomic"

// Clock is the journal's monotonic sequence counter.
//
// Every journal entry is stamped with a strictly increasing seq. Ordering never
// depends on wall-clock time, so a replayed session yields the same sequence.
//
// Thread-safety: Clock is safe for concurrent use. In practice only the
// engine's owning goroutine calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that continues after start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
