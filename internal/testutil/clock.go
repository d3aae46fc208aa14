package testutil

import (
	"sync"
	"time"
)

// FrameClock hands out fixed frame steps and tracks elapsed logical time.
//
// The harness drives the engine with FrameClock steps so the same scenario
// always resolves on the same frame boundaries.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FrameClock struct {
	mu      sync.Mutex
	frame   time.Duration
	elapsed time.Duration
	frames  int
}

// NewFrameClock creates a clock stepping by frame. Non-positive frame uses 16ms.
func NewFrameClock(frame time.Duration) *FrameClock {
	if frame <= 0 {
		frame = 16 * time.Millisecond
	}
	return &FrameClock{frame: frame}
}

// Step advances one frame and returns its duration.
func (c *FrameClock) Step() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elapsed += c.frame
	c.frames++
	return c.frame
}

// Steps splits d into whole frames plus a final partial frame.
// The returned durations sum to d.
func (c *FrameClock) Steps(d time.Duration) []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []time.Duration
	for d > 0 {
		step := c.frame
		if d < step {
			step = d
		}
		out = append(out, step)
		c.elapsed += step
		c.frames++
		d -= step
	}
	return out
}

// Frame returns the frame duration.
func (c *FrameClock) Frame() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// Elapsed returns the total time handed out.
func (c *FrameClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Frames returns the number of steps handed out.
func (c *FrameClock) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// Reset returns the clock to zero.
func (c *FrameClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elapsed = 0
	c.frames = 0
}
