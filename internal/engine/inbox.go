package engine

import "sync"

// request is one unit of work for the Runner loop: a command to apply or a
// snapshot to take.
type request struct {
	cmd   *Command
	reply chan error
	snap  chan Snapshot
}

// inbox is a thread-safe FIFO of requests.
//
// The inbox is unbounded so producers never block the frame loop. A buffered
// signal channel of size 1 coalesces wakeups for context-aware waiting.
type inbox struct {
	mu     sync.Mutex
	items  []request
	closed bool
	signal chan struct{}
}

func newInbox() *inbox {
	return &inbox{
		items:  make([]request, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// push adds a request. Returns false once the inbox is closed.
func (q *inbox) push(r request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, r)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// pop removes the front request without blocking.
func (q *inbox) pop() (request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return request{}, false
	}
	r := q.items[0]
	// Clear the slot so the backing array does not retain reply channels.
	q.items[0] = request{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return r, true
}

func (q *inbox) wait() <-chan struct{} {
	return q.signal
}

func (q *inbox) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// close stops accepting requests and wakes the waiter.
func (q *inbox) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
