// Package queue implements the ordered, fixed-capacity token queue and its
// slot geometry.
//
// The queue owns its tokens and their visual nodes. Order only changes through
// Insert and Remove. Nodes come from an Allocator and go back to it on removal.
package queue

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/mergeq/internal/anim"
	"github.com/roach88/mergeq/internal/ir"
	"github.com/roach88/mergeq/internal/pool"
)

// Allocator supplies and reclaims token visuals.
type Allocator interface {
	Acquire(key, parent string) *pool.Node
	Release(n *pool.Node)
}

// Block is a queued token together with its visual node.
type Block struct {
	Token ir.Token
	Node  *pool.Node
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the queue logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithParent names the container nodes are acquired into. Default "queue".
func WithParent(name string) Option {
	return func(q *Queue) {
		q.parent = name
	}
}

// Queue is the BlockQueue. Not safe for concurrent use.
type Queue struct {
	capacity int
	poolKey  string
	parent   string
	alloc    Allocator
	blocks   []*Block
	geom     Geometry
	nextID   ir.TokenID
	logger   *slog.Logger
}

// New creates an empty queue laid out over the given bounds.
func New(cfg ir.QueueConfig, alloc Allocator, poolKey string, opts ...Option) (*Queue, error) {
	if alloc == nil {
		return nil, fmt.Errorf("new queue: allocator is required")
	}
	geom, err := computeGeometry(cfg.Capacity, cfg.Left, cfg.Width, cfg.Padding)
	if err != nil {
		return nil, fmt.Errorf("new queue: %w", err)
	}

	q := &Queue{
		capacity: cfg.Capacity,
		poolKey:  poolKey,
		parent:   "queue",
		alloc:    alloc,
		blocks:   make([]*Block, 0, cfg.Capacity),
		geom:     geom,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Capacity returns the maximum number of tokens.
func (q *Queue) Capacity() int { return q.capacity }

// Len returns the number of queued tokens.
func (q *Queue) Len() int { return len(q.blocks) }

// Full reports whether Len equals Capacity.
func (q *Queue) Full() bool { return len(q.blocks) >= q.capacity }

// Geometry returns the current slot layout.
func (q *Queue) Geometry() Geometry { return q.geom }

// SetBounds recomputes slot geometry and resizes every node.
// Positions are not changed; call Relayout to move nodes into their new slots.
func (q *Queue) SetBounds(left, width, padding float64) error {
	geom, err := computeGeometry(q.capacity, left, width, padding)
	if err != nil {
		return fmt.Errorf("set bounds: %w", err)
	}
	q.geom = geom
	for _, b := range q.blocks {
		b.Node.SetSize(geom.TokenSize)
	}
	return nil
}

// Insert places a new token of type t at index.
//
// A full queue fails with ErrQueueFull before the allocator is contacted.
// If the allocator yields no node the queue is left unchanged.
func (q *Queue) Insert(t ir.TypeID, index int) (*Block, error) {
	if q.Full() {
		return nil, fmt.Errorf("insert %s: %w", t, ErrQueueFull)
	}
	if index < 0 || index > len(q.blocks) {
		return nil, fmt.Errorf("insert %s at %d (len %d): %w", t, index, len(q.blocks), ErrInvalidIndex)
	}

	node := q.alloc.Acquire(q.poolKey, q.parent)
	if node == nil {
		return nil, fmt.Errorf("insert %s from pool %q: %w", t, q.poolKey, ErrAllocatorExhausted)
	}

	q.nextID++
	b := &Block{
		Token: ir.Token{ID: q.nextID, Type: t},
		Node:  node,
	}
	node.SetSize(q.geom.TokenSize)
	node.SetPosition(q.geom.SlotCenter(index))

	q.blocks = append(q.blocks, nil)
	copy(q.blocks[index+1:], q.blocks[index:])
	q.blocks[index] = b

	q.logger.Debug("token inserted", "token_id", b.Token.ID, "type", t, "index", index, "len", len(q.blocks))
	return b, nil
}

// Append inserts at the end of the queue.
func (q *Queue) Append(t ir.TypeID) (*Block, error) {
	return q.Insert(t, len(q.blocks))
}

// Remove takes the token out of the queue and releases its node.
// Removing an absent id is a no-op and returns false.
func (q *Queue) Remove(id ir.TokenID) (*Block, bool) {
	i := q.IndexOf(id)
	if i < 0 {
		return nil, false
	}
	b := q.blocks[i]
	copy(q.blocks[i:], q.blocks[i+1:])
	q.blocks[len(q.blocks)-1] = nil
	q.blocks = q.blocks[:len(q.blocks)-1]

	q.alloc.Release(b.Node)
	q.logger.Debug("token removed", "token_id", id, "type", b.Token.Type, "index", i, "len", len(q.blocks))
	return b, true
}

// At returns the block at index i.
func (q *Queue) At(i int) (*Block, bool) {
	if i < 0 || i >= len(q.blocks) {
		return nil, false
	}
	return q.blocks[i], true
}

// Get returns the block holding token id.
func (q *Queue) Get(id ir.TokenID) (*Block, bool) {
	i := q.IndexOf(id)
	if i < 0 {
		return nil, false
	}
	return q.blocks[i], true
}

// IndexOf returns the index of token id, or -1.
func (q *Queue) IndexOf(id ir.TokenID) int {
	for i, b := range q.blocks {
		if b.Token.ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether token id is queued.
func (q *Queue) Contains(id ir.TokenID) bool {
	return q.IndexOf(id) >= 0
}

// Types returns a snapshot of token types in queue order.
func (q *Queue) Types() []ir.TypeID {
	out := make([]ir.TypeID, len(q.blocks))
	for i, b := range q.blocks {
		out[i] = b.Token.Type
	}
	return out
}

// Tokens returns a snapshot of tokens in queue order.
func (q *Queue) Tokens() []ir.Token {
	out := make([]ir.Token, len(q.blocks))
	for i, b := range q.blocks {
		out[i] = b.Token
	}
	return out
}

// Relayout moves every node to its slot center concurrently and returns the
// joined completion signal. An empty queue yields a completed signal.
func (q *Queue) Relayout(sched anim.Scheduler, d time.Duration) *anim.Signal {
	if len(q.blocks) == 0 {
		return anim.Completed()
	}
	signals := make([]*anim.Signal, len(q.blocks))
	for i, b := range q.blocks {
		signals[i] = sched.MoveTo(b.Node, q.geom.Centers[i], d)
	}
	return anim.Join(signals...)
}

// Clear removes every token, releasing nodes.
func (q *Queue) Clear() {
	for _, b := range q.blocks {
		q.alloc.Release(b.Node)
	}
	for i := range q.blocks {
		q.blocks[i] = nil
	}
	q.blocks = q.blocks[:0]
}
