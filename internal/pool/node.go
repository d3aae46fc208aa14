package pool

import "github.com/roach88/mergeq/internal/ir"

// Node is a pooled visual instance for one queued token.
// Position and size are owned by whoever holds the node; the pool resets them
// to the prototype on release.
type Node struct {
	key    string
	serial int
	parent string
	pos    ir.Vec2
	size   float64
	active bool
}

// Key returns the pool key the node belongs to.
func (n *Node) Key() string { return n.key }

// Serial is a pool-unique instance number, stable across reuse.
func (n *Node) Serial() int { return n.serial }

// Parent returns the container the node was acquired into.
func (n *Node) Parent() string { return n.parent }

// Active reports whether the node is currently checked out.
func (n *Node) Active() bool { return n.active }

// Position returns the node's current position.
func (n *Node) Position() ir.Vec2 { return n.pos }

// SetPosition moves the node immediately.
func (n *Node) SetPosition(p ir.Vec2) { n.pos = p }

// Size returns the node's edge length.
func (n *Node) Size() float64 { return n.size }

// SetSize sets the node's edge length.
func (n *Node) SetSize(s float64) { n.size = s }
