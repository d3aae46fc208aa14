// Package pool provides keyed pools of reusable token visuals.
//
// Pools are registered once per key with a prototype and a prewarm count.
// Acquire returns nil for unregistered keys or when a pool's limit is reached;
// callers must abort the operation that needed the node. Release is idempotent.
//
// Thread-safety: Manager is safe for concurrent use. The engine is the only
// writer in practice, but the pool is shared state with the visual layer.
package pool

import (
	"fmt"
	"log/slog"
	"sync"
)

// Option configures a pool at registration.
type Option func(*pool)

// WithLimit caps the number of nodes a pool may create. Zero means unbounded.
func WithLimit(n int) Option {
	return func(p *pool) {
		p.limit = n
	}
}

type pool struct {
	key       string
	prototype Node
	limit     int
	created   int
	free      []*Node
}

// Stats describes a pool's occupancy.
type Stats struct {
	Key     string `json:"key"`
	Created int    `json:"created"`
	Free    int    `json:"free"`
	InUse   int    `json:"in_use"`
	Limit   int    `json:"limit"`
}

// Manager holds every registered pool.
type Manager struct {
	mu     sync.Mutex
	pools  map[string]*pool
	logger *slog.Logger
}

// NewManager creates an empty manager. A nil logger uses slog.Default().
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		pools:  make(map[string]*pool),
		logger: logger,
	}
}

// Register creates the pool for key and prewarms it with prewarm nodes.
//
// Registering an existing key is rejected (the first registration wins).
// Prewarm is capped by the pool limit.
func (m *Manager) Register(key string, prototype Node, prewarm int, opts ...Option) error {
	if key == "" {
		return fmt.Errorf("register pool: key is required")
	}
	if prewarm < 0 {
		return fmt.Errorf("register pool %q: prewarm must be non-negative, got %d", key, prewarm)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.pools[key]; exists {
		m.logger.Warn("pool already registered", "key", key)
		return fmt.Errorf("register pool %q: already registered", key)
	}

	p := &pool{key: key, prototype: prototype}
	for _, opt := range opts {
		opt(p)
	}
	p.prototype.key = key
	p.prototype.active = false

	for i := 0; i < prewarm && p.canCreate(); i++ {
		p.free = append(p.free, p.create())
	}

	m.pools[key] = p
	m.logger.Debug("pool registered", "key", key, "prewarm", len(p.free), "limit", p.limit)
	return nil
}

// Acquire checks out a node from the pool for key, parented to parent.
// Returns nil if the key is unregistered or the pool is exhausted.
func (m *Manager) Acquire(key, parent string) *Node {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[key]
	if !ok {
		m.logger.Warn("acquire from unregistered pool", "key", key)
		return nil
	}

	var n *Node
	if last := len(p.free) - 1; last >= 0 {
		n = p.free[last]
		p.free[last] = nil
		p.free = p.free[:last]
	} else if p.canCreate() {
		n = p.create()
	} else {
		m.logger.Warn("pool exhausted", "key", key, "limit", p.limit)
		return nil
	}

	n.parent = parent
	n.active = true
	return n
}

// Release returns a node to its pool. Releasing nil, an inactive node, or a
// node from an unknown pool is a no-op.
func (m *Manager) Release(n *Node) {
	if n == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !n.active {
		return
	}
	p, ok := m.pools[n.key]
	if !ok {
		m.logger.Warn("release to unregistered pool", "key", n.key)
		return
	}

	serial := n.serial
	*n = p.prototype
	n.serial = serial
	p.free = append(p.free, n)
}

// Stats returns occupancy for key.
func (m *Manager) Stats(key string) (Stats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[key]
	if !ok {
		return Stats{}, false
	}
	return Stats{
		Key:     key,
		Created: p.created,
		Free:    len(p.free),
		InUse:   p.created - len(p.free),
		Limit:   p.limit,
	}, true
}

// Registered reports whether key has a pool.
func (m *Manager) Registered(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pools[key]
	return ok
}

func (p *pool) canCreate() bool {
	return p.limit <= 0 || p.created < p.limit
}

func (p *pool) create() *Node {
	p.created++
	n := p.prototype
	n.serial = p.created
	return &n
}
