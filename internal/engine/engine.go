package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/roach88/mergeq/internal/anim"
	"github.com/roach88/mergeq/internal/catalog"
	"github.com/roach88/mergeq/internal/ir"
	"github.com/roach88/mergeq/internal/pool"
	"github.com/roach88/mergeq/internal/queue"
	"github.com/roach88/mergeq/internal/rules"
)

// DefaultFrame is the step Settle uses when given a non-positive step.
const DefaultFrame = 16 * time.Millisecond

// State is the externally visible engine state.
type State string

const (
	StateIdle       State = "idle"
	StateSettling   State = "settling"
	StateScanning   State = "scanning"
	StateAnimating  State = "animating"
	StateCommitting State = "committing"
)

// Deps are the engine's collaborators. Every field is optional:
//   - Allocator defaults to a new *pool.Manager
//   - Scheduler defaults to an engine-owned *anim.Timeline
//   - Progression and Catalog default to a *catalog.Catalog built from the config units
//   - Notifier, Rewards and Observer default to no-ops
//   - a nil Journal disables journaling
type Deps struct {
	Allocator   Allocator
	Scheduler   anim.Scheduler
	Progression Progression
	Catalog     TypeCatalog
	Notifier    Notifier
	Rewards     RewardSink
	Observer    Observer
	Journal     Journal
}

// Engine is the queue-merge resolution engine.
//
// The engine owns one BlockQueue and resolves merges on it one at a time.
// External events (Purchase, Consume, ActivateRecipe) mutate the queue and
// start a relayout; once the relayout settles, recipe availability is
// recomputed and a single scan runs. A found run merge is handed to the
// pipeline, which animates, commits and settles before returning to idle.
//
// Thread-safety model: none. Every method must be called from the goroutine
// that owns the engine, usually the host's frame loop. Runner serializes
// commands from other goroutines onto that loop.
//
// INVARIANTS:
//   - queue length never exceeds capacity
//   - at most one merge lifecycle is in flight
//   - refused commands never mutate the queue
type Engine struct {
	cfg    *ir.Config
	logger *slog.Logger

	queue       *queue.Queue
	alloc       Allocator
	poolErr     error // registration failure, nil when the pool is usable
	sched       anim.Scheduler
	rules       *rules.RuleSet
	recipes     *rules.Registry
	progression Progression
	catalog     TypeCatalog
	knownTypes  map[ir.TypeID]bool

	notifier Notifier
	rewards  RewardSink
	observer Observer
	journal  Journal

	pipeline     *pipeline
	cascadeSteps int

	settle     *anim.Signal
	settleScan bool

	availability []ir.RecipeMatch

	sessionID string
	clock     *Clock
	elapsed   time.Duration
	closed    bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger. Default slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithCascade re-scans after every committed merge, up to maxSteps
// consecutive merges per chain. Non-positive maxSteps uses DefaultCascadeSteps.
// Without this option a commit never triggers another scan.
func WithCascade(maxSteps int) EngineOption {
	return func(e *Engine) {
		if maxSteps <= 0 {
			maxSteps = DefaultCascadeSteps
		}
		e.cascadeSteps = maxSteps
	}
}

// WithSession sets the session id stamped on journal entries.
func WithSession(id string) EngineOption {
	return func(e *Engine) {
		e.sessionID = id
	}
}

// WithClock sets the journal sequence clock.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// New creates an engine for cfg.
//
// Initialization order is fixed: slot geometry, pool registration, rule and
// recipe tables, then the first availability scan. The config is not retained
// for mutation; recipe unlock state lives in the engine's registry.
func New(cfg *ir.Config, deps Deps, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		return nil, newError(CodeConfiguration, "config is required")
	}
	if cfg.Pool.Key == "" {
		return nil, newError(CodeConfiguration, "pool key is required")
	}

	e := &Engine{
		cfg:         cfg,
		logger:      slog.Default(),
		alloc:       deps.Allocator,
		sched:       deps.Scheduler,
		progression: deps.Progression,
		catalog:     deps.Catalog,
		notifier:    deps.Notifier,
		rewards:     deps.Rewards,
		observer:    deps.Observer,
		journal:     deps.Journal,
		clock:       NewClock(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.alloc == nil {
		e.alloc = pool.NewManager(e.logger)
	}
	if e.sched == nil {
		e.sched = anim.NewTimeline(anim.WithLogger(e.logger), anim.WithEasing(anim.OutQuad))
	}
	if e.notifier == nil {
		e.notifier = NopNotifier{}
	}
	if e.rewards == nil {
		e.rewards = NopRewardSink{}
	}
	if e.observer == nil {
		e.observer = NopObserver{}
	}
	if e.progression == nil || e.catalog == nil {
		cat, err := catalog.New(cfg.Units)
		if err != nil {
			return nil, &Error{Code: CodeConfiguration, Message: "build catalog", Err: err}
		}
		if e.progression == nil {
			e.progression = cat
		}
		if e.catalog == nil {
			e.catalog = cat
		}
	}
	e.knownTypes = make(map[ir.TypeID]bool, len(cfg.Units))
	for _, u := range cfg.Units {
		e.knownTypes[u.ID] = true
	}

	// 1. Geometry
	q, err := queue.New(cfg.Queue, e.alloc, cfg.Pool.Key, queue.WithLogger(e.logger))
	if err != nil {
		return nil, &Error{Code: CodeConfiguration, Message: "build queue", Err: err}
	}
	e.queue = q

	// 2. Pool
	var prototype pool.Node
	prototype.SetSize(q.Geometry().TokenSize)
	var poolOpts []pool.Option
	if cfg.Pool.Limit > 0 {
		poolOpts = append(poolOpts, pool.WithLimit(cfg.Pool.Limit))
	}
	if err := e.alloc.Register(cfg.Pool.Key, prototype, cfg.Pool.Prewarm, poolOpts...); err != nil {
		// Inserts fail from here on; they report CodeConfiguration.
		e.poolErr = err
		e.logger.Error("pool registration failed", "key", cfg.Pool.Key, "error", err)
	}

	// 3. Tables
	ruleTable := cfg.Rules
	if len(ruleTable) == 0 {
		ruleTable = ir.DefaultRules()
	}
	if e.rules, err = rules.NewRuleSet(ruleTable); err != nil {
		return nil, &Error{Code: CodeConfiguration, Message: "build rules", Err: err}
	}
	if e.recipes, err = rules.NewRegistry(cfg.Recipes); err != nil {
		return nil, &Error{Code: CodeConfiguration, Message: "build recipes", Err: err}
	}

	e.pipeline = newPipeline(e)
	if e.cascadeSteps > 0 {
		e.pipeline.cascade = NewQuotaEnforcer(e.cascadeSteps)
	}

	// 4. First scan
	e.refreshAvailability()

	e.logger.Info("engine ready",
		"capacity", cfg.Queue.Capacity,
		"rules", e.rules.Len(),
		"recipes", e.recipes.Len(),
		"cascade", e.cascadeSteps,
		"session", e.sessionID,
	)
	return e, nil
}

// Purchase appends a token of type t and starts a relayout. The scan runs
// once the relayout settles.
func (e *Engine) Purchase(ctx context.Context, t ir.TypeID) (ir.Token, error) {
	if err := e.ready(); err != nil {
		return ir.Token{}, err
	}
	if e.pipeline.busy() {
		return ir.Token{}, newError(CodeBusy, "purchase refused while a merge is in flight")
	}
	if e.queue.Full() {
		return ir.Token{}, newError(CodeQueueFull, "queue is full (%d)", e.queue.Capacity())
	}
	if len(e.knownTypes) > 0 && !e.knownTypes[t] {
		return ir.Token{}, newError(CodeUnknownType, "unknown type %q", t)
	}

	b, err := e.queue.Append(t)
	if err != nil {
		return ir.Token{}, &Error{Code: e.insertErrorCode(err), Message: "purchase " + string(t), Err: err}
	}

	e.record(ctx, ir.EntryPurchase, map[string]any{"type": string(t)})
	e.startSettle(true)
	return b.Token, nil
}

// PurchaseRandom purchases a random type of tier picked through the catalog.
func (e *Engine) PurchaseRandom(ctx context.Context, tier int, r *rand.Rand) (ir.Token, error) {
	t, ok := e.catalog.RandomOfTier(tier, r)
	if !ok {
		return ir.Token{}, newError(CodeUnknownType, "no type of tier %d", tier)
	}
	return e.Purchase(ctx, t)
}

// Consume removes a token and emits its type as a reward unit.
func (e *Engine) Consume(ctx context.Context, id ir.TokenID) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.pipeline.busy() {
		return &Error{Code: CodeBusy, Message: "consume refused while a merge is in flight", TokenID: id}
	}
	b, ok := e.queue.Remove(id)
	if !ok {
		return &Error{Code: CodeUnknownToken, Message: "token not in queue", TokenID: id}
	}

	e.cancelTransitions(b.Node)
	e.rewards.Emit(b.Token.Type)
	e.observer.TokenActivated(id)
	e.logger.Info("token consumed", "token_id", id, "type", b.Token.Type)

	e.record(ctx, ir.EntryConsume, map[string]any{"token_id": uint64(id)})
	e.startSettle(true)
	return nil
}

// Unlock marks a recipe unlocked and announces it. Unlocking an unlocked
// recipe is a no-op.
func (e *Engine) Unlock(ctx context.Context, recipeID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	r, ok := e.recipes.Get(recipeID)
	if !ok {
		return &Error{Code: CodeUnknownRecipe, Message: "unknown recipe", RecipeID: recipeID}
	}
	if r.Unlocked {
		return nil
	}
	e.recipes.SetUnlocked(recipeID, true)
	e.announceUnlock(r)

	e.record(ctx, ir.EntryUnlock, map[string]any{"recipe_id": recipeID})
	e.refreshAvailability()
	return nil
}

// UnlockThrough unlocks every recipe whose unlock wave is at most wave and
// returns the ids that changed.
func (e *Engine) UnlockThrough(ctx context.Context, wave int) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	unlocked := e.recipes.UnlockThrough(wave)
	ids := make([]string, len(unlocked))
	for i, r := range unlocked {
		ids[i] = r.ID
		e.announceUnlock(r)
	}

	e.record(ctx, ir.EntryUnlock, map[string]any{"wave": wave})
	if len(unlocked) > 0 {
		e.refreshAvailability()
	}
	return ids, nil
}

// Update advances time by dt and drives pending settles and the pipeline
// until no further progress is possible.
//
// The scheduler is advanced only when it implements anim.Advancer, which the
// default engine-owned timeline does. Hosts with a self-driven scheduler call
// Update(ctx, 0) each frame.
func (e *Engine) Update(ctx context.Context, dt time.Duration) {
	if e.closed || dt < 0 {
		return
	}
	if !e.Idle() {
		e.record(ctx, ir.EntryAdvance, map[string]any{"dt_ns": int64(dt)})
	}
	e.elapsed += dt
	if adv, ok := e.sched.(anim.Advancer); ok {
		adv.Advance(dt)
	}
	e.pump(ctx)
}

// Settle calls Update with step until the engine is idle or maxSteps updates
// have run.
func (e *Engine) Settle(ctx context.Context, step time.Duration, maxSteps int) error {
	if step <= 0 {
		step = DefaultFrame
	}
	for i := 0; i < maxSteps && !e.Idle(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.Update(ctx, step)
	}
	if !e.Idle() {
		return fmt.Errorf("engine not settled after %d steps (state %s)", maxSteps, e.State())
	}
	return nil
}

// CancelMerge aborts an in-flight merge, leaving the queue untouched, and
// relayouts without scanning. Returns false if nothing was in flight; only an
// accepted cancel is journaled.
func (e *Engine) CancelMerge(ctx context.Context) bool {
	phase := e.pipeline.phase
	if !e.pipeline.cancel() {
		return false
	}
	e.record(ctx, ir.EntryCancel, map[string]any{"phase": phase.String()})
	e.startSettle(false)
	return true
}

// Close cancels every transition and resets the pipeline. Further commands
// fail with CodeClosed.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.pipeline.cancel()
	if c, ok := e.sched.(anim.Canceller); ok {
		c.CancelAll()
	}
	e.settle = nil
	e.settleScan = false
	e.closed = true
	e.logger.Info("engine closed", "len", e.queue.Len())
	return nil
}

// Idle reports whether no settle or merge is pending.
func (e *Engine) Idle() bool {
	return e.settle == nil && !e.pipeline.busy()
}

// State returns the engine state.
func (e *Engine) State() State {
	switch e.pipeline.phase {
	case PhaseScanning:
		return StateScanning
	case PhaseLifting, PhaseConverging:
		return StateAnimating
	case PhaseCommitting:
		return StateCommitting
	}
	if e.settle != nil {
		return StateSettling
	}
	return StateIdle
}

// Phase returns the pipeline phase.
func (e *Engine) Phase() Phase {
	return e.pipeline.phase
}

// Queue exposes the queue for read access.
func (e *Engine) Queue() *queue.Queue {
	return e.queue
}

// Elapsed returns the total time passed to Update.
func (e *Engine) Elapsed() time.Duration {
	return e.elapsed
}

// SessionID returns the journal session id.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Recipes returns every recipe with its current unlock state.
func (e *Engine) Recipes() []ir.Recipe {
	return e.recipes.All()
}

// Snapshot is a read-only view of the engine.
type Snapshot struct {
	Types   []ir.TypeID      `json:"types"`
	Tokens  []ir.Token       `json:"tokens"`
	State   State            `json:"state"`
	Pending *ir.PendingMerge `json:"pending,omitempty"`
	Recipes []ir.RecipeMatch `json:"recipes"`
	Hash    string           `json:"hash"`
}

// Snapshot returns the current queue, state and recipe availability.
func (e *Engine) Snapshot() Snapshot {
	types := e.queue.Types()
	s := Snapshot{
		Types:   types,
		Tokens:  e.queue.Tokens(),
		State:   e.State(),
		Recipes: append([]ir.RecipeMatch(nil), e.availability...),
		Hash:    ir.QueueHash(types),
	}
	if p := e.pipeline.pending; p != nil {
		cp := *p
		cp.SourceTokenIDs = append([]ir.TokenID(nil), p.SourceTokenIDs...)
		s.Pending = &cp
	}
	return s
}

// RecordSnapshot journals the current snapshot and returns it.
func (e *Engine) RecordSnapshot(ctx context.Context) Snapshot {
	s := e.Snapshot()
	e.record(ctx, ir.EntrySnapshot, map[string]any{
		"types": ir.TypeList(s.Types),
		"hash":  s.Hash,
		"state": string(s.State),
	})
	return s
}

func (e *Engine) ready() error {
	if e.closed {
		return newError(CodeClosed, "engine is closed")
	}
	return nil
}

func (e *Engine) cancelTransitions(n *pool.Node) {
	if c, ok := e.sched.(anim.Canceller); ok {
		c.Cancel(n)
	}
}

func (e *Engine) startSettle(scan bool) {
	e.settle = e.queue.Relayout(e.sched, e.cfg.Timing.Reposition)
	e.settleScan = e.settleScan || scan
}

// pump runs settle completions and pipeline steps until neither progresses.
func (e *Engine) pump(ctx context.Context) {
	for {
		progressed := false
		if e.settle != nil && e.settle.Done() {
			scan := e.settleScan
			e.settle = nil
			e.settleScan = false
			e.refreshAvailability()
			if scan {
				e.pipeline.trigger(ctx)
			}
			progressed = true
		}
		if e.pipeline.step(ctx) {
			progressed = true
		}
		if !progressed || e.closed {
			return
		}
	}
}

// refreshAvailability recomputes recipe matches and pushes changes.
func (e *Engine) refreshAvailability() {
	matches := findRecipeMatches(e.queue.Types(), e.recipes.All())
	for i, m := range matches {
		if i < len(e.availability) && e.availability[i] == m {
			continue
		}
		e.observer.RecipeAvailability(m)
	}
	e.availability = matches
}

func (e *Engine) announceUnlock(r ir.Recipe) {
	e.logger.Info("recipe unlocked", "recipe_id", r.ID, "wave", r.UnlockThreshold)
	if r.UnlockMessage != "" {
		e.notifier.ShowMessage(r.UnlockMessage, e.cfg.Timing.Message)
	}
}

func (e *Engine) mergeCommitted(ctx context.Context, m ir.PendingMerge) {
	e.observer.MergeCommitted(m)

	kind := ir.EntryMerge
	if m.IsRecipe {
		kind = ir.EntryRecipe
	}
	sources := make([]any, len(m.SourceTokenIDs))
	for i, id := range m.SourceTokenIDs {
		sources[i] = uint64(id)
	}
	e.record(ctx, kind, map[string]any{
		"rule_id": m.RuleID,
		"result":  string(m.Result),
		"output":  m.OutputCount,
		"index":   m.InsertionIndex,
		"sources": sources,
	})
}

func (e *Engine) name(t ir.TypeID) string {
	if n, ok := e.progression.(Namer); ok {
		return n.Name(t)
	}
	if u, ok := e.cfg.Unit(t); ok {
		return u.DisplayName()
	}
	return string(t)
}

// record writes one journal entry. Journal failures are logged and the
// engine continues.
func (e *Engine) record(ctx context.Context, kind ir.EntryKind, payload map[string]any) {
	if e.journal == nil {
		return
	}
	seq := e.clock.Next()
	hash, err := ir.EntryHash(e.sessionID, seq, kind, payload)
	if err != nil {
		e.logger.Error("journal entry hash failed", "kind", string(kind), "seq", seq, "error", err)
		return
	}
	entry := ir.JournalEntry{
		SessionID: e.sessionID,
		Seq:       seq,
		Kind:      kind,
		Payload:   payload,
		Hash:      hash,
	}
	if err := e.journal.Record(ctx, entry); err != nil {
		e.logger.Error("journal write failed",
			"kind", string(kind),
			"seq", seq,
			"session", e.sessionID,
			"error", err,
		)
	}
}
