package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/mergeq/internal/compiler"
	"github.com/roach88/mergeq/internal/engine"
	"github.com/roach88/mergeq/internal/ir"
	"github.com/roach88/mergeq/internal/queryir"
	"github.com/roach88/mergeq/internal/store"
	"github.com/roach88/mergeq/internal/testutil"
)

const (
	// Frame is the time step used to settle the engine after each step.
	Frame = 16 * time.Millisecond

	// MaxSettleFrames bounds one settle.
	MaxSettleFrames = 10000
)

// caseError is the step outcome for failures that are not engine refusals.
const caseError = "ERROR"

// Harness executes one scenario against one engine.
type Harness struct {
	store    *store.Store
	engine   *engine.Engine
	recorder *testutil.Recorder
	clock    *testutil.FrameClock
	logger   *slog.Logger
	session  string
}

// Run executes a scenario in a fresh in-memory store and returns the result.
//
// A non-nil error means the scenario could not be executed at all (bad
// config, failing setup step). Failed expectations, assertions and
// invariants are reported through Result.Pass and Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	return RunInto(context.Background(), scenario, st)
}

// RunInto executes a scenario, journaling into st.
// Returns an error if st already holds the scenario's session.
//
// Execution flow:
//  1. Load and validate the config
//  2. Create the journal session and the engine
//  3. Execute setup steps, which must succeed
//  4. Execute flow steps with expect validation and invariant checks
//  5. Record the final snapshot and evaluate assertions
func RunInto(ctx context.Context, scenario *Scenario, st *store.Store) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	cfg, err := LoadConfig(scenario)
	if err != nil {
		return nil, err
	}
	configHash, err := ir.ConfigHash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash config: %w", err)
	}

	session := testutil.NewFixedSessionGenerator(scenarioSession(scenario)).Generate()
	last, err := st.LastSeq(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if last > 0 {
		return nil, fmt.Errorf("session %q already recorded", session)
	}
	if err := st.WriteSession(ctx, ir.Session{ID: session, ConfigHash: configHash, Label: scenario.Name}); err != nil {
		return nil, fmt.Errorf("write session: %w", err)
	}

	h := &Harness{
		store:    st,
		recorder: testutil.NewRecorder(),
		clock:    testutil.NewFrameClock(Frame),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		session:  session,
	}

	opts := []engine.EngineOption{
		engine.WithLogger(h.logger),
		engine.WithSession(session),
	}
	if scenario.Cascade > 0 {
		opts = append(opts, engine.WithCascade(scenario.Cascade))
	}
	h.engine, err = engine.New(cfg, engine.Deps{
		Notifier: h.recorder,
		Rewards:  h.recorder,
		Observer: h.recorder,
		Journal:  st,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	defer h.engine.Close()

	result := NewResult()
	result.Session = session

	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	h.executeFlow(ctx, scenario.Flow, result)

	result.Final = h.engine.RecordSnapshot(ctx)
	result.Messages = h.recorder.Messages()
	result.Rewards = h.recorder.Rewards()
	result.Merges = h.recorder.Merges()

	trace, err := ReadTrace(ctx, st, session)
	if err != nil {
		return nil, err
	}
	result.Trace = trace

	actx := &AssertionContext{Engine: h.engine, Result: result}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// LoadConfig compiles and validates the scenario config.
func LoadConfig(scenario *Scenario) (*ir.Config, error) {
	var (
		cfg *ir.Config
		err error
	)
	switch {
	case len(scenario.Specs) > 0:
		cfg, err = compiler.LoadFiles(scenario.Specs...)
	case scenario.Config != "":
		cfg, err = compiler.LoadString(scenario.Name+".cue", scenario.Config)
	default:
		cfg = ir.DefaultConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if errs := compiler.Validate(cfg); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return cfg, nil
}

// ReadTrace reads a session's journal without advance entries.
func ReadTrace(ctx context.Context, st *store.Store, session string) ([]TraceEvent, error) {
	entries, err := st.ReadEntriesWhere(ctx, queryir.Select{
		Filter: queryir.Where(
			&queryir.Equals{Field: queryir.FieldSession, Value: session},
			&queryir.KindIn{Kinds: []ir.EntryKind{
				ir.EntryPurchase, ir.EntryConsume, ir.EntryUnlock, ir.EntryActivate,
				ir.EntryCancel, ir.EntryMerge, ir.EntryRecipe, ir.EntrySnapshot,
			}},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}

	trace := make([]TraceEvent, len(entries))
	for i, e := range entries {
		trace[i] = TraceEvent{Seq: e.Seq, Kind: e.Kind, Payload: e.Payload}
	}
	return trace, nil
}

func scenarioSession(s *Scenario) string {
	if s.Session != "" {
		return s.Session
	}
	return DefaultSession
}

// executeSetup runs all setup steps. Any refusal aborts the scenario.
func (h *Harness) executeSetup(ctx context.Context, setup []ActionStep, result *Result) error {
	for i, step := range setup {
		label := fmt.Sprintf("setup[%d]", i)
		before := h.engine.Queue().Tokens()

		err := h.invoke(ctx, step.Action, step.Args)
		if err == nil {
			err = h.settle(ctx)
		}
		result.Steps = append(result.Steps, StepOutcome{Step: label, Invoke: step.Action, Case: caseOf(err)})
		if err != nil {
			return fmt.Errorf("%s %s: %w", label, step.Action, err)
		}
		h.checkStep(label, before, result)

		h.logger.Info("setup step completed", "step", i, "action", step.Action)
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) {
	for i, step := range flow {
		label := fmt.Sprintf("flow[%d]", i)
		before := h.engine.Queue().Tokens()

		err := h.invoke(ctx, step.Invoke, step.Args)
		actual := caseOf(err)
		result.Steps = append(result.Steps, StepOutcome{Step: label, Invoke: step.Invoke, Case: actual})

		if step.Expect != nil && step.Expect.Case != actual {
			msg := fmt.Sprintf("%s %s: expected case %s, got %s", label, step.Invoke, step.Expect.Case, actual)
			if err != nil && actual == caseError {
				msg += ": " + err.Error()
			}
			result.AddError(msg)
		}

		if step.settles() {
			if err := h.settle(ctx); err != nil {
				result.AddError(fmt.Sprintf("%s: %v", label, err))
			}
		}
		h.checkStep(label, before, result)

		h.logger.Info("flow step completed",
			"step", i,
			"invoke", step.Invoke,
			"case", actual,
			"state", string(h.engine.State()),
		)
	}
}

// invoke executes one step against the engine.
func (h *Harness) invoke(ctx context.Context, invoke string, args map[string]any) error {
	e := h.engine
	switch invoke {
	case InvokePurchase:
		t, err := stringArg(args, "type")
		if err != nil {
			return err
		}
		_, err = e.Purchase(ctx, ir.TypeID(t))
		return err

	case InvokeConsume:
		id, err := h.tokenArg(args)
		if err != nil {
			return err
		}
		return e.Consume(ctx, id)

	case InvokeUnlock:
		if _, ok := args["recipe"]; ok {
			id, err := stringArg(args, "recipe")
			if err != nil {
				return err
			}
			return e.Unlock(ctx, id)
		}
		wave, err := intArg(args, "wave")
		if err != nil {
			return err
		}
		_, err = e.UnlockThrough(ctx, wave)
		return err

	case InvokeActivate:
		id, err := stringArg(args, "recipe")
		if err != nil {
			return err
		}
		_, start := e.IsRecipeCurrentlyMatchable(id)
		if _, ok := args["start"]; ok {
			if start, err = intArg(args, "start"); err != nil {
				return err
			}
		}
		return e.ActivateRecipe(ctx, id, start)

	case InvokeAdvance:
		ms, err := intArg(args, "ms")
		if err != nil {
			return err
		}
		for _, d := range h.clock.Steps(time.Duration(ms) * time.Millisecond) {
			e.Update(ctx, d)
		}
		return nil

	case InvokeSettle:
		return h.settle(ctx)
	}
	return fmt.Errorf("unknown invocation %q", invoke)
}

func (h *Harness) settle(ctx context.Context) error {
	return h.engine.Settle(ctx, h.clock.Frame(), MaxSettleFrames)
}

// tokenArg resolves consume's token: token_id directly, or the token at index.
// An out-of-range index resolves to id 0, which the engine refuses.
func (h *Harness) tokenArg(args map[string]any) (ir.TokenID, error) {
	if _, ok := args["token_id"]; ok {
		id, err := intArg(args, "token_id")
		return ir.TokenID(id), err
	}
	index, err := intArg(args, "index")
	if err != nil {
		return 0, err
	}
	b, ok := h.engine.Queue().At(index)
	if !ok {
		return 0, nil
	}
	return b.Token.ID, nil
}

// checkStep records invariant violations for the step.
func (h *Harness) checkStep(label string, before []ir.Token, result *Result) {
	for _, v := range CheckInvariants(h.engine, before) {
		result.AddError(fmt.Sprintf("%s: invariant violated: %s", label, v))
	}
}

// caseOf maps a step error to its outcome case.
func caseOf(err error) string {
	if err == nil {
		return CaseOK
	}
	if code := engine.CodeOf(err); code != "" {
		return string(code)
	}
	return caseError
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing arg %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("arg %q: want string, got %T", key, v)
	}
	return s, nil
}

var errNotInteger = errors.New("not an integer")

func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing arg %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n == float64(int64(n)) {
			return int(n), nil
		}
	}
	return 0, fmt.Errorf("arg %q: %w: %v", key, errNotInteger, v)
}
