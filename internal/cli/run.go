package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/mergeq/internal/compiler"
	"github.com/roach88/mergeq/internal/engine"
	"github.com/roach88/mergeq/internal/harness"
	"github.com/roach88/mergeq/internal/ir"
	"github.com/roach88/mergeq/internal/store"
)

// MaxSettleFrames bounds the final settle of a run session.
const MaxSettleFrames = 10000

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Session  string
	Label    string
	Cascade  int
	Frame    time.Duration

	// SessionGenerator overrides the session id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	SessionGenerator engine.SessionIDGenerator
}

// RunSummary is the JSON payload printed when a run session ends.
type RunSummary struct {
	Session    string          `json:"session"`
	ConfigHash string          `json:"config_hash"`
	Commands   int             `json:"commands"`
	Failed     int             `json:"failed"`
	Final      engine.Snapshot `json:"final"`
}

// ScenarioSummary is the JSON payload of a recorded scenario run.
type ScenarioSummary struct {
	Scenario string          `json:"scenario"`
	Session  string          `json:"session"`
	Pass     bool            `json:"pass"`
	Errors   []string        `json:"errors,omitempty"`
	Final    engine.Snapshot `json:"final"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <config | scenario.yaml>",
		Short: "Run a merge session and journal it",
		Long: `Run a merge session and record it in a SQLite journal.

Given a scenario file, the scenario is executed and journaled under its
session id. Given a CUE config (file or directory), an engine is started
and commands are read from stdin, one per line:

  purchase <type>            consume <token-id>
  unlock <recipe>            unlock-wave <wave>
  activate <recipe> [start]  cancel
  snapshot                   settle
  quit

The engine ticks every --frame. On end of input or Ctrl-C the session is
settled and a final snapshot is journaled, so it can be replayed.

Examples:
  mergeq run --db ./mergeq.db ./config < moves.txt
  mergeq run --db ./mergeq.db ./scenarios/fox_triple.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if isScenarioFile(args[0]) {
				return runScenario(opts, args[0], cmd)
			}
			return runEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (default: new UUIDv7, or the scenario's)")
	cmd.Flags().StringVar(&opts.Label, "label", "", "session label")
	cmd.Flags().IntVar(&opts.Cascade, "cascade", 0, "re-scan after each merge, up to this many merges per chain (0 disables)")
	cmd.Flags().DurationVar(&opts.Frame, "frame", engine.DefaultFrame, "engine frame interval")

	return cmd
}

func isScenarioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		var nf *harness.ScenarioNotFoundError
		if errors.As(err, &nf) || errors.Is(err, os.ErrNotExist) {
			return formatter.fail(ExitCommandError, ErrCodeNotFound, err.Error())
		}
		return formatter.fail(ExitCommandError, ErrCodeLoadFailed, err.Error())
	}
	if opts.Session != "" {
		scenario.Session = opts.Session
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStoreFailed, fmt.Sprintf("opening database: %v", err))
	}
	defer st.Close()

	result, err := harness.RunInto(ctx, scenario, st)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}

	summary := ScenarioSummary{
		Scenario: scenario.Name,
		Session:  result.Session,
		Pass:     result.Pass,
		Errors:   result.Errors,
		Final:    result.Final,
	}
	if formatter.Format == "json" {
		if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		mark := "✓"
		if !result.Pass {
			mark = "✗"
		}
		fmt.Fprintf(formatter.Writer, "%s %s recorded as session %s\n", mark, scenario.Name, result.Session)
		fmt.Fprintf(formatter.Writer, "  %s\n", formatSnapshot(result.Final))
		for _, e := range result.Errors {
			fmt.Fprintf(formatter.Writer, "  %s\n", e)
		}
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func runEngine(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))

	loaded, err := LoadConfig(path)
	if err != nil {
		code, msg := describeLoadError(err)
		return formatter.fail(ExitCommandError, code, msg)
	}
	if errs := compiler.Validate(loaded.Config); len(errs) > 0 {
		_ = formatter.Error(errs[0].Code, errs[0].Error(), errs)
		return NewExitError(ExitFailure, fmt.Sprintf("config invalid with %d error(s)", len(errs)))
	}
	logger.Info("config loaded", "files", len(loaded.Files), "config_hash", loaded.Hash)

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStoreFailed, fmt.Sprintf("opening database: %v", err))
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	parentCtx := commandContext(cmd)
	sessionID, err := openSession(parentCtx, st, opts, loaded.Hash)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStoreFailed, err.Error())
	}

	out := newConsole(formatter.Writer, opts.Format)
	engineOpts := []engine.EngineOption{engine.WithLogger(logger), engine.WithSession(sessionID)}
	if opts.Cascade > 0 {
		engineOpts = append(engineOpts, engine.WithCascade(opts.Cascade))
	}
	eng, err := engine.New(loaded.Config, engine.Deps{
		Notifier: out,
		Rewards:  out,
		Journal:  st,
	}, engineOpts...)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}
	defer eng.Close()

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	runner := engine.NewRunner(eng, opts.Frame)
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	logger.Info("session started", "session", sessionID, "db", opts.Database)
	formatter.VerboseLog("session %s started; reading commands", sessionID)

	summary := RunSummary{Session: sessionID, ConfigHash: loaded.Hash}
	readConsole(ctx, cmd.InOrStdin(), runner, opts.Frame, out, &summary)

	runner.Stop()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	// The loop has exited; the engine is ours again. Finish in-flight work
	// even after a signal so the journal ends on a settled snapshot.
	finalCtx := context.WithoutCancel(ctx)
	if err := eng.Settle(finalCtx, opts.Frame, MaxSettleFrames); err != nil {
		logger.Warn("session did not settle", "session", sessionID, "error", err)
	}
	summary.Final = eng.RecordSnapshot(finalCtx)
	logger.Info("session stopped", "session", sessionID, "hash", summary.Final.Hash)

	if formatter.Format == "json" {
		return formatter.Success(summary)
	}
	fmt.Fprintf(formatter.Writer, "session %s: %d command(s), %d refused\n", sessionID, summary.Commands, summary.Failed)
	fmt.Fprintf(formatter.Writer, "  %s\n", formatSnapshot(summary.Final))
	return nil
}

// openSession registers a new session. An explicit id must not already
// have journal entries.
func openSession(ctx context.Context, st *store.Store, opts *RunOptions, configHash string) (string, error) {
	id := opts.Session
	if id == "" {
		gen := opts.SessionGenerator
		if gen == nil {
			gen = engine.UUIDv7Generator{}
		}
		id = gen.Generate()
	}

	last, err := st.LastSeq(ctx, id)
	if err != nil {
		return "", fmt.Errorf("reading session %s: %w", id, err)
	}
	if last > 0 {
		return "", fmt.Errorf("session %s already recorded", id)
	}
	if err := st.WriteSession(ctx, ir.Session{ID: id, ConfigHash: configHash, Label: opts.Label}); err != nil {
		return "", fmt.Errorf("writing session %s: %w", id, err)
	}
	return id, nil
}

// readConsole feeds input lines to the runner until end of input, a quit
// line or cancellation.
func readConsole(ctx context.Context, in io.Reader, runner *engine.Runner, frame time.Duration, out *console, summary *RunSummary) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var line string
		select {
		case <-ctx.Done():
			return
		case l, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(l)
		}

		parsed, err := parseLine(line)
		if errors.Is(err, errEmptyLine) {
			continue
		}
		if err != nil {
			out.fail(line, err)
			continue
		}

		switch parsed.action {
		case actionQuit:
			return
		case actionSnapshot:
			snap, err := runner.Snapshot(ctx)
			if err != nil {
				out.fail(line, err)
				continue
			}
			out.emit(ConsoleEvent{Event: "snapshot", Input: line, Snapshot: &snap})
		case actionSettle:
			if err := waitIdle(ctx, runner, frame); err != nil {
				out.fail(line, err)
				continue
			}
			out.emit(ConsoleEvent{Event: "ok", Input: line})
		case actionCommand:
			c := parsed.cmd
			if parsed.autoStart {
				snap, err := runner.Snapshot(ctx)
				if err != nil {
					out.fail(line, err)
					continue
				}
				c.Start = startFor(snap, c.Recipe)
			}
			summary.Commands++
			if err := runner.Do(ctx, c); err != nil {
				summary.Failed++
				out.fail(line, err)
				continue
			}
			out.emit(ConsoleEvent{Event: "ok", Input: line})
		}
	}
}

// waitIdle polls the runner once per frame until the engine is idle.
func waitIdle(ctx context.Context, runner *engine.Runner, frame time.Duration) error {
	if frame <= 0 {
		frame = engine.DefaultFrame
	}
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	for i := 0; i < MaxSettleFrames; i++ {
		snap, err := runner.Snapshot(ctx)
		if err != nil {
			return err
		}
		if snap.State == engine.StateIdle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return fmt.Errorf("engine not idle after %d frames", MaxSettleFrames)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
