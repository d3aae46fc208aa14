package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/mergeq/internal/compiler"
	"github.com/roach88/mergeq/internal/engine"
	"github.com/roach88/mergeq/internal/harness"
	"github.com/roach88/mergeq/internal/ir"
	"github.com/roach88/mergeq/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - every matching session when empty
	Scenario string // take config and cascade from a scenario file
	Cascade  int
	Frame    time.Duration
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	Session       string               `json:"session"`
	Commands      int                  `json:"commands"`
	Effects       int                  `json:"effects"`
	Expected      string               `json:"expected_hash,omitempty"`
	Actual        string               `json:"actual_hash,omitempty"`
	FinalTypes    []ir.TypeID          `json:"final_types,omitempty"`
	Deterministic bool                 `json:"deterministic"`
	Tampered      []store.HashMismatch `json:"tampered,omitempty"`
	Skipped       string               `json:"skipped,omitempty"`
	Error         string               `json:"error,omitempty"`
}

// ok reports whether the session replayed cleanly or was skipped.
func (r ReplaySessionResult) ok() bool {
	if r.Skipped != "" {
		return true
	}
	return r.Error == "" && r.Deterministic && len(r.Tampered) == 0
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	ConfigHash       string                `json:"config_hash"`
	Sessions         []ReplaySessionResult `json:"sessions"`
	Replayed         int                   `json:"replayed"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [config]",
		Short: "Replay recorded sessions and verify determinism",
		Long: `Replay recorded sessions on a fresh engine and verify determinism.

Every command entry of a session is re-executed in seq order, including the
recorded frame steps, and the final queue is compared with the session's
last snapshot. Entry hashes are recomputed to detect a tampered journal.

The config comes from a CUE path or from --scenario. Its hash must equal the
one the session was recorded with; without --session, sessions recorded
with another config are skipped. Merge cascading is not journaled, so pass
the same --cascade the session ran with.

Exit codes:
  0 - All sessions replayed deterministically
  1 - A replay diverged, failed or found tampered entries
  2 - Command error (database not found, unknown session, config drift)

Examples:
  mergeq replay --db ./mergeq.db ./config
  mergeq replay --db ./mergeq.db --session fox-triple ./config
  mergeq replay --db ./mergeq.db --scenario ./scenarios/cascade_on.yaml`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay only this session")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "scenario file providing config and cascade")
	cmd.Flags().IntVar(&opts.Cascade, "cascade", 0, "cascade steps the sessions ran with (0 disables)")
	cmd.Flags().DurationVar(&opts.Frame, "frame", engine.DefaultFrame, "step for settling after the last command")

	return cmd
}

// replayConfig resolves the config and cascade setting to replay with.
func replayConfig(opts *ReplayOptions, args []string) (*ir.Config, int, error) {
	switch {
	case opts.Scenario != "" && len(args) > 0:
		return nil, 0, &LoadError{Code: ErrCodeGeneric, Message: "give either a config path or --scenario, not both"}
	case opts.Scenario != "":
		scenario, err := harness.LoadScenario(opts.Scenario)
		if err != nil {
			return nil, 0, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
		}
		cfg, err := harness.LoadConfig(scenario)
		if err != nil {
			return nil, 0, &LoadError{Code: ErrCodeCompileFailed, Message: err.Error()}
		}
		return cfg, scenario.Cascade, nil
	case len(args) == 1:
		loaded, err := LoadConfig(args[0])
		if err != nil {
			return nil, 0, err
		}
		if errs := compiler.Validate(loaded.Config); len(errs) > 0 {
			return nil, 0, &LoadError{Code: errs[0].Code, Message: errs[0].Error()}
		}
		return loaded.Config, opts.Cascade, nil
	}
	return nil, 0, &LoadError{Code: ErrCodeGeneric, Message: "a config path or --scenario is required"}
}

func runReplay(opts *ReplayOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	cfg, cascade, err := replayConfig(opts, args)
	if err != nil {
		code, msg := describeLoadError(err)
		return formatter.fail(ExitCommandError, code, msg)
	}
	configHash, err := ir.ConfigHash(cfg)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStoreFailed, fmt.Sprintf("opening database: %v", err))
	}
	defer st.Close()

	var sessions []ir.Session
	if opts.Session != "" {
		sess, err := st.ReadSession(ctx, opts.Session)
		if errors.Is(err, store.ErrNotFound) {
			return formatter.fail(ExitCommandError, ErrCodeNoSession, fmt.Sprintf("session %s not found", opts.Session))
		}
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStoreFailed, err.Error())
		}
		if sess.ConfigHash != configHash {
			return formatter.fail(ExitCommandError, ErrCodeConfigDrift,
				fmt.Sprintf("session %s was recorded with config %s, replaying with %s",
					sess.ID, shortHash(sess.ConfigHash), shortHash(configHash)))
		}
		sessions = []ir.Session{sess}
	} else {
		sessions, err = st.ListSessions(ctx)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStoreFailed, err.Error())
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		logger = slog.New(slog.NewTextHandler(formatter.GetErrWriter(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	result := ReplayResult{ConfigHash: configHash, Sessions: []ReplaySessionResult{}, AllDeterministic: true}
	for _, sess := range sessions {
		var r ReplaySessionResult
		if sess.ConfigHash != configHash {
			r = ReplaySessionResult{Session: sess.ID, Skipped: "recorded with another config"}
		} else {
			r = replaySession(ctx, st, cfg, sess.ID, cascade, opts.Frame, logger)
			result.Replayed++
		}
		formatter.VerboseLog("session %s: deterministic=%v", r.Session, r.Deterministic)
		if !r.ok() {
			result.AllDeterministic = false
		}
		result.Sessions = append(result.Sessions, r)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		printReplay(formatter, result)
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// replaySession re-executes one session on a fresh, unjournaled engine.
func replaySession(ctx context.Context, st *store.Store, cfg *ir.Config, session string, cascade int, step time.Duration, logger *slog.Logger) ReplaySessionResult {
	r := ReplaySessionResult{Session: session}

	tampered, err := st.Verify(ctx, session)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Tampered = tampered

	entries, err := st.ReadEntries(ctx, session)
	if err != nil {
		r.Error = err.Error()
		return r
	}

	engineOpts := []engine.EngineOption{engine.WithLogger(logger), engine.WithSession(session)}
	if cascade > 0 {
		engineOpts = append(engineOpts, engine.WithCascade(cascade))
	}
	e, err := engine.New(cfg, engine.Deps{}, engineOpts...)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	defer e.Close()

	res, err := engine.Replay(ctx, e, entries, step, MaxSettleFrames)
	r.Commands = res.Applied
	r.Effects = res.Skipped
	r.Expected = res.Expected
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Actual = res.Snapshot.Hash
	r.FinalTypes = res.Snapshot.Types
	r.Deterministic = res.Matches()
	return r
}

func printReplay(f *OutputFormatter, result ReplayResult) {
	w := f.Writer
	for _, r := range result.Sessions {
		switch {
		case r.Skipped != "":
			fmt.Fprintf(w, "- %s skipped: %s\n", r.Session, r.Skipped)
		case r.ok():
			fmt.Fprintf(w, "✓ %s: %d commands, final [%s]\n", r.Session, r.Commands, joinTypes(r.FinalTypes))
		default:
			fmt.Fprintf(w, "✗ %s\n", r.Session)
			if r.Error != "" {
				fmt.Fprintf(w, "    error: %s\n", r.Error)
			}
			if r.Error == "" && !r.Deterministic {
				fmt.Fprintf(w, "    expected %s, replayed %s\n", shortHash(r.Expected), shortHash(r.Actual))
			}
			for _, m := range r.Tampered {
				fmt.Fprintf(w, "    seq %d: stored hash %s, content hashes to %s\n", m.Seq, shortHash(m.Stored), shortHash(m.Computed))
			}
		}
	}
	if result.AllDeterministic {
		fmt.Fprintf(w, "\n✓ %d session(s) replayed deterministically\n", result.Replayed)
		return
	}
	fmt.Fprintln(w, "\n✗ Replay verification failed")
}
