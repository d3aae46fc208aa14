package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/mergeq/internal/ir"
	"github.com/roach88/mergeq/internal/queryir"
	"github.com/roach88/mergeq/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Kinds    []string
	Rule     string
	From     int64
	To       int64
	Limit    int
}

// TraceEntry is one journal entry in the trace timeline.
type TraceEntry struct {
	Seq     int64          `json:"seq"`
	Kind    ir.EntryKind   `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
}

// TraceStats summarizes the whole session, independent of filters.
type TraceStats struct {
	Entries   int    `json:"entries"`
	Commands  int    `json:"commands"`
	Merges    int    `json:"merges"`
	Recipes   int    `json:"recipes"`
	LastSeq   int64  `json:"last_seq"`
	FinalHash string `json:"final_hash,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session    string       `json:"session"`
	Label      string       `json:"label,omitempty"`
	ConfigHash string       `json:"config_hash"`
	Timeline   []TraceEntry `json:"timeline"`
	Stats      TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journal of a recorded session",
		Long: `Show the journal timeline of a recorded session.

Commands (purchase, consume, unlock, activate) are listed with the effects
they caused (merge, recipe, snapshot). Advance entries are hidden unless
requested with --kind advance. Without --session, recorded sessions are listed.

Examples:
  mergeq trace --db ./mergeq.db
  mergeq trace --db ./mergeq.db --session fox-triple
  mergeq trace --db ./mergeq.db --session fox-triple --kind merge --rule four-chain
  mergeq trace --db ./mergeq.db --session fox-triple --from 10 --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to trace")
	cmd.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "only entries of these kinds")
	cmd.Flags().StringVar(&opts.Rule, "rule", "", "only entries whose rule_id matches")
	cmd.Flags().Int64Var(&opts.From, "from", 0, "first seq to show")
	cmd.Flags().Int64Var(&opts.To, "to", 0, "last seq to show")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum entries to show (0 = all)")

	return cmd
}

// traceKinds are the kinds shown when --kind is not given.
var traceKinds = []ir.EntryKind{
	ir.EntryPurchase, ir.EntryConsume, ir.EntryUnlock, ir.EntryActivate,
	ir.EntryCancel, ir.EntryMerge, ir.EntryRecipe, ir.EntrySnapshot,
}

// buildTraceQuery turns trace flags into a journal query.
func buildTraceQuery(opts *TraceOptions) (queryir.Select, error) {
	kinds := traceKinds
	if len(opts.Kinds) > 0 {
		kinds = make([]ir.EntryKind, 0, len(opts.Kinds))
		for _, k := range opts.Kinds {
			kind := ir.EntryKind(strings.ToLower(strings.TrimSpace(k)))
			if !knownKind(kind) {
				return queryir.Select{}, fmt.Errorf("unknown entry kind %q", k)
			}
			kinds = append(kinds, kind)
		}
	}

	var rule queryir.Predicate
	if opts.Rule != "" {
		rule = &queryir.PayloadEquals{Path: "rule_id", Value: opts.Rule}
	}
	var seq queryir.Predicate
	if opts.From != 0 || opts.To != 0 {
		seq = &queryir.SeqRange{From: opts.From, To: opts.To}
	}

	q := queryir.Select{
		Filter: queryir.Where(
			&queryir.Equals{Field: queryir.FieldSession, Value: opts.Session},
			&queryir.KindIn{Kinds: kinds},
			rule,
			seq,
		),
		Limit: opts.Limit,
	}
	return q, queryir.Validate(q)
}

func knownKind(k ir.EntryKind) bool {
	return k.IsCommand() || k == ir.EntryMerge || k == ir.EntryRecipe || k == ir.EntrySnapshot
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStoreFailed, fmt.Sprintf("opening database: %v", err))
	}
	defer st.Close()

	if opts.Session == "" {
		return listSessions(formatter, st, cmd)
	}

	q, err := buildTraceQuery(opts)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}

	state, err := st.GetSessionState(ctx, opts.Session)
	if errors.Is(err, store.ErrNotFound) {
		return formatter.fail(ExitCommandError, ErrCodeNoSession, fmt.Sprintf("session %s not found", opts.Session))
	}
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStoreFailed, err.Error())
	}

	entries, err := st.ReadEntriesWhere(ctx, q)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStoreFailed, err.Error())
	}
	formatter.VerboseLog("%d of %d entries match", len(entries), len(state.Entries))

	result := TraceResult{
		Session:    state.Session.ID,
		Label:      state.Session.Label,
		ConfigHash: state.Session.ConfigHash,
		Timeline:   make([]TraceEntry, len(entries)),
		Stats: TraceStats{
			Entries:   len(state.Entries),
			Commands:  state.Commands,
			Merges:    state.Merges,
			Recipes:   state.Recipes,
			LastSeq:   state.LastSeq,
			FinalHash: state.FinalHash,
		},
	}
	for i, e := range entries {
		result.Timeline[i] = TraceEntry{Seq: e.Seq, Kind: e.Kind, Payload: e.Payload}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	printTrace(formatter, result)
	return nil
}

func listSessions(formatter *OutputFormatter, st *store.Store, cmd *cobra.Command) error {
	sessions, err := st.ListSessions(commandContext(cmd))
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStoreFailed, err.Error())
	}
	if formatter.Format == "json" {
		return formatter.Success(sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(formatter.Writer, "No sessions recorded")
		return nil
	}
	for _, s := range sessions {
		if s.Label != "" {
			fmt.Fprintf(formatter.Writer, "%s  %s\n", s.ID, s.Label)
			continue
		}
		fmt.Fprintln(formatter.Writer, s.ID)
	}
	return nil
}

func printTrace(f *OutputFormatter, r TraceResult) {
	w := f.Writer
	fmt.Fprintf(w, "Session: %s", r.Session)
	if r.Label != "" {
		fmt.Fprintf(w, " (%s)", r.Label)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Config:  %s\n\n", shortHash(r.ConfigHash))

	if len(r.Timeline) == 0 {
		fmt.Fprintln(w, "No matching entries")
	}
	for _, e := range r.Timeline {
		marker := " "
		if e.Kind.IsCommand() {
			marker = ">"
		}
		fmt.Fprintf(w, "%5d %s %-8s %s\n", e.Seq, marker, e.Kind, formatPayload(e.Payload))
	}

	s := r.Stats
	fmt.Fprintf(w, "\n%d entries, %d commands, %d merges, %d recipes", s.Entries, s.Commands, s.Merges, s.Recipes)
	if s.FinalHash != "" {
		fmt.Fprintf(w, ", final %s", shortHash(s.FinalHash))
	}
	fmt.Fprintln(w)
}

// formatPayload renders a payload as sorted key=value pairs.
func formatPayload(p map[string]any) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, p[k])
	}
	return strings.Join(parts, " ")
}
