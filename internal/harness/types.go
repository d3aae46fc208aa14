package harness

import (
	"github.com/roach88/mergeq/internal/engine"
	"github.com/roach88/mergeq/internal/ir"
)

// TraceEvent is one journal entry as seen by assertions and golden files.
type TraceEvent struct {
	Seq     int64          `json:"seq"`
	Kind    ir.EntryKind   `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
}

// StepOutcome records what one setup or flow step returned.
type StepOutcome struct {
	Step   string `json:"step"`
	Invoke string `json:"invoke"`
	Case   string `json:"case"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause, assertion and invariant held.
	Pass bool `json:"pass"`

	// Session is the journal session id the run recorded under.
	Session string `json:"session"`

	// Trace holds the journal entries in seq order, advance entries excluded.
	Trace []TraceEvent `json:"trace"`

	// Steps holds one outcome per executed step.
	Steps []StepOutcome `json:"steps"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the engine snapshot after the last step.
	Final engine.Snapshot `json:"final"`

	// Messages are the notifier texts in display order.
	Messages []string `json:"messages,omitempty"`

	// Rewards are the reward units in emission order.
	Rewards []ir.TypeID `json:"rewards,omitempty"`

	// Merges are the committed merges in order, recipes included.
	Merges []ir.PendingMerge `json:"merges,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Steps:  []StepOutcome{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
