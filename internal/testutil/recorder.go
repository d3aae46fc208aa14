package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/mergeq/internal/ir"
)

// Message is one notifier call.
type Message struct {
	Text     string
	Duration time.Duration
}

// Recorder captures everything the engine reports: notifier messages,
// reward units, observer events and journal entries.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Recorder struct {
	mu           sync.Mutex
	messages     []Message
	rewards      []ir.TypeID
	merges       []ir.PendingMerge
	availability []ir.RecipeMatch
	activated    []ir.TokenID
	entries      []ir.JournalEntry
	journalErr   error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ShowMessage records a notifier message.
func (r *Recorder) ShowMessage(text string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Text: text, Duration: d})
}

// Emit records a reward unit.
func (r *Recorder) Emit(t ir.TypeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rewards = append(r.rewards, t)
}

// MergeCommitted records a committed merge.
func (r *Recorder) MergeCommitted(m ir.PendingMerge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.merges = append(r.merges, m)
}

// RecipeAvailability records an availability change.
func (r *Recorder) RecipeAvailability(m ir.RecipeMatch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.availability = append(r.availability, m)
}

// TokenActivated records a consumed token.
func (r *Recorder) TokenActivated(id ir.TokenID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activated = append(r.activated, id)
}

// Record stores a journal entry, or fails with the error set by FailJournal.
func (r *Recorder) Record(_ context.Context, e ir.JournalEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.journalErr != nil {
		return r.journalErr
	}
	r.entries = append(r.entries, e)
	return nil
}

// FailJournal makes subsequent Record calls return err. Nil restores success.
func (r *Recorder) FailJournal(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.journalErr = err
}

// Messages returns recorded message texts.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.Text
	}
	return out
}

// MessageLog returns recorded messages with durations.
func (r *Recorder) MessageLog() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Rewards returns recorded reward units in emission order.
func (r *Recorder) Rewards() []ir.TypeID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.TypeID(nil), r.rewards...)
}

// Merges returns committed merges in order.
func (r *Recorder) Merges() []ir.PendingMerge {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.PendingMerge(nil), r.merges...)
}

// Availability returns availability changes in order.
func (r *Recorder) Availability() []ir.RecipeMatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.RecipeMatch(nil), r.availability...)
}

// Activated returns consumed token ids in order.
func (r *Recorder) Activated() []ir.TokenID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.TokenID(nil), r.activated...)
}

// Entries returns journal entries in order.
func (r *Recorder) Entries() []ir.JournalEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.JournalEntry(nil), r.entries...)
}

// Reset clears everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
	r.rewards = nil
	r.merges = nil
	r.availability = nil
	r.activated = nil
	r.entries = nil
}
