package ir

// EntryKind classifies a journal entry.
type EntryKind string

// Command entries record external inputs; effect entries record what the engine did.
// Replay re-executes commands only.
const (
	EntryPurchase EntryKind = "purchase"
	EntryConsume  EntryKind = "consume"
	EntryUnlock   EntryKind = "unlock"
	EntryActivate EntryKind = "activate"
	EntryAdvance  EntryKind = "advance"
	EntryCancel   EntryKind = "cancel"

	EntryMerge    EntryKind = "merge"
	EntryRecipe   EntryKind = "recipe"
	EntrySnapshot EntryKind = "snapshot"
)

// IsCommand reports whether entries of this kind are replayable inputs.
func (k EntryKind) IsCommand() bool {
	switch k {
	case EntryPurchase, EntryConsume, EntryUnlock, EntryActivate, EntryAdvance, EntryCancel:
		return true
	}
	return false
}

// JournalEntry is one record in a session's merge journal.
// Payload must hold canonical-JSON-safe values only.
type JournalEntry struct {
	SessionID string         `json:"session_id"`
	Seq       int64          `json:"seq"`
	Kind      EntryKind      `json:"kind"`
	Payload   map[string]any `json:"payload"`
	Hash      string         `json:"hash,omitempty"`
}

// Session identifies one engine run recorded in the journal.
type Session struct {
	ID         string `json:"id"`
	ConfigHash string `json:"config_hash"`
	Label      string `json:"label,omitempty"`
	CreatedSeq int64  `json:"created_seq"`
}
