package ir

// Version constants for the journal schema and engine.
const (
	// JournalVersion is the journal payload schema version.
	JournalVersion = "1"

	// EngineVersion is the mergeq engine version.
	EngineVersion = "0.1.0"
)
