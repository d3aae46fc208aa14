package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainConfig = "mergeq/config/v1"
	DomainEntry  = "mergeq/entry/v1"
	DomainQueue  = "mergeq/queue/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ConfigHash identifies a configuration as loaded, including initial unlock flags.
func ConfigHash(c *Config) (string, error) {
	canonical, err := MarshalConfig(c)
	if err != nil {
		return "", fmt.Errorf("ConfigHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainConfig, canonical), nil
}

// EntryHash computes the content hash of a journal entry.
func EntryHash(sessionID string, seq int64, kind EntryKind, payload map[string]any) (string, error) {
	obj := map[string]any{
		"session_id": sessionID,
		"seq":        seq,
		"kind":       string(kind),
		"payload":    payload,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EntryHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEntry, canonical), nil
}

// QueueHash fingerprints an ordered type sequence.
func QueueHash(types []TypeID) string {
	// typeList only produces strings, which always marshal.
	canonical, _ := MarshalCanonical(typeList(types))
	return hashWithDomain(DomainQueue, canonical)
}
