package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const keySeparator = "\x1f"

// Key hashes normalized parts into a fixed-length cache key. Parts are trimmed, inner
// whitespace is collapsed and letters are lower-cased, so cosmetic edits to a dilemma hit
// the same entry.
func Key(parts ...string) string {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = normalize(p)
	}
	sum := sha256.Sum256([]byte(strings.Join(normalized, keySeparator)))
	return hex.EncodeToString(sum[:])
}

// DecisionKey is the key of an analysis result for a dilemma and its ordered criteria. Each
// criterion part should carry everything the scoring prompt sees about it.
func DecisionKey(dilemma string, criteria []string) string {
	parts := make([]string, 0, len(criteria)+2)
	parts = append(parts, "decision", dilemma)
	parts = append(parts, criteria...)
	return Key(parts...)
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
