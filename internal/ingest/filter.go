package ingest

import (
	"strings"

	"github.com/orsinium-labs/stopwords"
)

var english = stopwords.MustGet("en")

// isLowContent reports whether text carries no substantive content: empty,
// punctuation-only, or built entirely from stopwords ("the", "and", "of",
// a stray markdown rule like "---"). Such fragments make useless
// observations and are dropped before they ever reach dedup/embedding.
func isLowContent(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return true
	}
	for _, f := range fields {
		trimmed := strings.Trim(f, ".,;:!?\"'()[]{}-*_#>")
		if trimmed == "" {
			continue
		}
		if !english.Contains(strings.ToLower(trimmed)) {
			return false
		}
	}
	return true
}
