// Package evolution implements status-conflict detection and relation
// evolution timelines over the bitemporal Store (spec.md §4.7).
package evolution

import (
	"regexp"

	"github.com/kittclouds/memoryd/internal/store"
)

// Vocabulary holds the fixed, whole-word, case-insensitive regex lists used
// to classify an observation's text as describing an active or
// discontinued status. Externalized per spec's status-vocabulary Open
// Question rather than hardcoded inline, so a future locale or domain
// vocabulary can be swapped in without touching the detection logic.
type Vocabulary struct {
	Active       []*regexp.Regexp
	Discontinued []*regexp.Regexp
}

func wholeWord(words ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		out = append(out, regexp.MustCompile(`(?i)\b`+w+`\b`))
	}
	return out
}

// DefaultVocabulary is the English active/discontinued vocabulary spec.md
// §4.7 calls for. The lists are fixed by design: status conflict detection
// is meant to be a stable, predictable signal, not a tunable classifier.
var DefaultVocabulary = Vocabulary{
	Active: wholeWord(
		"active", "ongoing", "in progress", "current", "continuing",
		"maintained", "live", "operational",
	),
	Discontinued: wholeWord(
		"discontinued", "deprecated", "retired", "abandoned", "inactive",
		"shut down", "sunset", "ended", "cancelled", "canceled",
	),
}

func (v Vocabulary) matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// Conflict reports a status-conflict finding for one entity: the latest
// observation timestamps (unix micros) matching each vocabulary side.
type Conflict struct {
	EntityID           string
	LatestActiveMicros int64
	LatestDiscMicros   int64
}

// DetectConflicts finds, for each of the given entity ids, the latest live
// observation matching an active pattern and the latest matching a
// discontinued pattern, and flags a conflict iff both exist and the UTC
// year of both latest timestamps is equal.
func DetectConflicts(st *store.SQLiteStore, vocab Vocabulary, entityIDs []string, asOfMicros int64) ([]Conflict, error) {
	var out []Conflict
	for _, id := range entityIDs {
		obs, err := st.ListObservationsForEntityLive(id, asOfMicros)
		if err != nil {
			return nil, err
		}

		var latestActive, latestDisc int64 = -1, -1
		for _, o := range obs {
			if vocab.matchesAny(vocab.Active, o.Text) && o.Validity.TimestampMicros > latestActive {
				latestActive = o.Validity.TimestampMicros
			}
			if vocab.matchesAny(vocab.Discontinued, o.Text) && o.Validity.TimestampMicros > latestDisc {
				latestDisc = o.Validity.TimestampMicros
			}
		}

		if latestActive < 0 || latestDisc < 0 {
			continue
		}
		if sameUTCYear(latestActive, latestDisc) {
			out = append(out, Conflict{
				EntityID:           id,
				LatestActiveMicros: latestActive,
				LatestDiscMicros:   latestDisc,
			})
		}
	}
	return out, nil
}
