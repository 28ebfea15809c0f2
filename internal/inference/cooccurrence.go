package inference

import (
	"strings"
	"unicode"

	"github.com/coregx/ahocorasick"

	"github.com/kittclouds/memoryd/internal/store"
)

// canonicalizeForMatch folds text to a form suitable for Aho-Corasick
// matching: lowercase, joiners (apostrophe, hyphen, period, ampersand...)
// preserved so multiword names stay intact, everything else collapsed to a
// single space.
func canonicalizeForMatch(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	lastWasSpace := true
	for _, ch := range s {
		c := unicode.ToLower(ch)
		if c == '’' || c == '‘' {
			c = '\''
		}
		if c == '–' || c == '—' {
			c = '-'
		}
		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			out.WriteRune(c)
			lastWasSpace = false
		} else if !lastWasSpace {
			out.WriteRune(' ')
			lastWasSpace = true
		}
	}
	result := out.String()
	return strings.TrimRight(result, " ")
}

func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '‘', '-', '–', '—', '·', '.', '_', '/', '#', '&':
		return true
	default:
		return false
	}
}

// coOccurrence scans entity's own observation text for mentions of other
// live entities' names via a single Aho-Corasick automaton built over the
// whole namespace, emitting related_to at a fixed confidence for every
// distinct entity found alongside it.
func (e *Engine) coOccurrence(entity *store.Entity, asOf int64) []store.InferredRelation {
	names, err := e.liveEntityNames(asOf)
	if err != nil || len(names) < 2 {
		return nil
	}

	patterns := make([]string, 0, len(names))
	patternIDs := make([]string, 0, len(names))
	for id, name := range names {
		if id == entity.ID {
			continue
		}
		key := canonicalizeForMatch(name)
		if key == "" {
			continue
		}
		patterns = append(patterns, key)
		patternIDs = append(patternIDs, id)
	}
	if len(patterns) == 0 {
		return nil
	}

	automaton, err := ahocorasick.NewBuilder().
		AddStrings(patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil
	}

	observations, err := e.store.ListObservationsForEntityLive(entity.ID, asOf)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var out []store.InferredRelation
	for _, obs := range observations {
		haystack := []byte(canonicalizeForMatch(obs.Text))
		for _, m := range automaton.FindAllOverlapping(haystack) {
			targetID := patternIDs[m.PatternID]
			if targetID == entity.ID || seen[targetID] {
				continue
			}
			seen[targetID] = true
			out = append(out, store.InferredRelation{
				FromID: entity.ID, ToID: targetID, RelationType: "related_to",
				Confidence: 0.7, Reason: "co-occurs in observation text",
			})
		}
	}
	return out
}

func (e *Engine) liveEntityNames(asOf int64) (map[string]string, error) {
	names := make(map[string]string)
	entities, err := e.store.ListEntitiesLive("", asOf)
	if err != nil {
		return nil, err
	}
	for _, ent := range entities {
		names[ent.ID] = ent.Name
	}
	return names, nil
}
