package evolution

import (
	"time"

	"github.com/kittclouds/memoryd/internal/store"
)

// EventKind distinguishes an ASSERTED relation appearing from a RETRACTED
// one disappearing.
type EventKind string

const (
	EventAsserted  EventKind = "ASSERTED"
	EventRetracted EventKind = "RETRACTED"
)

// Event is one validity stamp on an outgoing relationship of some from_id.
type Event struct {
	ToID            string
	RelationType    string
	Kind            EventKind
	TimestampMicros int64
}

// Timeline is the full evolution of from_id's outgoing relationships over
// the requested window, plus the added/removed summary spec.md §4.7 asks
// for.
type Timeline struct {
	Events  []Event
	Added   []string
	Removed []string
}

// RelationEvolution returns every assertion/retraction event of from_id's
// outgoing relationships, optionally narrowed to a specific toID, filtered
// to an optional [sinceMillis, untilMillis] window (0 means unbounded),
// sorted ascending.
func RelationEvolution(st *store.SQLiteStore, fromID, toID string, sinceMillis, untilMillis int64) (*Timeline, error) {
	var sinceMicros, untilMicros int64
	if sinceMillis > 0 {
		sinceMicros = sinceMillis * 1000
	}
	if untilMillis > 0 {
		untilMicros = untilMillis * 1000
	}

	rows, err := st.ListRelationshipHistory(fromID, toID, sinceMicros, untilMicros)
	if err != nil {
		return nil, err
	}

	tl := &Timeline{Events: make([]Event, 0, len(rows))}
	added := make(map[string]bool)
	removed := make(map[string]bool)
	for _, r := range rows {
		kind := EventRetracted
		if r.Validity.Asserted {
			kind = EventAsserted
		}
		tl.Events = append(tl.Events, Event{
			ToID: r.ToID, RelationType: r.RelationType, Kind: kind,
			TimestampMicros: r.Validity.TimestampMicros,
		})
		label := r.ToID + ":" + r.RelationType
		if kind == EventAsserted {
			added[label] = true
			delete(removed, label)
		} else {
			removed[label] = true
			delete(added, label)
		}
	}

	for label := range added {
		tl.Added = append(tl.Added, label)
	}
	for label := range removed {
		tl.Removed = append(tl.Removed, label)
	}

	return tl, nil
}

func sameUTCYear(aMicros, bMicros int64) bool {
	a := time.UnixMicro(aMicros).UTC()
	b := time.UnixMicro(bMicros).UTC()
	return a.Year() == b.Year()
}
