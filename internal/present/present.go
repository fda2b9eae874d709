package present

import (
	"slices"
	"time"

	"countdown/internal/model"
	"countdown/internal/recurrence"
)

// Entry is a record paired with its derived metrics at a given instant.
type Entry struct {
	Event   model.Event
	Metrics recurrence.Metrics
}

// Present returns the display order of records at now: expired one-off
// events are dropped, the rest are sorted by next occurrence, and pinned
// records are moved ahead of unpinned ones. Both steps are stable, so ties
// keep the input order. The input slice is not modified.
func Present(records []model.Event, now time.Time) []model.Event {
	entries := PresentEntries(records, now)
	out := make([]model.Event, len(entries))
	for i, e := range entries {
		out[i] = e.Event
	}
	return out
}

// PresentEntries is Present with each record's metrics attached.
func PresentEntries(records []model.Event, now time.Time) []Entry {
	entries := make([]Entry, 0, len(records))
	for _, ev := range records {
		m := recurrence.ResolveEvent(ev, now)
		if m.IsExpired {
			continue
		}
		entries = append(entries, Entry{Event: ev, Metrics: m})
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		return a.Metrics.Next.Compare(b.Metrics.Next)
	})
	return partitionPinned(entries)
}

// First returns the top entry of the presented order.
func First(records []model.Event, now time.Time) (Entry, bool) {
	entries := PresentEntries(records, now)
	if len(entries) == 0 {
		return Entry{}, false
	}
	return entries[0], true
}

func partitionPinned(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Event.Pinned {
			out = append(out, e)
		}
	}
	for _, e := range entries {
		if !e.Event.Pinned {
			out = append(out, e)
		}
	}
	return out
}
