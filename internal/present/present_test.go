package present

import (
	"fmt"
	"testing"
	"time"

	"countdown/internal/model"
	"countdown/internal/recurrence"
)

var now = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func day(offset int) time.Time {
	return recurrence.Day(now).AddDate(0, 0, offset)
}

func ev(id string, anchor time.Time, rule model.RepeatRule, pinned bool) model.Event {
	return model.Event{ID: id, Title: id, AnchorDate: anchor, Repeat: rule, Pinned: pinned}
}

func ids(events []model.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestPresentOrdering(t *testing.T) {
	records := []model.Event{
		ev("far", day(30), model.RepeatNone, false),
		ev("expired", day(-1), model.RepeatNone, true),
		ev("weekly-yesterday", day(-1), model.RepeatWeekly, false),
		ev("pinned-late", day(100), model.RepeatNone, true),
		ev("today", day(0), model.RepeatNone, false),
		ev("pinned-soon", day(2), model.RepeatYearly, true),
	}

	got := ids(Present(records, now))
	want := []string{"pinned-soon", "pinned-late", "today", "weekly-yesterday", "far"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("Present order = %v, want %v", got, want)
	}
	if records[0].ID != "far" || records[1].ID != "expired" {
		t.Fatal("input slice was reordered")
	}
}

func TestPresentStableOnTies(t *testing.T) {
	records := []model.Event{
		ev("b", day(5), model.RepeatNone, false),
		ev("a", day(5), model.RepeatNone, false),
		ev("p2", day(5), model.RepeatNone, true),
		ev("c", day(-2), model.RepeatWeekly, false), // resolves to day(5)
		ev("p1", day(5), model.RepeatNone, true),
	}
	got := ids(Present(records, now))
	want := []string{"p2", "p1", "b", "a", "c"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("Present order = %v, want %v", got, want)
	}
}

func TestPresentPinPartitionProperty(t *testing.T) {
	var records []model.Event
	rules := model.RepeatRules
	for i := 0; i < 60; i++ {
		offset := (i*37)%90 - 30
		records = append(records, ev(fmt.Sprintf("e%02d", i), day(offset), rules[i%len(rules)], i%3 == 0))
	}

	entries := PresentEntries(records, now)
	seenUnpinned := false
	var last [2]time.Time
	for _, e := range entries {
		if e.Metrics.IsExpired {
			t.Fatalf("expired record %s presented", e.Event.ID)
		}
		if !e.Event.Pinned {
			seenUnpinned = true
		} else if seenUnpinned {
			t.Fatalf("pinned record %s after an unpinned one", e.Event.ID)
		}
		group := 0
		if e.Event.Pinned {
			group = 1
		}
		if e.Metrics.Next.Before(last[group]) {
			t.Fatalf("group order broken at %s", e.Event.ID)
		}
		last[group] = e.Metrics.Next
	}

	expired := 0
	for _, r := range records {
		if recurrence.IsExpired(r, now) {
			expired++
		}
	}
	if len(entries)+expired != len(records) {
		t.Fatalf("presented %d + expired %d != %d", len(entries), expired, len(records))
	}
}

func TestPresentEntriesCarryMetrics(t *testing.T) {
	entries := PresentEntries([]model.Event{ev("w", day(-1), model.RepeatWeekly, false)}, now)
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	m := entries[0].Metrics
	if !m.Next.Equal(day(6)) || m.DaysRemaining != 6 || m.IsExpired {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestFirst(t *testing.T) {
	if _, ok := First(nil, now); ok {
		t.Fatal("expected no entry for empty input")
	}
	if _, ok := First([]model.Event{ev("x", day(-3), model.RepeatNone, true)}, now); ok {
		t.Fatal("expected no entry when everything expired")
	}
	top, ok := First([]model.Event{
		ev("soon", day(1), model.RepeatNone, false),
		ev("pinned", day(40), model.RepeatNone, true),
	}, now)
	if !ok || top.Event.ID != "pinned" {
		t.Fatalf("First = %+v ok=%v", top, ok)
	}
}
