package recurrence

import (
	"testing"
	"time"

	"countdown/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDayStripsTimeOfDay(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	in := time.Date(2024, 3, 10, 23, 59, 59, 999, seoul)
	got := Day(in)
	if !got.Equal(date(2024, 3, 10)) {
		t.Fatalf("Day(%v) = %v", in, got)
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Location())
	}
}

func TestDaysBetweenAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	from := time.Date(2024, 3, 9, 12, 0, 0, 0, ny)
	to := time.Date(2024, 3, 11, 1, 0, 0, 0, ny)
	if got := DaysBetween(from, to); got != 2 {
		t.Fatalf("DaysBetween = %d, want 2", got)
	}
	if got := DaysBetween(to, from); got != -2 {
		t.Fatalf("DaysBetween reversed = %d, want -2", got)
	}
}

func TestNextOccurrence(t *testing.T) {
	cases := []struct {
		name   string
		anchor time.Time
		rule   model.RepeatRule
		now    time.Time
		want   time.Time
	}{
		{"none future", date(2024, 5, 1), model.RepeatNone, date(2024, 3, 1), date(2024, 5, 1)},
		{"none past stays", date(2024, 1, 1), model.RepeatNone, date(2024, 3, 1), date(2024, 1, 1)},
		{"unknown rule behaves as none", date(2024, 1, 1), model.RepeatRule("daily"), date(2024, 3, 1), date(2024, 1, 1)},
		{"weekly anchor today", date(2024, 3, 1), model.RepeatWeekly, date(2024, 3, 1), date(2024, 3, 1)},
		{"weekly yesterday", date(2024, 2, 29), model.RepeatWeekly, date(2024, 3, 1), date(2024, 3, 7)},
		{"weekly future anchor", date(2024, 6, 1), model.RepeatWeekly, date(2024, 3, 1), date(2024, 6, 1)},
		{"weekly old anchor", date(2001, 1, 1), model.RepeatWeekly, date(2024, 3, 6), date(2024, 3, 11)},
		{"monthly same day", date(2023, 11, 15), model.RepeatMonthly, date(2024, 3, 15), date(2024, 3, 15)},
		{"monthly day passed", date(2023, 11, 10), model.RepeatMonthly, date(2024, 3, 15), date(2024, 4, 10)},
		{"monthly 31st skips short months", date(2024, 1, 31), model.RepeatMonthly, date(2024, 3, 15), date(2024, 3, 31)},
		{"monthly 31st skips february", date(2024, 1, 31), model.RepeatMonthly, date(2024, 2, 1), date(2024, 3, 31)},
		{"monthly 30th in february", date(2024, 1, 30), model.RepeatMonthly, date(2024, 2, 10), date(2024, 3, 30)},
		{"yearly birthday", date(1990, 7, 4), model.RepeatYearly, date(2024, 7, 5), date(2025, 7, 4)},
		{"yearly birthday today", date(1990, 7, 4), model.RepeatYearly, date(2024, 7, 4), date(2024, 7, 4)},
		{"yearly leap day", date(2024, 2, 29), model.RepeatYearly, date(2025, 3, 1), date(2028, 2, 29)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextOccurrence(tc.anchor, tc.rule, tc.now)
			if !got.Equal(tc.want) {
				t.Fatalf("NextOccurrence(%s, %s, %s) = %s, want %s",
					tc.anchor.Format(model.DateLayout), tc.rule, tc.now.Format(model.DateLayout),
					got.Format(model.DateLayout), tc.want.Format(model.DateLayout))
			}
		})
	}
}

func TestNextOccurrenceIgnoresTimeOfDay(t *testing.T) {
	anchor := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	if got := NextOccurrence(anchor, model.RepeatWeekly, now); !got.Equal(date(2024, 3, 1)) {
		t.Fatalf("got %v, want anchor day", got)
	}
	late := time.Date(2024, 3, 8, 23, 59, 0, 0, time.UTC)
	if got := NextOccurrence(anchor, model.RepeatWeekly, late); !got.Equal(date(2024, 3, 8)) {
		t.Fatalf("got %v, want 2024-03-08", got)
	}
}

func TestNextOccurrenceProperties(t *testing.T) {
	anchors := []time.Time{date(1999, 12, 31), date(2020, 2, 29), date(2023, 1, 31), date(2024, 6, 15), date(2026, 1, 1)}
	start := date(2024, 1, 1)
	for _, rule := range []model.RepeatRule{model.RepeatWeekly, model.RepeatMonthly, model.RepeatYearly} {
		for _, anchor := range anchors {
			for i := 0; i < 400; i += 7 {
				now := start.AddDate(0, 0, i)
				got := NextOccurrence(anchor, rule, now)
				if got.Before(Day(now)) {
					t.Fatalf("%s %s at %s: %s before today", rule, anchor.Format(model.DateLayout), now.Format(model.DateLayout), got.Format(model.DateLayout))
				}
				if again := NextOccurrence(anchor, rule, now); !again.Equal(got) {
					t.Fatalf("not idempotent: %s vs %s", got, again)
				}
				if anchor.After(now) && !got.Equal(anchor) {
					t.Fatalf("future anchor %s resolved to %s", anchor, got)
				}
				switch rule {
				case model.RepeatWeekly:
					if got.Weekday() != anchor.Weekday() {
						t.Fatalf("weekly drifted weekday: %s -> %s", anchor, got)
					}
					if !anchor.After(now) && DaysBetween(now, got) >= 7 {
						t.Fatalf("weekly overshot: now %s next %s", now, got)
					}
				case model.RepeatMonthly:
					if got.Day() != anchor.Day() {
						t.Fatalf("monthly drifted day: %s -> %s", anchor, got)
					}
				case model.RepeatYearly:
					if got.Month() != anchor.Month() || got.Day() != anchor.Day() {
						t.Fatalf("yearly drifted date: %s -> %s", anchor, got)
					}
				}
			}
		}
	}
}

func TestNoneIsIdentity(t *testing.T) {
	for i := -40; i <= 40; i += 5 {
		anchor := date(2024, 3, 1).AddDate(0, 0, i)
		if got := NextOccurrence(anchor, model.RepeatNone, date(2024, 3, 1)); !got.Equal(anchor) {
			t.Fatalf("none rule moved %s to %s", anchor, got)
		}
	}
}

func TestResolve(t *testing.T) {
	today := time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC)
	yesterday := date(2024, 2, 29)

	m := Resolve(date(2024, 3, 1), model.RepeatNone, today)
	if !m.IsToday || m.IsExpired || m.IsPast || m.DaysRemaining != 0 {
		t.Fatalf("today one-off: %+v", m)
	}
	if !m.Urgent() {
		t.Fatal("today should be urgent")
	}

	m = Resolve(yesterday, model.RepeatNone, today)
	if !m.IsExpired || !m.IsPast || m.DaysRemaining != -1 || m.DaysAbsolute != 1 {
		t.Fatalf("yesterday one-off: %+v", m)
	}
	if m.Urgent() {
		t.Fatal("past event should not be urgent")
	}

	m = Resolve(yesterday, model.RepeatWeekly, today)
	if m.IsExpired || m.IsPast || !m.Next.Equal(yesterday.AddDate(0, 0, 7)) || m.DaysRemaining != 6 {
		t.Fatalf("yesterday weekly: %+v", m)
	}

	m = Resolve(date(2024, 3, 11), model.RepeatYearly, today)
	if m.DaysRemaining != 10 || m.DaysAbsolute != 10 || m.Urgent() {
		t.Fatalf("future yearly: %+v", m)
	}

	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	m = Resolve(date(2500, 1, 1), model.RepeatNone, now)
	if m.DaysRemaining != 172835 || m.DaysAbsolute != 172835 {
		t.Fatalf("far future one-off: %+v", m)
	}
	m = Resolve(date(1500, 1, 1), model.RepeatNone, now)
	if m.DaysRemaining != -192408 || m.DaysAbsolute != 192408 || !m.IsExpired {
		t.Fatalf("far past one-off: %+v", m)
	}
}

func TestDaysRemainingZeroIffSameDay(t *testing.T) {
	now := time.Date(2024, 8, 20, 22, 0, 0, 0, time.UTC)
	for i := -10; i <= 10; i++ {
		anchor := Day(now).AddDate(0, 0, i)
		for _, rule := range model.RepeatRules {
			m := Resolve(anchor, rule, now)
			same := Day(m.Next).Equal(Day(now))
			if (m.DaysRemaining == 0) != same {
				t.Fatalf("%s %s: days=%d next=%s", rule, anchor, m.DaysRemaining, m.Next)
			}
			wantExpired := rule == model.RepeatNone && m.Next.Before(Day(now))
			if m.IsExpired != wantExpired {
				t.Fatalf("%s %s: expired=%v want %v", rule, anchor, m.IsExpired, wantExpired)
			}
			if IsExpired(model.Event{AnchorDate: anchor, Repeat: rule}, now) != wantExpired {
				t.Fatalf("IsExpired disagrees with Resolve for %s %s", rule, anchor)
			}
		}
	}
}

func TestUpcoming(t *testing.T) {
	now := date(2024, 3, 15)
	got := Upcoming(date(2024, 1, 31), model.RepeatMonthly, now, 3)
	want := []time.Time{date(2024, 3, 31), date(2024, 5, 31), date(2024, 7, 31)}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("occurrence %d = %s, want %s", i, got[i], want[i])
		}
	}

	if got := Upcoming(date(2024, 4, 1), model.RepeatNone, now, 5); len(got) != 1 {
		t.Fatalf("one-off future: %v", got)
	}
	if got := Upcoming(date(2024, 3, 1), model.RepeatNone, now, 5); got != nil {
		t.Fatalf("one-off past: %v", got)
	}
	if got := Upcoming(date(2024, 3, 1), model.RepeatWeekly, now, 0); got != nil {
		t.Fatalf("n=0: %v", got)
	}
}
