package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"countdown/internal/model"
)

// UrgentDays is the horizon within which an upcoming occurrence is
// highlighted by list surfaces.
const UrgentDays = 3

// ErrCalendar wraps failures reported by the rule engine. Well-formed
// dates never produce it; a resolver hitting it panics.
var ErrCalendar = errors.New("recurrence: calendar arithmetic failed")

// Metrics are the derived, read-only quantities every surface renders.
type Metrics struct {
	// Next is the resolved occurrence, midnight UTC of its civil date.
	Next time.Time
	// DaysRemaining is signed: positive in the future, negative in the past.
	DaysRemaining int
	DaysAbsolute  int
	IsPast        bool
	IsToday       bool
	// IsExpired is only ever true for one-off events whose date has passed.
	IsExpired bool
}

// Urgent reports whether the occurrence is today or within UrgentDays.
func (m Metrics) Urgent() bool {
	return m.DaysRemaining >= 0 && m.DaysRemaining <= UrgentDays
}

// Day strips the time of day from t. The civil date is read in t's own
// location and returned as midnight UTC, so day arithmetic is never skewed
// by DST transitions.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const secondsPerDay = 24 * 60 * 60

// DaysBetween returns the signed number of whole days from Day(from) to Day(to).
func DaysBetween(from, to time.Time) int {
	return int((Day(to).Unix() - Day(from).Unix()) / secondsPerDay)
}

// NextOccurrence resolves the first occurrence of the series anchored at
// anchor that falls on or after the day of now.
//
//   - RepeatNone returns the anchor day unchanged, even when it is past.
//   - Periodic rules advance by whole weeks, calendar months or calendar
//     years. Dates that do not exist in a target month or year (the 31st,
//     Feb 29) are skipped rather than clamped, following RFC 5545.
//   - An anchor on today's date resolves to today.
func NextOccurrence(anchor time.Time, rule model.RepeatRule, now time.Time) time.Time {
	start := Day(anchor)
	today := Day(now)

	freq, ok := frequency(rule)
	if !ok || !start.Before(today) {
		return start
	}

	r := newRule(freq, start, 0)
	next := r.After(today, true)
	if next.IsZero() {
		panic(fmt.Errorf("%w: no occurrence after %s for %s rule anchored %s",
			ErrCalendar, today.Format(model.DateLayout), rule, start.Format(model.DateLayout)))
	}
	return Day(next)
}

// Resolve computes all derived metrics for an anchor and rule at now.
func Resolve(anchor time.Time, rule model.RepeatRule, now time.Time) Metrics {
	next := NextOccurrence(anchor, rule, now)
	days := DaysBetween(now, next)

	m := Metrics{
		Next:          next,
		DaysRemaining: days,
		DaysAbsolute:  days,
		IsPast:        days < 0,
		IsToday:       days == 0,
		IsExpired:     !rule.Periodic() && days < 0,
	}
	if days < 0 {
		m.DaysAbsolute = -days
	}
	return m
}

// ResolveEvent is Resolve applied to a stored record.
func ResolveEvent(ev model.Event, now time.Time) Metrics {
	return Resolve(ev.AnchorDate, ev.Repeat, now)
}

// IsExpired reports whether ev is a one-off event whose date has passed.
func IsExpired(ev model.Event, now time.Time) bool {
	return !ev.Repeat.Periodic() && Day(ev.AnchorDate).Before(Day(now))
}

// Upcoming lists up to n occurrences starting with NextOccurrence. A
// one-off event yields its anchor only while it is not past.
func Upcoming(anchor time.Time, rule model.RepeatRule, now time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	next := NextOccurrence(anchor, rule, now)

	freq, ok := frequency(rule)
	if !ok {
		if next.Before(Day(now)) {
			return nil
		}
		return []time.Time{next}
	}

	// A series restarted at the next occurrence keeps the anchor's weekday,
	// day of month and month, so it yields the same dates as the anchored series.
	all := newRule(freq, next, n).All()
	out := make([]time.Time, 0, len(all))
	for _, t := range all {
		out = append(out, Day(t))
	}
	return out
}

func newRule(freq rrule.Frequency, start time.Time, count int) *rrule.RRule {
	r, err := rrule.NewRRule(rrule.ROption{Freq: freq, Dtstart: start, Count: count})
	if err != nil {
		panic(fmt.Errorf("%w: %v", ErrCalendar, err))
	}
	return r
}

func frequency(rule model.RepeatRule) (rrule.Frequency, bool) {
	switch rule {
	case model.RepeatWeekly:
		return rrule.WEEKLY, true
	case model.RepeatMonthly:
		return rrule.MONTHLY, true
	case model.RepeatYearly:
		return rrule.YEARLY, true
	default:
		return 0, false
	}
}
