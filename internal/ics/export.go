package ics

import (
	"io"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"countdown/internal/model"
)

const (
	ProductID = "-//countdown//countdown//EN"

	// PropertyColor and PropertyPinned carry the fields VEVENT has no
	// standard slot for.
	PropertyColor  ical.ComponentProperty = "X-COUNTDOWN-COLOR"
	PropertyPinned ical.ComponentProperty = "X-COUNTDOWN-PINNED"
)

// NewCalendar builds a VCALENDAR with one all-day VEVENT per record.
// Periodic records carry an RRULE so calendar clients expand them the same
// way the resolver does.
func NewCalendar(events []model.Event, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetProductId(ProductID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName("Countdown")

	stamp := now.UTC()
	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(stamp)
		ve.SetCreatedTime(ev.CreatedAt.UTC())
		ve.SetSummary(ev.Title)
		ve.SetAllDayStartAt(ev.AnchorDate)
		ve.SetAllDayEndAt(ev.AnchorDate.AddDate(0, 0, 1))
		if freq := rruleFreq(ev.Repeat); freq != "" {
			ve.SetProperty(ical.ComponentPropertyRrule, "FREQ="+freq)
		}
		if ev.Notes != nil && *ev.Notes != "" {
			ve.SetDescription(*ev.Notes)
		}
		if ev.ColorTag != "" {
			ve.SetProperty(PropertyColor, ev.ColorTag)
		}
		ve.SetProperty(PropertyPinned, strconv.FormatBool(ev.Pinned))
	}
	return cal
}

// Export writes the calendar for events to w.
func Export(w io.Writer, events []model.Event, now time.Time) error {
	_, err := io.WriteString(w, NewCalendar(events, now).Serialize())
	return err
}

func rruleFreq(r model.RepeatRule) string {
	switch r {
	case model.RepeatWeekly:
		return "WEEKLY"
	case model.RepeatMonthly:
		return "MONTHLY"
	case model.RepeatYearly:
		return "YEARLY"
	default:
		return ""
	}
}
