package ics

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"countdown/internal/event"
	appLog "countdown/internal/log"
	"countdown/internal/model"
)

// Item is one importable VEVENT.
type Item struct {
	UID   string
	Input event.Input
}

// Parse reads a calendar and returns one Item per VEVENT. Events without a
// usable DTSTART are skipped and logged; a recurrence frequency other than
// weekly, monthly or yearly maps to a one-off record.
func Parse(r io.Reader) ([]Item, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	items := make([]Item, 0)
	for _, ve := range cal.Events() {
		item, err := parseVEvent(ve)
		if err != nil {
			appLog.Warn("ics vevent skipped", "uid", item.UID, "reason", err.Error())
			continue
		}
		items = append(items, item)
	}

	appLog.Debug("ics parse completed", "event_count", len(items))
	return items, nil
}

func parseVEvent(ve *ical.VEvent) (Item, error) {
	var out Item
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Input.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil && p.Value != "" {
		notes := p.Value
		out.Input.Notes = &notes
	}

	dt := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dt == nil || dt.Value == "" {
		return out, errors.New("missing DTSTART")
	}
	tzid := ""
	if vs, ok := dt.ICalParameters["TZID"]; ok && len(vs) > 0 {
		tzid = vs[0]
	}
	start, err := parseICSDate(dt.Value, tzid)
	if err != nil {
		return out, err
	}
	out.Input.AnchorDate = start

	out.Input.Repeat = model.RepeatNone
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.Input.Repeat = repeatFromRRule(p.Value)
	}

	if p := ve.GetProperty(PropertyColor); p != nil {
		out.Input.ColorTag = strings.TrimSpace(p.Value)
	} else if p := ve.GetProperty(ical.ComponentProperty("COLOR")); p != nil {
		out.Input.ColorTag = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty(PropertyPinned); p != nil {
		out.Input.Pinned, _ = strconv.ParseBool(strings.TrimSpace(p.Value))
	}
	return out, nil
}

func repeatFromRRule(v string) model.RepeatRule {
	opt, err := rrule.StrToROption(v)
	if err != nil {
		appLog.Warn("unsupported RRULE; importing as one-off", "rrule", v)
		return model.RepeatNone
	}
	switch opt.Freq {
	case rrule.WEEKLY:
		return model.RepeatWeekly
	case rrule.MONTHLY:
		return model.RepeatMonthly
	case rrule.YEARLY:
		return model.RepeatYearly
	default:
		return model.RepeatNone
	}
}

// parseICSDate returns the civil date of a DATE or DATE-TIME value. UTC
// and TZID date-times are read in their own zone; floating ones as local.
func parseICSDate(v, tzid string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	loc := time.Local
	if tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}

	var (
		t   time.Time
		err error
	)
	switch {
	case strings.HasSuffix(v, "Z"):
		t, err = time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		t, err = time.ParseInLocation("20060102T150405", v, loc)
	default:
		t, err = time.ParseInLocation("20060102", v, loc)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", v, err)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}
