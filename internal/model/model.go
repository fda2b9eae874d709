package model

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by repositories and the event service when no
// record exists for a given ID.
var ErrNotFound = errors.New("event not found")

// DateLayout is the on-disk and on-wire layout of anchor dates.
const DateLayout = "2006-01-02"

// RepeatRule is the recurrence rule of an event.
type RepeatRule string

const (
	RepeatNone    RepeatRule = "none"
	RepeatWeekly  RepeatRule = "weekly"
	RepeatMonthly RepeatRule = "monthly"
	RepeatYearly  RepeatRule = "yearly"
)

// RepeatRules lists all rules in display order.
var RepeatRules = []RepeatRule{RepeatNone, RepeatWeekly, RepeatMonthly, RepeatYearly}

// ParseRepeatRule maps a stored or user-supplied tag to a RepeatRule.
// It never fails: unknown or empty values fall back to RepeatNone.
// Short forms and the Chinese display labels (每周, 每月, 每年) are accepted
// as aliases.
func ParseRepeatRule(s string) RepeatRule {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekly", "week", "每周":
		return RepeatWeekly
	case "monthly", "month", "每月":
		return RepeatMonthly
	case "yearly", "year", "annually", "每年":
		return RepeatYearly
	default:
		return RepeatNone
	}
}

// Periodic reports whether the rule produces more than one occurrence.
func (r RepeatRule) Periodic() bool {
	return r == RepeatWeekly || r == RepeatMonthly || r == RepeatYearly
}

func (r RepeatRule) String() string {
	if r == "" {
		return string(RepeatNone)
	}
	return string(r)
}

// UnmarshalText applies ParseRepeatRule so JSON and YAML decoding share the
// same default-on-unknown behavior.
func (r *RepeatRule) UnmarshalText(b []byte) error {
	*r = ParseRepeatRule(string(b))
	return nil
}

func (r RepeatRule) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Event is the persisted countdown record.
//
// AnchorDate is the user-set date at day granularity (midnight
// UTC of the civil date). It is never advanced; occurrences are derived
// from it on every read.
type Event struct {
	ID         string
	Title      string
	AnchorDate time.Time
	Repeat     RepeatRule
	ColorTag   string
	Pinned     bool
	Notes      *string
	Image      []byte
	CreatedAt  time.Time
}

// HasImage reports whether the record carries an image payload.
func (e Event) HasImage() bool {
	return len(e.Image) > 0
}

// Clone returns a deep copy so callers can hand out records without
// sharing the notes pointer or image buffer.
func (e Event) Clone() Event {
	out := e
	if e.Notes != nil {
		n := *e.Notes
		out.Notes = &n
	}
	if e.Image != nil {
		out.Image = append([]byte(nil), e.Image...)
	}
	return out
}
