package ics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"countdown/internal/model"
)

var stamp = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func sample() []model.Event {
	notes := "Bring flowers"
	return []model.Event{
		{
			ID: "a1", Title: "Anniversary", AnchorDate: time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC),
			Repeat: model.RepeatYearly, ColorTag: "#FF0000", Pinned: true, Notes: &notes,
			CreatedAt: stamp,
		},
		{
			ID: "b2", Title: "Exam", AnchorDate: time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC),
			Repeat: model.RepeatNone, ColorTag: "#0000FF", CreatedAt: stamp,
		},
	}
}

func TestExportContainsRecordFields(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, sample(), stamp); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"UID:a1",
		"DTSTART;VALUE=DATE:20200601",
		"RRULE:FREQ=YEARLY",
		"X-COUNTDOWN-COLOR:#FF0000",
		"X-COUNTDOWN-PINNED:true",
		"DTSTART;VALUE=DATE:20240410",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q", want)
		}
	}
	if strings.Count(out, "RRULE") != 1 {
		t.Errorf("one-off record should not carry an RRULE:\n%s", out)
	}
}

func TestExportParseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, sample(), stamp); err != nil {
		t.Fatal(err)
	}
	items, err := Parse(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items", len(items))
	}

	first := items[0]
	if first.UID != "a1" || first.Input.Title != "Anniversary" || first.Input.Repeat != model.RepeatYearly {
		t.Fatalf("first = %+v", first)
	}
	if !first.Input.AnchorDate.Equal(time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("anchor = %v", first.Input.AnchorDate)
	}
	if !first.Input.Pinned || first.Input.ColorTag != "#FF0000" || first.Input.Notes == nil || *first.Input.Notes != "Bring flowers" {
		t.Fatalf("extension fields lost: %+v", first.Input)
	}
	if items[1].Input.Repeat != model.RepeatNone || items[1].Input.Pinned || items[1].Input.Notes != nil {
		t.Fatalf("second = %+v", items[1].Input)
	}
}

func TestParseForeignCalendar(t *testing.T) {
	body := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:daily",
		"SUMMARY:Standup",
		"DTSTART:20240101T090000Z",
		"RRULE:FREQ=DAILY",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:tz",
		"SUMMARY:Late call",
		"DTSTART;TZID=America/New_York:20240301T230000",
		"RRULE:FREQ=MONTHLY;BYMONTHDAY=1",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:nodate",
		"SUMMARY:Broken",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")

	items, err := Parse(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (missing DTSTART skipped)", len(items))
	}
	if items[0].Input.Repeat != model.RepeatNone {
		t.Fatalf("daily rule should import as none, got %s", items[0].Input.Repeat)
	}
	if items[1].Input.Repeat != model.RepeatMonthly {
		t.Fatalf("monthly rule = %s", items[1].Input.Repeat)
	}
	if !items[1].Input.AnchorDate.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("TZID date = %v", items[1].Input.AnchorDate)
	}
}

func TestParseICSDate(t *testing.T) {
	tests := []struct {
		in, tz string
		want   time.Time
	}{
		{"20240229", "", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"20240229T235959Z", "", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"20240301T003000", "Asia/Tokyo", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseICSDate(tt.in, tt.tz)
		if err != nil {
			t.Fatalf("%s: %v", tt.in, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseICSDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := parseICSDate("yesterday", ""); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestExportParseKeepsEscapedText(t *testing.T) {
	notes := "line1\nC:\\path, a;b \\n literal"
	events := []model.Event{{
		ID: "esc", Title: `Trip; Paris, C:\new \n`, AnchorDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Repeat: model.RepeatNone, ColorTag: "#00FF00", Notes: &notes, CreatedAt: stamp,
	}}

	var buf bytes.Buffer
	if err := Export(&buf, events, stamp); err != nil {
		t.Fatal(err)
	}
	items, err := Parse(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items", len(items))
	}
	got := items[0].Input
	if got.Title != events[0].Title {
		t.Errorf("title = %q, want %q", got.Title, events[0].Title)
	}
	if got.Notes == nil || *got.Notes != notes {
		t.Errorf("notes = %v, want %q", got.Notes, notes)
	}
}
