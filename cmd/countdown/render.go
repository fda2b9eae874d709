package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"countdown/internal/model"
	"countdown/internal/present"
	"countdown/internal/recurrence"
	"countdown/internal/widget"
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	urgentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	todayStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	pinnedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	detailStyle  = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("241"))
	idWidth      = 8
	titleWidth   = 28
	daysWidth    = 14
	dateColWidth = 10
)

// daysLabel is the human form of a signed day count.
func daysLabel(m recurrence.Metrics) string {
	switch {
	case m.IsToday:
		return "today"
	case m.IsPast && m.DaysAbsolute == 1:
		return "1 day ago"
	case m.IsPast:
		return fmt.Sprintf("%d days ago", m.DaysAbsolute)
	case m.DaysAbsolute == 1:
		return "in 1 day"
	default:
		return fmt.Sprintf("in %d days", m.DaysAbsolute)
	}
}

func swatch(color string) string {
	if color == "" {
		return " "
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("●")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func renderList(w io.Writer, entries []present.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No events."))
		return
	}

	header := fmt.Sprintf("  %-*s %-*s %-*s %-*s %s",
		idWidth, "ID", titleWidth, "TITLE", daysWidth, "WHEN", dateColWidth, "NEXT", "REPEAT")
	fmt.Fprintln(w, headerStyle.Render(header))

	for _, e := range entries {
		ev, m := e.Event, e.Metrics
		pin := " "
		if ev.Pinned {
			pin = pinnedStyle.Render("★")
		}

		when := fmt.Sprintf("%-*s", daysWidth, daysLabel(m))
		switch {
		case m.IsToday:
			when = todayStyle.Render(when)
		case m.Urgent():
			when = urgentStyle.Render(when)
		case m.IsPast:
			when = mutedStyle.Render(when)
		}

		repeat := ""
		if ev.Repeat.Periodic() {
			repeat = ev.Repeat.String()
		}

		fmt.Fprintf(w, "%s%s %-*s %-*s %s %-*s %s\n",
			pin, swatch(ev.ColorTag),
			idWidth, truncate(ev.ID, idWidth),
			titleWidth, truncate(ev.Title, titleWidth),
			when,
			dateColWidth, m.Next.Format(model.DateLayout),
			repeat)
	}
}

func renderDetail(w io.Writer, ev model.Event, m recurrence.Metrics, upcoming []time.Time) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", swatch(ev.ColorTag), headerStyle.Render(ev.Title))
	fmt.Fprintf(&b, "ID:       %s\n", ev.ID)
	fmt.Fprintf(&b, "Date:     %s\n", ev.AnchorDate.Format(model.DateLayout))
	fmt.Fprintf(&b, "Repeat:   %s\n", ev.Repeat)
	fmt.Fprintf(&b, "Next:     %s (%s)\n", m.Next.Format(model.DateLayout), daysLabel(m))
	if m.IsExpired {
		fmt.Fprintf(&b, "Status:   %s\n", mutedStyle.Render("expired"))
	}
	fmt.Fprintf(&b, "Pinned:   %t\n", ev.Pinned)
	if ev.ColorTag != "" {
		fmt.Fprintf(&b, "Color:    %s\n", ev.ColorTag)
	}
	if ev.HasImage() {
		fmt.Fprintf(&b, "Image:    %d bytes\n", len(ev.Image))
	}
	if ev.Notes != nil && *ev.Notes != "" {
		fmt.Fprintf(&b, "Notes:    %s\n", *ev.Notes)
	}
	if len(upcoming) > 1 {
		dates := make([]string, len(upcoming))
		for i, d := range upcoming {
			dates[i] = d.Format(model.DateLayout)
		}
		fmt.Fprintf(&b, "Upcoming: %s\n", strings.Join(dates, ", "))
	}
	fmt.Fprintf(&b, "Link:     %s", widget.DeepLink(ev.ID))

	fmt.Fprintln(w, detailStyle.Render(b.String()))
}
