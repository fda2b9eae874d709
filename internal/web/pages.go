package web

import (
	"bytes"
	"html/template"
	"net/http"
	"regexp"

	"countdown/internal/capture"
	"countdown/internal/ics"
	appLog "countdown/internal/log"
	"countdown/internal/widget"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{8})$`)

// widgetPage is the data of templates/widget.html.
type widgetPage struct {
	Snapshot widget.Snapshot
	Color    template.CSS
	DeepLink template.URL
	Width    int
	Height   int
}

func (s *Server) buildSnapshot(r *http.Request) (widget.Snapshot, error) {
	now := s.today()
	return widget.Build(r.Context(), s.svc, s.cfg.Widget.EventID, now, s.schedule.Next(now))
}

func (s *Server) handleWidgetAPI(w http.ResponseWriter, r *http.Request) {
	if s.snapshots != nil {
		if snap, ok := s.snapshots(); ok {
			writeJSON(w, http.StatusOK, snap)
			return
		}
	}
	snap, err := s.buildSnapshot(r)
	if err != nil {
		writeServiceError(w, "widget", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleWidgetPage renders the card captured by the widget refresher.
func (s *Server) handleWidgetPage(w http.ResponseWriter, r *http.Request) {
	snap, err := s.buildSnapshot(r)
	if err != nil {
		appLog.Error("widget page failed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	page := widgetPage{
		Snapshot: snap,
		Color:    template.CSS(s.cfg.DefaultColor),
		DeepLink: template.URL(snap.DeepLink),
		Width:    s.cfg.Widget.Capture.Width,
		Height:   s.cfg.Widget.Capture.Height,
	}
	if page.Width <= 0 {
		page.Width = capture.DefaultWidth
	}
	if page.Height <= 0 {
		page.Height = capture.DefaultHeight
	}
	if snap.Event != nil && hexColor.MatchString(snap.Event.Color) {
		page.Color = template.CSS(snap.Event.Color)
	}
	if !hexColor.MatchString(string(page.Color)) {
		page.Color = "#0000FF"
	}

	var buf bytes.Buffer
	if err := s.widget.Execute(&buf, page); err != nil {
		appLog.Error("widget template failed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleCalendar serves every non-expired record as an ICS feed.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	now := s.today()
	entries, err := s.svc.Present(r.Context(), now)
	if err != nil {
		appLog.Error("calendar feed failed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := ics.Export(&buf, presentedEvents(entries), now); err != nil {
		appLog.Error("calendar export failed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="countdown.ics"`)
	_, _ = w.Write(buf.Bytes())
}

// handlePreview serves the last captured widget PNG from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	path := s.cfg.Widget.Capture.OutputPath
	if path == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}
