package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"countdown/internal/event"
	"countdown/internal/model"
	"countdown/internal/present"
	"countdown/internal/recurrence"
)

// eventDTO is the JSON view of a record with its derived fields.
type eventDTO struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Date           string    `json:"date"`
	Repeat         string    `json:"repeat"`
	Color          string    `json:"color"`
	Pinned         bool      `json:"pinned"`
	Notes          *string   `json:"notes,omitempty"`
	HasImage       bool      `json:"has_image"`
	CreatedAt      time.Time `json:"created_at"`
	NextOccurrence string    `json:"next_occurrence"`
	DaysRemaining  int       `json:"days_remaining"`
	DaysAbsolute   int       `json:"days_absolute"`
	IsToday        bool      `json:"is_today"`
	IsPast         bool      `json:"is_past"`
	IsExpired      bool      `json:"is_expired"`
	Urgent         bool      `json:"urgent"`
	Upcoming       []string  `json:"upcoming,omitempty"`
}

func newEventDTO(ev model.Event, m recurrence.Metrics) eventDTO {
	return eventDTO{
		ID:             ev.ID,
		Title:          ev.Title,
		Date:           ev.AnchorDate.Format(model.DateLayout),
		Repeat:         ev.Repeat.String(),
		Color:          ev.ColorTag,
		Pinned:         ev.Pinned,
		Notes:          ev.Notes,
		HasImage:       ev.HasImage(),
		CreatedAt:      ev.CreatedAt,
		NextOccurrence: m.Next.Format(model.DateLayout),
		DaysRemaining:  m.DaysRemaining,
		DaysAbsolute:   m.DaysAbsolute,
		IsToday:        m.IsToday,
		IsPast:         m.IsPast,
		IsExpired:      m.IsExpired,
		Urgent:         m.Urgent(),
	}
}

// eventRequest is the body of create and replace requests. Image is
// base64 in JSON.
type eventRequest struct {
	Title  string           `json:"title"`
	Date   string           `json:"date"`
	Repeat model.RepeatRule `json:"repeat"`
	Color  string           `json:"color"`
	Pinned bool             `json:"pinned"`
	Notes  *string          `json:"notes"`
	Image  []byte           `json:"image"`
}

const maxRequestBody = 10 << 20

func (s *Server) decodeInput(w http.ResponseWriter, r *http.Request) (event.Input, error) {
	var req eventRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		return event.Input{}, fmt.Errorf("invalid request body: %w", err)
	}
	d, err := time.Parse(model.DateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		return event.Input{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", req.Date)
	}
	color := req.Color
	if color == "" {
		color = s.cfg.DefaultColor
	}
	return event.Input{
		Title:      req.Title,
		AnchorDate: d,
		Repeat:     req.Repeat,
		ColorTag:   color,
		Pinned:     req.Pinned,
		Notes:      req.Notes,
		Image:      req.Image,
	}, nil
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Present(r.Context(), s.today())
	if err != nil {
		writeServiceError(w, "list events", err)
		return
	}
	out := make([]eventDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, newEventDTO(e.Event, e.Metrics))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	in, err := s.decodeInput(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	now := s.today()
	if err := event.ValidateForm(in, now); err != nil {
		writeServiceError(w, "create event", err)
		return
	}
	ev, err := s.svc.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, "create event", err)
		return
	}
	writeJSON(w, http.StatusCreated, newEventDTO(ev, recurrence.ResolveEvent(ev, now)))
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "get event", err)
		return
	}
	now := s.today()
	dto := newEventDTO(ev, recurrence.ResolveEvent(ev, now))
	for _, d := range recurrence.Upcoming(ev.AnchorDate, ev.Repeat, now, s.cfg.UpcomingCount) {
		dto.Upcoming = append(dto.Upcoming, d.Format(model.DateLayout))
	}
	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	in, err := s.decodeInput(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	now := s.today()
	if err := event.ValidateForm(in, now); err != nil {
		writeServiceError(w, "update event", err)
		return
	}
	ev, err := s.svc.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, "update event", err)
		return
	}
	writeJSON(w, http.StatusOK, newEventDTO(ev, recurrence.ResolveEvent(ev, now)))
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, "delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTogglePin(w http.ResponseWriter, r *http.Request) {
	ev, err := s.svc.TogglePin(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "toggle pin", err)
		return
	}
	writeJSON(w, http.StatusOK, newEventDTO(ev, recurrence.ResolveEvent(ev, s.today())))
}

func (s *Server) handleEventImage(w http.ResponseWriter, r *http.Request) {
	ev, err := s.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "get image", err)
		return
	}
	if !ev.HasImage() {
		writeError(w, http.StatusNotFound, "event has no image")
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(ev.Image))
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(ev.Image)
}

// presentedEvents returns the records of the presented order at now.
func presentedEvents(entries []present.Entry) []model.Event {
	out := make([]model.Event, len(entries))
	for i, e := range entries {
		out[i] = e.Event
	}
	return out
}
