// Package widget builds the home-screen widget timeline: which record the
// widget shows, the snapshot it renders from, and the refresh schedule.
package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"countdown/internal/model"
	"countdown/internal/present"
	"countdown/internal/recurrence"
)

// DeepLinkScheme prefixes the link a tapped widget opens.
const DeepLinkScheme = "countdown://open/"

// Source is the read side of the record store.
type Source interface {
	List(ctx context.Context) ([]model.Event, error)
}

// Card is the widget's view of a record.
type Card struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Date     string `json:"date"`
	Repeat   string `json:"repeat"`
	Color    string `json:"color"`
	Pinned   bool   `json:"pinned"`
	Notes    string `json:"notes,omitempty"`
	HasImage bool   `json:"has_image"`
}

// CardMetrics are the derived fields the widget renders.
type CardMetrics struct {
	NextOccurrence string `json:"next_occurrence"`
	DaysRemaining  int    `json:"days_remaining"`
	DaysAbsolute   int    `json:"days_absolute"`
	IsToday        bool   `json:"is_today"`
	IsPast         bool   `json:"is_past"`
	IsExpired      bool   `json:"is_expired"`
	Urgent         bool   `json:"urgent"`
}

// Snapshot is one timeline entry. Event and Metrics are nil when there is
// nothing to show.
type Snapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	NextRefresh time.Time    `json:"next_refresh"`
	Event       *Card        `json:"event"`
	Metrics     *CardMetrics `json:"metrics"`
	DeepLink    string       `json:"deep_link,omitempty"`
}

// Empty reports whether the snapshot has no record.
func (s Snapshot) Empty() bool {
	return s.Event == nil
}

// Select picks the record the widget shows. A configured eventID wins when
// it names an existing record, even an expired one; otherwise the top of
// the presented order is used.
func Select(events []model.Event, eventID string, now time.Time) (present.Entry, bool) {
	if eventID != "" {
		for _, ev := range events {
			if ev.ID == eventID {
				return present.Entry{Event: ev, Metrics: recurrence.ResolveEvent(ev, now)}, true
			}
		}
	}
	return present.First(events, now)
}

// Build loads the records from src and assembles the snapshot for now.
func Build(ctx context.Context, src Source, eventID string, now, nextRefresh time.Time) (Snapshot, error) {
	events, err := src.List(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list events: %w", err)
	}

	snap := Snapshot{GeneratedAt: now, NextRefresh: nextRefresh}
	entry, ok := Select(events, eventID, now)
	if !ok {
		return snap, nil
	}
	card := NewCard(entry.Event)
	metrics := NewCardMetrics(entry.Metrics)
	snap.Event = &card
	snap.Metrics = &metrics
	snap.DeepLink = DeepLink(entry.Event.ID)
	return snap, nil
}

// DeepLink returns the URL a widget tap opens for the record id.
func DeepLink(id string) string {
	return DeepLinkScheme + id
}

func NewCard(ev model.Event) Card {
	c := Card{
		ID:       ev.ID,
		Title:    ev.Title,
		Date:     ev.AnchorDate.Format(model.DateLayout),
		Repeat:   ev.Repeat.String(),
		Color:    ev.ColorTag,
		Pinned:   ev.Pinned,
		HasImage: ev.HasImage(),
	}
	if ev.Notes != nil {
		c.Notes = *ev.Notes
	}
	return c
}

func NewCardMetrics(m recurrence.Metrics) CardMetrics {
	return CardMetrics{
		NextOccurrence: m.Next.Format(model.DateLayout),
		DaysRemaining:  m.DaysRemaining,
		DaysAbsolute:   m.DaysAbsolute,
		IsToday:        m.IsToday,
		IsPast:         m.IsPast,
		IsExpired:      m.IsExpired,
		Urgent:         m.Urgent(),
	}
}

// WriteSnapshot stores snap as JSON at path via temp file + rename.
func WriteSnapshot(path string, snap Snapshot) error {
	if path == "" {
		return errors.New("snapshot path is empty")
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".widget-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadSnapshot loads a snapshot written by WriteSnapshot.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return snap, nil
}
