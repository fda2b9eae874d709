// Package importer bulk-creates records from YAML or ICS documents. Every
// record goes through event.Service, so imported data obeys the same rules
// as records added by hand.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"countdown/internal/event"
	"countdown/internal/ics"
	appLog "countdown/internal/log"
	"countdown/internal/model"
)

// Creator is the write side of event.Service used by imports.
type Creator interface {
	Create(ctx context.Context, in event.Input) (model.Event, error)
}

// Document is the YAML import format.
type Document struct {
	Events []Item `yaml:"events"`
}

// Item is one YAML record.
type Item struct {
	Title  string           `yaml:"title"`
	Date   string           `yaml:"date"`
	Repeat model.RepeatRule `yaml:"repeat"`
	Color  string           `yaml:"color"`
	Pinned bool             `yaml:"pinned"`
	Notes  *string          `yaml:"notes"`
}

// Importer creates records through a Creator.
type Importer struct {
	svc          Creator
	defaultColor string
}

func New(svc Creator, defaultColor string) *Importer {
	return &Importer{svc: svc, defaultColor: defaultColor}
}

// ImportYAML decodes a Document from r and creates its events in order. It
// stops at the first failing item and returns how many were created.
func (im *Importer) ImportYAML(ctx context.Context, r io.Reader) (int, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("decode yaml: %w", err)
	}

	inputs := make([]event.Input, 0, len(doc.Events))
	for i, it := range doc.Events {
		d, err := time.Parse(model.DateLayout, strings.TrimSpace(it.Date))
		if err != nil {
			return 0, fmt.Errorf("item %d (%q): invalid date %q", i, it.Title, it.Date)
		}
		inputs = append(inputs, event.Input{
			Title:      it.Title,
			AnchorDate: d,
			Repeat:     it.Repeat,
			ColorTag:   it.Color,
			Pinned:     it.Pinned,
			Notes:      it.Notes,
		})
	}
	return im.create(ctx, inputs)
}

// ImportICS creates one record per VEVENT of the calendar in r.
func (im *Importer) ImportICS(ctx context.Context, r io.Reader) (int, error) {
	items, err := ics.Parse(r)
	if err != nil {
		return 0, err
	}
	inputs := make([]event.Input, len(items))
	for i, it := range items {
		inputs[i] = it.Input
	}
	return im.create(ctx, inputs)
}

func (im *Importer) create(ctx context.Context, inputs []event.Input) (int, error) {
	created := 0
	for i, in := range inputs {
		if in.ColorTag == "" {
			in.ColorTag = im.defaultColor
		}
		ev, err := im.svc.Create(ctx, in)
		if err != nil {
			return created, fmt.Errorf("item %d (%q): %w", i, in.Title, err)
		}
		appLog.Debug("imported event", "index", i, "id", ev.ID)
		created++
	}
	appLog.Info("import finished", "created", created)
	return created, nil
}
