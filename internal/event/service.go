package event

//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks countdown/internal/event Repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	appLog "countdown/internal/log"
	"countdown/internal/model"
	"countdown/internal/present"
	"countdown/internal/recurrence"
)

var (
	// ErrEmptyTitle rejects a create or update whose title is blank.
	ErrEmptyTitle = errors.New("event title is required")
	// ErrPastOneOff is the form rule for one-off events dated before today.
	ErrPastOneOff = errors.New("one-off event date must not be in the past")
)

// Repository is the record store the service never bypasses.
type Repository interface {
	List(ctx context.Context) ([]model.Event, error)
	Get(ctx context.Context, id string) (model.Event, error)
	Insert(ctx context.Context, ev model.Event) error
	Update(ctx context.Context, ev model.Event) error
	Delete(ctx context.Context, id string) error
}

// PinToggler is implemented by repositories that can flip the pinned flag
// in a single atomic write.
type PinToggler interface {
	TogglePin(ctx context.Context, id string) error
}

// Input carries the user-editable fields of a record.
type Input struct {
	Title      string
	AnchorDate time.Time
	Repeat     model.RepeatRule
	ColorTag   string
	Pinned     bool
	Notes      *string
	Image      []byte
}

// ValidateForm applies the add/edit form rule: a non-empty title, and for
// one-off events a date that is not before today. Surfaces call it before
// Create or Update; the service itself only enforces the title rule.
func ValidateForm(in Input, now time.Time) error {
	if strings.TrimSpace(in.Title) == "" {
		return ErrEmptyTitle
	}
	if !in.Repeat.Periodic() && recurrence.Day(in.AnchorDate).Before(recurrence.Day(now)) {
		return ErrPastOneOff
	}
	return nil
}

// Service implements the record lifecycle on top of a Repository. Writes
// are serialized so read-modify-write operations apply atomically.
type Service struct {
	repo Repository
	now  func() time.Time

	mu sync.Mutex
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create builds a new record with a fresh ID and persists it.
func (s *Service) Create(ctx context.Context, in Input) (model.Event, error) {
	if strings.TrimSpace(in.Title) == "" {
		return model.Event{}, ErrEmptyTitle
	}

	ev := model.Event{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
	}
	apply(&ev, in)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Insert(ctx, ev); err != nil {
		return model.Event{}, fmt.Errorf("create event: %w", err)
	}
	appLog.Info("event created", "id", ev.ID, "repeat", ev.Repeat, "anchor", ev.AnchorDate.Format(model.DateLayout))
	return ev, nil
}

// Update replaces every editable field of the record with id, keeping its
// ID and CreatedAt.
func (s *Service) Update(ctx context.Context, id string, in Input) (model.Event, error) {
	if strings.TrimSpace(in.Title) == "" {
		return model.Event{}, ErrEmptyTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.repo.Get(ctx, id)
	if err != nil {
		return model.Event{}, fmt.Errorf("update event %s: %w", id, err)
	}
	apply(&ev, in)
	if err := s.repo.Update(ctx, ev); err != nil {
		return model.Event{}, fmt.Errorf("update event %s: %w", id, err)
	}
	appLog.Info("event updated", "id", ev.ID)
	return ev, nil
}

// TogglePin flips the pinned flag and leaves every other field untouched.
func (s *Service) TogglePin(ctx context.Context, id string) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.repo.(PinToggler); ok {
		if err := t.TogglePin(ctx, id); err != nil {
			return model.Event{}, fmt.Errorf("toggle pin %s: %w", id, err)
		}
		ev, err := s.repo.Get(ctx, id)
		if err != nil {
			return model.Event{}, fmt.Errorf("toggle pin %s: %w", id, err)
		}
		appLog.Debug("event pin toggled", "id", ev.ID, "pinned", ev.Pinned)
		return ev, nil
	}

	ev, err := s.repo.Get(ctx, id)
	if err != nil {
		return model.Event{}, fmt.Errorf("toggle pin %s: %w", id, err)
	}
	ev.Pinned = !ev.Pinned
	if err := s.repo.Update(ctx, ev); err != nil {
		return model.Event{}, fmt.Errorf("toggle pin %s: %w", id, err)
	}
	appLog.Debug("event pin toggled", "id", ev.ID, "pinned", ev.Pinned)
	return ev, nil
}

// Delete removes the record permanently.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	appLog.Info("event deleted", "id", id)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Event, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]model.Event, error) {
	return s.repo.List(ctx)
}

// Present loads all records and returns them in display order at now.
func (s *Service) Present(ctx context.Context, now time.Time) ([]present.Entry, error) {
	events, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return present.PresentEntries(events, now), nil
}

func apply(ev *model.Event, in Input) {
	ev.Title = strings.TrimSpace(in.Title)
	ev.AnchorDate = recurrence.Day(in.AnchorDate)
	ev.Repeat = model.ParseRepeatRule(string(in.Repeat))
	ev.ColorTag = in.ColorTag
	ev.Pinned = in.Pinned
	ev.Notes = in.Notes
	ev.Image = in.Image
}
