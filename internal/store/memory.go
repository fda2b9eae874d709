package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"countdown/internal/model"
)

// MemoryStore is a process-local repository. Records are copied on the way
// in and out so callers never share state with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]model.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]model.Event)}
}

// List returns all events ordered like SQLiteStore.List.
func (m *MemoryStore) List(_ context.Context) ([]model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Event, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Clone())
	}
	slices.SortFunc(out, func(a, b model.Event) int {
		if c := a.AnchorDate.Compare(b.AnchorDate); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ev, ok := m.events[id]
	if !ok {
		return model.Event{}, model.ErrNotFound
	}
	return ev.Clone(), nil
}

func (m *MemoryStore) Insert(_ context.Context, ev model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.events[ev.ID]; exists {
		return fmt.Errorf("insert event %s: duplicate id", ev.ID)
	}
	m.events[ev.ID] = ev.Clone()
	return nil
}

func (m *MemoryStore) Update(_ context.Context, ev model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.events[ev.ID]
	if !ok {
		return model.ErrNotFound
	}
	next := ev.Clone()
	next.CreatedAt = cur.CreatedAt
	m.events[ev.ID] = next
	return nil
}

func (m *MemoryStore) TogglePin(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[id]
	if !ok {
		return model.ErrNotFound
	}
	ev.Pinned = !ev.Pinned
	m.events[id] = ev
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[id]; !ok {
		return model.ErrNotFound
	}
	delete(m.events, id)
	return nil
}
