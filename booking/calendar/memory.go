package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryGateway keeps events in process. It backs local runs without Google
// credentials and the package tests.
type MemoryGateway struct {
	mu          sync.Mutex
	events      map[string]Event
	deleted     []string
	unavailable bool
	now         func() time.Time
}

func NewMemoryGateway(now func() time.Time) *MemoryGateway {
	if now == nil {
		now = time.Now
	}
	return &MemoryGateway{
		events: make(map[string]Event),
		now:    now,
	}
}

// Seed stores ev as-is, keeping its ID and Created time when set.
func (g *MemoryGateway) Seed(ev Event) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Created.IsZero() {
		ev.Created = g.now()
	}
	ev.Meta = ParseMetadata(ev.Title, ev.Description)
	g.events[ev.ID] = ev
	return ev.ID
}

// SetUnavailable makes every call fail with ErrUnavailable.
func (g *MemoryGateway) SetUnavailable(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unavailable = v
}

// Deleted lists ids removed through DeleteEvent, in call order.
func (g *MemoryGateway) Deleted() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.deleted...)
}

func (g *MemoryGateway) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.events)
}

func (g *MemoryGateway) ListEvents(_ context.Context, start, end time.Time) ([]Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return nil, fmt.Errorf("%w: list events", ErrUnavailable)
	}

	var out []Event
	for _, ev := range g.events {
		if ev.Start.Before(end) && ev.End.After(start) {
			out = append(out, ev)
		}
	}
	sortByStart(out)
	return out, nil
}

func (g *MemoryGateway) SearchEvents(_ context.Context, from time.Time, text string) ([]Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return nil, fmt.Errorf("%w: search events", ErrUnavailable)
	}

	var out []Event
	for _, ev := range g.events {
		if !ev.End.After(from) {
			continue
		}
		if strings.Contains(ev.Title, text) || strings.Contains(ev.Description, text) {
			out = append(out, ev)
		}
	}
	sortByStart(out)
	return out, nil
}

func (g *MemoryGateway) GetEvent(_ context.Context, id string) (Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return Event{}, fmt.Errorf("%w: get event", ErrUnavailable)
	}
	ev, ok := g.events[id]
	if !ok {
		return Event{}, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	return ev, nil
}

func (g *MemoryGateway) InsertEvent(_ context.Context, ev Event) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return "", fmt.Errorf("%w: insert event", ErrUnavailable)
	}
	ev.ID = uuid.NewString()
	ev.Created = g.now()
	ev.Meta = ParseMetadata(ev.Title, ev.Description)
	g.events[ev.ID] = ev
	return ev.ID, nil
}

func (g *MemoryGateway) UpdateEvent(_ context.Context, ev Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return fmt.Errorf("%w: update event", ErrUnavailable)
	}
	cur, ok := g.events[ev.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEventNotFound, ev.ID)
	}
	ev.Created = cur.Created
	ev.Meta = ParseMetadata(ev.Title, ev.Description)
	g.events[ev.ID] = ev
	return nil
}

func (g *MemoryGateway) DeleteEvent(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return fmt.Errorf("%w: delete event", ErrUnavailable)
	}
	if _, ok := g.events[id]; !ok {
		return fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	delete(g.events, id)
	g.deleted = append(g.deleted, id)
	return nil
}

func sortByStart(events []Event) {
	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
}
