package feed

import (
	"context"
	"sync"
	"time"

	"shiftwatch/internal/model"
)

// MemoryFeed holds pushed events and statuses in process. It is the sink
// used when no database is configured.
type MemoryFeed struct {
	mu       sync.RWMutex
	loc      *time.Location
	events   map[model.Date][]model.Event
	seen     map[string]struct{}
	statuses map[model.Date]map[string]string
}

func NewMemoryFeed(loc *time.Location) *MemoryFeed {
	return &MemoryFeed{
		loc:      loc,
		events:   make(map[model.Date][]model.Event),
		seen:     make(map[string]struct{}),
		statuses: make(map[model.Date]map[string]string),
	}
}

func (m *MemoryFeed) SaveEvents(_ context.Context, events []model.Event) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range events {
		key := eventKey(ev)
		if _, dup := m.seen[key]; dup {
			continue
		}
		m.seen[key] = struct{}{}
		d := localDate(ev.Timestamp, m.loc)
		m.events[d] = append(m.events[d], ev)
		n++
	}
	return n, nil
}

func (m *MemoryFeed) SaveStatuses(_ context.Context, statuses []model.ManualStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range statuses {
		day, ok := m.statuses[st.Date]
		if !ok {
			day = make(map[string]string)
			m.statuses[st.Date] = day
		}
		day[st.Employee] = st.Label
	}
	return nil
}

func (m *MemoryFeed) EventsFor(_ context.Context, date model.Date) ([]model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.events[date]
	out := make([]model.Event, len(src))
	copy(out, src)
	return out, nil
}

func (m *MemoryFeed) StatusFor(_ context.Context, date model.Date) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.statuses[date]))
	for name, label := range m.statuses[date] {
		out[name] = label
	}
	return out, nil
}
