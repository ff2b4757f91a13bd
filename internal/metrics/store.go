package metrics

import (
	"sort"
	"sync"
	"time"

	"shiftwatch/internal/model"
)

// Store keeps the most recently computed metrics of each date so dashboards
// can poll without re-running classification.
type Store struct {
	mu        sync.RWMutex
	byDate    map[model.Date]model.DailyMetrics
	updatedAt map[model.Date]time.Time
	limit     int
}

type Snapshot struct {
	Metrics   model.DailyMetrics `json:"metrics"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 366
	}
	return &Store{
		byDate:    make(map[model.Date]model.DailyMetrics),
		updatedAt: make(map[model.Date]time.Time),
		limit:     limit,
	}
}

func (s *Store) Update(m model.DailyMetrics) {
	if m.Date.IsZero() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDate[m.Date] = m
	s.updatedAt[m.Date] = time.Now().UTC()
	if len(s.byDate) > s.limit {
		s.evictOldest()
	}
}

func (s *Store) Get(date model.Date) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byDate[date]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{Metrics: m, UpdatedAt: s.updatedAt[date]}, true
}

// All returns every snapshot, newest date first.
func (s *Store) All() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.byDate))
	for d, m := range s.byDate {
		out = append(out, Snapshot{Metrics: m, UpdatedAt: s.updatedAt[d]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metrics.Date.After(out[j].Metrics.Date) })
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byDate)
}

// evictOldest drops the earliest calendar date, whenever it was computed.
func (s *Store) evictOldest() {
	var (
		oldest model.Date
		found  bool
	)
	for d := range s.byDate {
		if !found || d.Before(oldest) {
			oldest, found = d, true
		}
	}
	if found {
		delete(s.byDate, oldest)
		delete(s.updatedAt, oldest)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDate = make(map[model.Date]model.DailyMetrics)
	s.updatedAt = make(map[model.Date]time.Time)
}
