package warnings

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"shiftwatch/internal/model"
)

// Store keeps the most recent data warnings in a bounded buffer. Repeats of
// the same (kind, employee, source) inside the cooldown are dropped.
type Store struct {
	mu       sync.RWMutex
	buf      []model.DataWarning
	limit    int
	cooldown *Cooldown
	window   time.Duration
	now      func() time.Time
}

func NewStore(limit int, cooldown time.Duration) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{
		limit:    limit,
		cooldown: NewCooldown(),
		window:   cooldown,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Add stamps the warning with an ID and time when missing. It reports
// whether the warning was stored.
func (s *Store) Add(w model.DataWarning) bool {
	now := s.now()
	if !s.cooldown.AllowKey(key(w), now, s.window) {
		return false
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Time.IsZero() {
		w.Time = now
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, w)
		return true
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = w
	return true
}

func (s *Store) AddAll(ws []model.DataWarning) int {
	n := 0
	for _, w := range ws {
		if s.Add(w) {
			n++
		}
	}
	return n
}

// List returns up to limit of the newest warnings, oldest first.
func (s *Store) List(limit int) []model.DataWarning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]model.DataWarning, 0, limit)
	for i := len(s.buf) - limit; i < len(s.buf); i++ {
		out = append(out, s.buf[i])
	}
	return out
}

func (s *Store) Since(ts time.Time) []model.DataWarning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.DataWarning, 0)
	for _, w := range s.buf {
		if !w.Time.Before(ts) {
			out = append(out, w)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf)
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.buf = nil
	s.mu.Unlock()
	s.cooldown.Reset()
}

func key(w model.DataWarning) string {
	return string(w.Kind) + "|" + w.Employee + "|" + w.Source
}
