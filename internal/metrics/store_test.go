package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftwatch/internal/model"
)

func TestStoreKeepsLatestPerDate(t *testing.T) {
	s := NewStore(10)
	d := model.NewDate(2025, time.January, 6)
	s.Update(model.DailyMetrics{Date: d, Total: 3, Present: 1})
	s.Update(model.DailyMetrics{Date: d, Total: 3, Present: 2})
	s.Update(model.DailyMetrics{})

	snap, ok := s.Get(d)
	require.True(t, ok)
	assert.Equal(t, 2, snap.Metrics.Present)
	assert.False(t, snap.UpdatedAt.IsZero())
	assert.Equal(t, 1, s.Len())

	_, ok = s.Get(d.AddDays(1))
	assert.False(t, ok)
}

func TestStoreEvictsAndOrders(t *testing.T) {
	s := NewStore(2)
	d := model.NewDate(2025, time.January, 6)
	for i := 0; i < 3; i++ {
		s.Update(model.DailyMetrics{Date: d.AddDays(i)})
	}
	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, d.AddDays(2), all[0].Metrics.Date)
	assert.Equal(t, d.AddDays(1), all[1].Metrics.Date)

	s.Clear()
	assert.Zero(t, s.Len())
}

func TestStoreEvictsEarliestDateRegardlessOfArrival(t *testing.T) {
	s := NewStore(2)
	d := model.NewDate(2025, time.January, 6)
	s.Update(model.DailyMetrics{Date: d.AddDays(2)})
	s.Update(model.DailyMetrics{Date: d})
	s.Update(model.DailyMetrics{Date: d.AddDays(1)})

	_, ok := s.Get(d)
	assert.False(t, ok, "earliest date should be evicted")
	_, ok = s.Get(d.AddDays(2))
	assert.True(t, ok)
	_, ok = s.Get(d.AddDays(1))
	assert.True(t, ok)
}
