package feed

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"shiftwatch/internal/model"
)

// CachedFeed memoizes a source per date for a short TTL. Cached slices and
// maps are shared between callers and must not be mutated.
type CachedFeed struct {
	src    Source
	events *expirable.LRU[model.Date, []model.Event]
	status *expirable.LRU[model.Date, map[string]string]
}

func NewCachedFeed(src Source, size int, ttl time.Duration) *CachedFeed {
	if size <= 0 {
		size = 100
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &CachedFeed{
		src:    src,
		events: expirable.NewLRU[model.Date, []model.Event](size, nil, ttl),
		status: expirable.NewLRU[model.Date, map[string]string](size, nil, ttl),
	}
}

func (c *CachedFeed) EventsFor(ctx context.Context, date model.Date) ([]model.Event, error) {
	if v, ok := c.events.Get(date); ok {
		return v, nil
	}
	v, err := c.src.EventsFor(ctx, date)
	if err != nil {
		return nil, err
	}
	c.events.Add(date, v)
	return v, nil
}

func (c *CachedFeed) StatusFor(ctx context.Context, date model.Date) (map[string]string, error) {
	if v, ok := c.status.Get(date); ok {
		return v, nil
	}
	v, err := c.src.StatusFor(ctx, date)
	if err != nil {
		return nil, err
	}
	c.status.Add(date, v)
	return v, nil
}

// Invalidate drops the given dates, e.g. after new events were stored.
func (c *CachedFeed) Invalidate(dates ...model.Date) {
	for _, d := range dates {
		c.events.Remove(d)
		c.status.Remove(d)
	}
}

func (c *CachedFeed) Purge() {
	c.events.Purge()
	c.status.Purge()
}

func (c *CachedFeed) Len() int {
	return c.events.Len() + c.status.Len()
}
