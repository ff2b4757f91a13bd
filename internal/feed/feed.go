// Package feed supplies raw clock events and manual status labels per date.
package feed

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"shiftwatch/internal/model"
)

type EventFeed interface {
	EventsFor(ctx context.Context, date model.Date) ([]model.Event, error)
}

// StatusFeed returns manual labels keyed by employee name.
type StatusFeed interface {
	StatusFor(ctx context.Context, date model.Date) (map[string]string, error)
}

type Source interface {
	EventFeed
	StatusFeed
}

// Multi merges several sources. Events are de-duplicated per employee and
// instant; for statuses later sources override earlier ones.
type Multi []Source

func (m Multi) EventsFor(ctx context.Context, date model.Date) ([]model.Event, error) {
	results := make([][]model.Event, len(m))
	g, gCtx := errgroup.WithContext(ctx)
	for i, src := range m {
		g.Go(func() error {
			events, err := src.EventsFor(gCtx, date)
			results[i] = events
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []model.Event
	for _, events := range results {
		for _, ev := range events {
			key := eventKey(ev)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m Multi) StatusFor(ctx context.Context, date model.Date) (map[string]string, error) {
	results := make([]map[string]string, len(m))
	g, gCtx := errgroup.WithContext(ctx)
	for i, src := range m {
		g.Go(func() error {
			st, err := src.StatusFor(gCtx, date)
			results[i] = st
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, st := range results {
		for name, label := range st {
			out[name] = label
		}
	}
	return out, nil
}

func eventKey(ev model.Event) string {
	return ev.Employee + "|" + strconv.FormatInt(ev.Timestamp.UnixNano(), 10)
}

func localDate(t time.Time, loc *time.Location) model.Date {
	if loc != nil {
		t = t.In(loc)
	}
	return model.DateOf(t)
}
