package ingest

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"shiftwatch/internal/model"
)

// recentLimit bounds the redelivery window's key set.
const recentLimit = 1 << 16

// Flush describes one batch handed to the sink.
type Flush struct {
	BatchID  string
	Received int
	Stored   int
	// Dates are the local dates the batch touched.
	Dates []model.Date
}

// Collector drains the event channel into the sink in batches. Events seen
// again within the dedupe window are dropped before they reach the sink.
type Collector struct {
	in       <-chan model.Event
	sink     Sink
	recent   *expirable.LRU[string, struct{}]
	interval time.Duration
	logger   *slog.Logger

	// OnFlush is called after every successful flush.
	OnFlush func(Flush)
}

func NewCollector(in <-chan model.Event, sink Sink, dedupeWindow, flushInterval time.Duration, logger *slog.Logger) *Collector {
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	c := &Collector{
		in:       in,
		sink:     sink,
		interval: flushInterval,
		logger:   logger,
	}
	if dedupeWindow > 0 {
		c.recent = expirable.NewLRU[string, struct{}](recentLimit, nil, dedupeWindow)
	}
	return c
}

// Run blocks until ctx is done or the channel closes, flushing what is left.
func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	var batch []model.Event
	for {
		select {
		case ev, ok := <-c.in:
			if !ok {
				return c.flush(context.WithoutCancel(ctx), batch)
			}
			if c.duplicate(ev) {
				continue
			}
			batch = append(batch, ev)
		case <-ticker.C:
			if err := c.flush(ctx, batch); err != nil {
				// keep the batch for the next tick
				if c.logger != nil {
					c.logger.Error("collector flush failed", "err", err, "events", len(batch))
				}
				continue
			}
			batch = nil
		case <-ctx.Done():
			return c.flush(context.WithoutCancel(ctx), batch)
		}
	}
}

func (c *Collector) duplicate(ev model.Event) bool {
	if c.recent == nil {
		return false
	}
	key := ev.Employee + "|" + strconv.FormatInt(ev.Timestamp.UnixNano(), 10)
	if c.recent.Contains(key) {
		return true
	}
	c.recent.Add(key, struct{}{})
	return false
}

func (c *Collector) flush(ctx context.Context, batch []model.Event) error {
	if len(batch) == 0 || c.sink == nil {
		return nil
	}
	n, err := c.sink.SaveEvents(ctx, batch)
	if err != nil {
		return err
	}
	f := Flush{BatchID: uuid.NewString(), Received: len(batch), Stored: n, Dates: datesOf(batch)}
	if c.logger != nil {
		c.logger.Debug("events flushed", "batch_id", f.BatchID, "received", f.Received, "stored", f.Stored)
	}
	if c.OnFlush != nil {
		c.OnFlush(f)
	}
	return nil
}

func datesOf(events []model.Event) []model.Date {
	seen := make(map[model.Date]struct{})
	var out []model.Date
	for _, ev := range events {
		d := model.DateOf(ev.Timestamp)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

func statusDates(statuses []model.ManualStatus) []model.Date {
	seen := make(map[model.Date]struct{})
	var out []model.Date
	for _, st := range statuses {
		d := st.Date
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
