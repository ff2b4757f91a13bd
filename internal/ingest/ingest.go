package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shiftwatch/internal/config"
	"shiftwatch/internal/model"
	"shiftwatch/internal/normalize"
)

// Sink receives normalized rows. storage.Store and feed.MemoryFeed both
// satisfy it.
type Sink interface {
	SaveEvents(ctx context.Context, events []model.Event) (int, error)
	SaveStatuses(ctx context.Context, statuses []model.ManualStatus) error
}

type WarningSink interface {
	Add(w model.DataWarning) bool
}

// Pipeline wires the push sources. Events go through the channel to the
// Collector; manual statuses are low volume and go straight to the sink.
type Pipeline struct {
	cfg      *config.Manager
	out      chan<- model.Event
	sink     Sink
	warnings WarningSink
	logger   *slog.Logger

	// OnStatuses is called with the dates of every saved status batch.
	OnStatuses func(dates []model.Date)
}

func NewPipeline(cfg *config.Manager, out chan<- model.Event, sink Sink, warnings WarningSink, logger *slog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, out: out, sink: sink, warnings: warnings, logger: logger}
}

// Start launches every enabled background source. REST ingest is mounted by
// the API server instead.
func (p *Pipeline) Start(ctx context.Context) {
	p.StartKafka(ctx)
	p.StartFiles(ctx)
	p.StartTCPStream(ctx)
}

func (p *Pipeline) location() *time.Location {
	return p.cfg.Get().Location()
}

// handleLine parses, normalizes and forwards one line. It reports whether
// an event was sent.
func (p *Pipeline) handleLine(ctx context.Context, parser *Parser, line, source string) bool {
	fields, err := parser.ParseLine(line)
	if err != nil || fields == nil {
		return false
	}
	fields.Source = source
	ev, err := normalize.Normalize(*fields, p.location())
	if err != nil {
		p.reject(err, fields.Name, source)
		return false
	}
	return SendNonBlocking(ctx, p.out, ev, p.logger)
}

func (p *Pipeline) reject(err error, name, source string) {
	if p.logger != nil {
		p.logger.Warn("normalize error", "source", source, "employee", name, "err", err)
	}
	if p.warnings != nil {
		p.warnings.Add(WarningFor(err, name, source))
	}
}

// WarningFor maps a normalization error onto a data warning.
func WarningFor(err error, name, source string) model.DataWarning {
	w := model.DataWarning{Employee: name, Source: source, Detail: err.Error()}
	switch {
	case errors.Is(err, model.ErrEmptyName):
		w.Kind = model.WarningEmptyName
	case errors.Is(err, model.ErrInvalidTimestamp):
		w.Kind = model.WarningInvalidTimestamp
	case errors.Is(err, model.ErrUnknownEmployee):
		w.Kind = model.WarningUnknownEmployee
	default:
		w.Kind = model.WarningInvalidStatus
	}
	return w
}

func SendNonBlocking(ctx context.Context, out chan<- model.Event, ev model.Event, logger *slog.Logger) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	default:
		if logger != nil {
			logger.Warn("event channel full, dropping event", "employee", ev.Employee, "timestamp", ev.Timestamp)
		}
		return false
	}
}

func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
