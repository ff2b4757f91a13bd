package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"shiftwatch/internal/engine"
	"shiftwatch/internal/feed"
	"shiftwatch/internal/model"
)

var (
	ErrInvalidRange = errors.New("from must not be after to")
	ErrRangeTooLong = errors.New("date range too long")
)

const DefaultMaxRangeDays = 62

type WarningSink interface {
	AddAll(ws []model.DataWarning) int
}

type MetricsSink interface {
	Update(m model.DailyMetrics)
}

// Service fetches feed data and runs the engine on it.
type Service struct {
	engine   *engine.Engine
	source   feed.Source
	warnings WarningSink
	metrics  MetricsSink
	maxDays  int
	logger   *slog.Logger
}

func NewService(eng *engine.Engine, source feed.Source, warnings WarningSink, maxRangeDays int, logger *slog.Logger) *Service {
	if maxRangeDays <= 0 {
		maxRangeDays = DefaultMaxRangeDays
	}
	return &Service{engine: eng, source: source, warnings: warnings, maxDays: maxRangeDays, logger: logger}
}

// WithMetrics publishes every built report's metrics to m.
func (s *Service) WithMetrics(m MetricsSink) *Service {
	s.metrics = m
	return s
}

func (s *Service) Roster() model.Roster {
	return s.engine.Roster()
}

// Day classifies every roster employee for one date.
func (s *Service) Day(ctx context.Context, date model.Date) (model.DayReport, error) {
	in, err := s.input(ctx, date)
	if err != nil {
		return model.DayReport{}, err
	}
	rep := s.engine.ClassifyDay(in.Date, in.Events, in.Manual)
	s.record(rep)
	return rep, nil
}

// Range classifies each date in [from, to]. Reports come back in date order.
func (s *Service) Range(ctx context.Context, from, to model.Date) ([]model.DayReport, error) {
	dates, err := s.dates(from, to)
	if err != nil {
		return nil, err
	}
	inputs := make([]engine.DayInput, len(dates))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, d := range dates {
		g.Go(func() error {
			in, err := s.input(gCtx, d)
			inputs[i] = in
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	reports, err := s.engine.ClassifyRange(ctx, inputs)
	if err != nil {
		return nil, err
	}
	for _, rep := range reports {
		s.record(rep)
	}
	return reports, nil
}

// Trends buckets the raw events of [from, to] into ISO weeks.
func (s *Service) Trends(ctx context.Context, from, to model.Date) ([]model.WeekTrend, error) {
	dates, err := s.dates(from, to)
	if err != nil {
		return nil, err
	}
	perDay := make([][]model.Event, len(dates))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, d := range dates {
		g.Go(func() error {
			events, err := s.source.EventsFor(gCtx, d)
			perDay[i] = events
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	var all []model.Event
	for _, events := range perDay {
		all = append(all, events...)
	}
	return engine.WeeklyTrends(all), nil
}

func (s *Service) dates(from, to model.Date) ([]model.Date, error) {
	if from.After(to) {
		return nil, ErrInvalidRange
	}
	n := from.DaysUntil(to) + 1
	if n > s.maxDays {
		return nil, fmt.Errorf("%w: %d days, max %d", ErrRangeTooLong, n, s.maxDays)
	}
	out := make([]model.Date, 0, n)
	for d := from; !d.After(to); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out, nil
}

func (s *Service) input(ctx context.Context, date model.Date) (engine.DayInput, error) {
	in := engine.DayInput{Date: date}
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		events, err := s.source.EventsFor(gCtx, date)
		if err != nil {
			return fmt.Errorf("fetch events %s: %w", date, err)
		}
		in.Events = events
		return nil
	})
	g.Go(func() error {
		manual, err := s.source.StatusFor(gCtx, date)
		if err != nil {
			return fmt.Errorf("fetch status %s: %w", date, err)
		}
		in.Manual = manual
		return nil
	})
	if err := g.Wait(); err != nil {
		return engine.DayInput{}, err
	}
	return in, nil
}

func (s *Service) record(rep model.DayReport) {
	if s.warnings != nil && len(rep.Warnings) > 0 {
		s.warnings.AddAll(rep.Warnings)
	}
	if s.metrics != nil {
		s.metrics.Update(rep.Metrics)
	}
	if s.logger != nil {
		s.logger.Info("report built",
			"date", rep.Date.String(),
			"total", rep.Metrics.Total,
			"present", rep.Metrics.Present,
			"permit", rep.Metrics.Permit,
			"absent", rep.Metrics.Absent,
			"late", rep.Metrics.Late,
			"attendance_rate", rep.Metrics.AttendanceRate.String(),
			"anomalies", len(rep.Anomalies),
		)
	}
}
