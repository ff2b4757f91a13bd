package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"shiftwatch/internal/model"
)

type Options struct {
	// GapThreshold flags consecutive events of one employee further apart
	// than this. Zero disables gap detection.
	GapThreshold time.Duration
	// Parallelism bounds ClassifyRange fan-out; zero uses GOMAXPROCS.
	Parallelism int
}

func DefaultOptions() Options {
	return Options{GapThreshold: 12 * time.Hour}
}

// Engine classifies employee-days against the current roster. It keeps no
// per-date state; the roster and options swap atomically on reload.
type Engine struct {
	logger *slog.Logger
	roster atomic.Value
	opts   atomic.Value
}

type DayInput struct {
	Date   model.Date
	Events []model.Event
	Manual map[string]string
}

func NewEngine(roster model.Roster, opts Options, logger *slog.Logger) *Engine {
	e := &Engine{logger: logger}
	e.roster.Store(roster)
	e.opts.Store(opts)
	return e
}

func (e *Engine) UpdateRoster(roster model.Roster) {
	e.roster.Store(roster)
}

func (e *Engine) UpdateOptions(opts Options) {
	e.opts.Store(opts)
}

func (e *Engine) Roster() model.Roster {
	if v := e.roster.Load(); v != nil {
		return v.(model.Roster)
	}
	return model.Roster{}
}

func (e *Engine) options() Options {
	if v := e.opts.Load(); v != nil {
		return v.(Options)
	}
	return DefaultOptions()
}

// ClassifyEmployee builds one employee-day. events must already belong to
// the employee and the date.
func ClassifyEmployee(employee string, date model.Date, events []model.Event, manual string) model.Classification {
	c := model.Classification{
		EmployeeDayRecord: model.EmployeeDayRecord{Employee: employee, Date: date},
		ManualLabel:       manual,
		EventCount:        len(events),
	}
	if shift, ok := DetectShift(events); ok {
		ws := ResolveWindows(shift, date.Weekday())
		c.Shift = shift
		c.Windows = &ws
		c.Slots = AssignSlots(events, ws)
	}
	c.Status = ClassifyStatus(c.Slots, manual)
	if c.Status.Present() {
		c.Late = IsLate(c.Arrival, c.Shift)
	}
	return c
}

// ClassifyDay classifies every roster employee for one date. Events that
// cannot be attributed are reported as warnings and never affect the rest
// of the roster.
func (e *Engine) ClassifyDay(date model.Date, events []model.Event, manual map[string]string) model.DayReport {
	roster := e.Roster()
	opts := e.options()

	byEmployee, warnings := groupEvents(roster, date, events)
	report := model.DayReport{
		Date:            date,
		Classifications: make([]model.Classification, 0, roster.Len()),
		Warnings:        warnings,
	}
	for _, name := range roster.Names() {
		c := ClassifyEmployee(name, date, byEmployee[name], strings.TrimSpace(manual[name]))
		c.Division = roster.DivisionOf(name)
		report.Classifications = append(report.Classifications, c)
	}
	report.Metrics = Aggregate(date, report.Classifications, manual)
	report.Divisions = DivisionStats(report.Classifications, roster)
	if opts.GapThreshold > 0 {
		for _, name := range roster.Names() {
			report.Anomalies = append(report.Anomalies, DetectGaps(byEmployee[name], opts.GapThreshold)...)
		}
	}
	if e.logger != nil {
		e.logger.Debug("day classified",
			"date", date.String(),
			"total", report.Metrics.Total,
			"present", report.Metrics.Present,
			"late", report.Metrics.Late,
			"warnings", len(report.Warnings),
		)
	}
	return report
}

// ClassifyRange classifies independent days in parallel. Reports come back in
// input order.
func (e *Engine) ClassifyRange(ctx context.Context, days []DayInput) ([]model.DayReport, error) {
	out := make([]model.DayReport, len(days))
	limit := e.options().Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, in := range days {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return fmt.Errorf("classify %s: %w", in.Date, err)
			}
			out[i] = e.ClassifyDay(in.Date, in.Events, in.Manual)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func groupEvents(roster model.Roster, date model.Date, events []model.Event) (map[string][]model.Event, []model.DataWarning) {
	byEmployee := make(map[string][]model.Event)
	var warnings []model.DataWarning
	unknown := make(map[string]struct{})
	for _, ev := range events {
		name := strings.TrimSpace(ev.Employee)
		switch {
		case name == "":
			warnings = append(warnings, model.DataWarning{
				Kind:   model.WarningEmptyName,
				Source: ev.Source,
				Detail: model.ErrEmptyName.Error(),
			})
			continue
		case ev.Timestamp.IsZero():
			warnings = append(warnings, model.DataWarning{
				Kind:     model.WarningInvalidTimestamp,
				Employee: name,
				Source:   ev.Source,
				Detail:   model.ErrInvalidTimestamp.Error(),
			})
			continue
		case model.DateOf(ev.Timestamp) != date:
			continue
		case !roster.Contains(name):
			if _, seen := unknown[name]; !seen {
				unknown[name] = struct{}{}
				warnings = append(warnings, model.DataWarning{
					Kind:     model.WarningUnknownEmployee,
					Employee: name,
					Source:   ev.Source,
					Detail:   model.ErrUnknownEmployee.Error(),
				})
			}
			continue
		}
		ev.Employee = name
		byEmployee[name] = append(byEmployee[name], ev)
	}
	return byEmployee, warnings
}
