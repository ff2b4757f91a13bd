package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"shiftwatch/internal/config"
	"shiftwatch/internal/export"
	"shiftwatch/internal/model"
	"shiftwatch/internal/report"
)

type statusResponse struct {
	Status       string       `json:"status"`
	Time         string       `json:"time"`
	Version      string       `json:"version"`
	ConfigPath   string       `json:"config_path"`
	Timezone     string       `json:"timezone"`
	Employees    int          `json:"employees"`
	Warnings     int          `json:"warnings"`
	CacheEntries int          `json:"cache_entries"`
	Ingest       ingestStatus `json:"ingest"`
	Storage      string       `json:"storage,omitempty"`
}

type ingestStatus struct {
	REST      bool `json:"rest"`
	Files     bool `json:"files"`
	TCPStream bool `json:"tcp_stream"`
	Kafka     bool `json:"kafka"`
	Sheet     bool `json:"sheet"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg.Get()
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		Timezone:   cfg.Timezone,
		Ingest: ingestStatus{
			REST:      cfg.Ingest.REST.Enabled,
			Files:     cfg.Ingest.Files.Enabled,
			TCPStream: cfg.Ingest.TCPStream.Enabled,
			Kafka:     cfg.Ingest.Kafka.Enabled,
			Sheet:     cfg.Ingest.Sheet.Enabled,
		},
	}
	if cfg.Storage.Enabled {
		resp.Storage = cfg.Storage.Driver
	}
	if s.roster != nil {
		resp.Employees = s.roster.Roster().Len()
	}
	if s.warnings != nil {
		resp.Warnings = s.warnings.Len()
	}
	if s.cache != nil {
		resp.CacheEntries = s.cache.Len()
	}
	success(w, resp)
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	rep, err := s.reports.Day(r.Context(), date)
	if err != nil {
		s.reportError(w, err)
		return
	}
	success(w, rep)
}

func (s *Server) handleDayMetrics(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	rep, err := s.reports.Day(r.Context(), date)
	if err != nil {
		s.reportError(w, err)
		return
	}
	success(w, map[string]any{
		"metrics":   rep.Metrics,
		"divisions": rep.Divisions,
	})
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	from, to, ok := s.rangeParams(w, r)
	if !ok {
		return
	}
	reps, err := s.reports.Range(r.Context(), from, to)
	if err != nil {
		s.reportError(w, err)
		return
	}
	successWithMeta(w, reps, &meta{Count: len(reps), From: from.String(), To: to.String()})
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	from, to, ok := s.rangeParams(w, r)
	if !ok {
		return
	}
	trends, err := s.reports.Trends(r.Context(), from, to)
	if err != nil {
		s.reportError(w, err)
		return
	}
	successWithMeta(w, trends, &meta{Count: len(trends), From: from.String(), To: to.String()})
}

func (s *Server) handleDayWorkbook(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	rep, err := s.reports.Day(r.Context(), date)
	if err != nil {
		s.reportError(w, err)
		return
	}
	s.writeWorkbook(w, export.Filename(date, date, "xlsx"), rep)
}

func (s *Server) handleRangeWorkbook(w http.ResponseWriter, r *http.Request) {
	from, to, ok := s.rangeParams(w, r)
	if !ok {
		return
	}
	reps, err := s.reports.Range(r.Context(), from, to)
	if err != nil {
		s.reportError(w, err)
		return
	}
	s.writeWorkbook(w, export.Filename(from, to, "xlsx"), reps...)
}

func (s *Server) writeWorkbook(w http.ResponseWriter, filename string, reps ...model.DayReport) {
	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, reps...); err != nil {
		if s.logger != nil {
			s.logger.Error("workbook export failed", "err", err)
		}
		internalError(w, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = io.Copy(w, &buf)
}

func (s *Server) handleDayCSV(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	rep, err := s.reports.Day(r.Context(), date)
	if err != nil {
		s.reportError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(date, date, "csv")+`"`)
	if err := export.WriteCSV(w, rep); err != nil && s.logger != nil {
		s.logger.Error("csv export failed", "err", err)
	}
}

// handleMetrics lists the latest metrics computed per date.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		successWithMeta(w, []any{}, &meta{})
		return
	}
	all := s.metrics.All()
	successWithMeta(w, all, &meta{Count: len(all)})
}

func (s *Server) handleMetricsSnapshot(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	if s.metrics == nil {
		notFound(w, "no metrics computed for "+date.String())
		return
	}
	snap, found := s.metrics.Get(date)
	if !found {
		notFound(w, "no metrics computed for "+date.String())
		return
	}
	success(w, snap)
}

type rosterResponse struct {
	Employees []string         `json:"employees"`
	Divisions []model.Division `json:"divisions"`
}

func (s *Server) handleGetRoster(w http.ResponseWriter, r *http.Request) {
	roster := s.roster.Roster()
	success(w, rosterResponse{Employees: roster.Names(), Divisions: roster.Divisions()})
}

// handlePutRoster replaces the divisions, persists them to the config file
// and swaps the roster in the engine.
func (s *Server) handlePutRoster(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		badRequest(w, "unreadable body")
		return
	}
	var req config.RosterConfig
	if err := json.Unmarshal(body, &req); err != nil {
		badRequest(w, "invalid roster json")
		return
	}
	for i := range req.Divisions {
		req.Divisions[i].Members = sanitizeNames(req.Divisions[i].Members)
	}
	if err := s.cfg.Update(func(c *config.Config) { c.Roster = req }); err != nil {
		badRequest(w, err.Error())
		return
	}
	roster := s.cfg.Get().BuildRoster()
	s.roster.UpdateRoster(roster)
	if s.cache != nil {
		s.cache.Purge()
	}
	if s.logger != nil {
		s.logger.Info("roster updated", "employees", roster.Len(), "divisions", len(roster.Divisions()))
	}
	success(w, rosterResponse{Employees: roster.Names(), Divisions: roster.Divisions()})
}

func (s *Server) handleWarnings(w http.ResponseWriter, r *http.Request) {
	if s.warnings == nil {
		successWithMeta(w, []model.DataWarning{}, &meta{})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(w, "limit must be an integer")
			return
		}
		limit = n
	}
	var list []model.DataWarning
	if since := r.URL.Query().Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			badRequest(w, "since must be RFC3339")
			return
		}
		list = s.warnings.Since(ts)
	} else {
		list = s.warnings.List(limit)
	}
	successWithMeta(w, list, &meta{Count: len(list)})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.cache != nil {
		s.cache.Purge()
	}
	success(w, map[string]string{"status": "ok"})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	var req struct {
		Target string `json:"target"`
	}
	_ = json.Unmarshal(body, &req)
	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = "all"
	}
	switch target {
	case "all":
		if s.cache != nil {
			s.cache.Purge()
		}
		if s.warnings != nil {
			s.warnings.Clear()
		}
		if s.metrics != nil {
			s.metrics.Clear()
		}
	case "metrics":
		if s.metrics != nil {
			s.metrics.Clear()
		}
	case "warnings":
		if s.warnings != nil {
			s.warnings.Clear()
		}
	case "cache":
		if s.cache != nil {
			s.cache.Purge()
		}
	default:
		badRequest(w, "target must be all, warnings, metrics or cache")
		return
	}
	success(w, map[string]string{"status": "ok"})
}

// dateParam reads {date}; "today" resolves in the configured timezone.
func (s *Server) dateParam(w http.ResponseWriter, r *http.Request) (model.Date, bool) {
	d, err := s.parseDate(chi.URLParam(r, "date"))
	if err != nil {
		badRequest(w, err.Error())
		return model.Date{}, false
	}
	return d, true
}

func (s *Server) rangeParams(w http.ResponseWriter, r *http.Request) (model.Date, model.Date, bool) {
	q := r.URL.Query()
	from, err := s.parseDate(q.Get("from"))
	if err != nil {
		badRequest(w, "from: "+err.Error())
		return model.Date{}, model.Date{}, false
	}
	to := from
	if v := q.Get("to"); v != "" {
		if to, err = s.parseDate(v); err != nil {
			badRequest(w, "to: "+err.Error())
			return model.Date{}, model.Date{}, false
		}
	}
	return from, to, true
}

func (s *Server) parseDate(v string) (model.Date, error) {
	if strings.EqualFold(strings.TrimSpace(v), "today") {
		return model.DateOf(time.Now().In(s.cfg.Get().Location())), nil
	}
	d, err := model.ParseDate(v)
	if err != nil {
		return model.Date{}, errors.Join(model.ErrInvalidDate, err)
	}
	return d, nil
}

func (s *Server) reportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, report.ErrInvalidRange), errors.Is(err, report.ErrRangeTooLong), errors.Is(err, model.ErrInvalidDate):
		badRequest(w, err.Error())
	default:
		if s.logger != nil {
			s.logger.Error("report failed", "err", err)
		}
		internalError(w, "report failed")
	}
}

func sanitizeNames(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
