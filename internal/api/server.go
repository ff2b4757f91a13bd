package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"

	"shiftwatch/internal/config"
	"shiftwatch/internal/ingest"
	"shiftwatch/internal/metrics"
	"shiftwatch/internal/model"
	"shiftwatch/internal/warnings"
)

type ReportService interface {
	Day(ctx context.Context, date model.Date) (model.DayReport, error)
	Range(ctx context.Context, from, to model.Date) ([]model.DayReport, error)
	Trends(ctx context.Context, from, to model.Date) ([]model.WeekTrend, error)
}

type RosterControl interface {
	Roster() model.Roster
	UpdateRoster(model.Roster)
}

// Cache is the feed cache dropped by the refresh endpoint.
type Cache interface {
	Purge()
	Len() int
}

type Deps struct {
	Config   *config.Manager
	Reports  ReportService
	Roster   RosterControl
	Warnings *warnings.Store
	Metrics  *metrics.Store
	Cache    Cache
	Ingest   *ingest.RESTHandler
	// AccessLog receives ECS request records; nil disables request logging.
	AccessLog *slog.Logger
	Logger    *slog.Logger
	Version   string
}

type Server struct {
	cfg       *config.Manager
	reports   ReportService
	roster    RosterControl
	warnings  *warnings.Store
	metrics   *metrics.Store
	cache     Cache
	ingest    *ingest.RESTHandler
	accessLog *slog.Logger
	logger    *slog.Logger
	version   string
}

func NewServer(d Deps) *Server {
	return &Server{
		cfg:       d.Config,
		reports:   d.Reports,
		roster:    d.Roster,
		warnings:  d.Warnings,
		metrics:   d.Metrics,
		cache:     d.Cache,
		ingest:    d.Ingest,
		accessLog: d.AccessLog,
		logger:    d.Logger,
		version:   d.Version,
	}
}

func Start(ctx context.Context, d Deps) *http.Server {
	if d.Config == nil {
		return nil
	}
	current := d.Config.Get().API
	if !current.Enabled {
		if d.Logger != nil {
			d.Logger.Info("api disabled")
		}
		return nil
	}
	if d.Logger != nil {
		d.Logger.Info("api enabled", "addr", current.Addr)
	}
	server := NewServer(d)
	httpServer := &http.Server{
		Addr:              current.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if d.Logger != nil {
				d.Logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	cfg := s.cfg.Get()

	origins := cfg.API.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))
	if s.accessLog != nil {
		r.Use(httplog.RequestLogger(s.accessLog, &httplog.Options{
			Level:         slog.LevelInfo,
			Schema:        httplog.SchemaECS,
			RecoverPanics: true,
		}))
	} else {
		r.Use(chiMiddleware.Recoverer)
	}
	r.Use(chiMiddleware.CleanPath)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		notFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		fail(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	r.Get("/status", s.handleStatus)

	if s.ingest != nil && cfg.Ingest.REST.Enabled {
		r.Post("/events", s.ingest.HandleEvents)
		r.Post("/api/statuses", s.ingest.HandleStatuses)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/reports", func(r chi.Router) {
			r.Get("/", s.handleRange)
			r.Get("/export.xlsx", s.handleRangeWorkbook)
			r.Route("/{date}", func(r chi.Router) {
				r.Get("/", s.handleDay)
				r.Get("/metrics", s.handleDayMetrics)
				r.Get("/export.xlsx", s.handleDayWorkbook)
				r.Get("/export.csv", s.handleDayCSV)
			})
		})
		r.Get("/trends", s.handleTrends)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/metrics/{date}", s.handleMetricsSnapshot)
		r.Get("/roster", s.handleGetRoster)
		r.Put("/roster", s.handlePutRoster)
		r.Get("/warnings", s.handleWarnings)
		r.Route("/admin", func(r chi.Router) {
			r.Post("/refresh", s.handleRefresh)
			r.Post("/clear", s.handleClear)
		})
	})
	return r
}
