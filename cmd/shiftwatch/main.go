package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"shiftwatch/internal/api"
	"shiftwatch/internal/config"
	"shiftwatch/internal/engine"
	"shiftwatch/internal/export"
	"shiftwatch/internal/feed"
	"shiftwatch/internal/ingest"
	"shiftwatch/internal/logging"
	"shiftwatch/internal/metrics"
	"shiftwatch/internal/model"
	"shiftwatch/internal/report"
	"shiftwatch/internal/storage"
	"shiftwatch/internal/warnings"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "shiftwatch.yaml", "path to YAML or JSON config")
	envFile := flag.String("env", ".env", "dotenv file loaded before the config")
	exportRange := flag.String("export", "", "write a workbook for DATE or FROM:TO and exit")
	outPath := flag.String("out", "", "output path for -export")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, "dotenv:", err)
		os.Exit(1)
	}

	mgr, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	cfg := mgr.Get()
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, mgr, logger, *exportRange, *outPath); err != nil {
		logger.Error("shiftwatch stopped", "err", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Manager, error) {
	path = config.ResolvePath(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.NewStaticManager(nil), nil
	}
	return config.NewManager(path)
}

func run(ctx context.Context, mgr *config.Manager, logger *slog.Logger, exportRange, outPath string) error {
	cfg := mgr.Get()
	loc := cfg.Location()

	eng := engine.NewEngine(cfg.BuildRoster(), engineOptions(cfg), logger)
	warns := warnings.NewStore(cfg.Warnings.StoreLimit, cfg.Warnings.Cooldown)
	snapshots := metrics.NewStore(0)

	var sink ingest.Sink
	var primary feed.Source
	if cfg.Storage.Enabled {
		store, err := storage.NewStore(cfg.Storage, loc)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Init(ctx); err != nil {
			return err
		}
		sink, primary = store, store
		logger.Info("storage ready", "driver", cfg.Storage.Driver)
	} else {
		mem := feed.NewMemoryFeed(loc)
		sink, primary = mem, mem
	}

	sources := feed.Multi{primary}
	var sheet *feed.SheetFeed
	if cfg.Ingest.Sheet.Enabled {
		sheet = feed.NewSheetFeed(feed.SheetOptions{
			EventsURL: cfg.Ingest.Sheet.EventsURL,
			StatusURL: cfg.Ingest.Sheet.StatusURL,
			Timeout:   cfg.Ingest.Sheet.Timeout,
			CacheTTL:  cfg.Cache.TTL,
			Location:  loc,
			Warnings:  warns,
		})
		sources = append(sources, sheet)
	}
	cache := feed.NewCachedFeed(sources, cfg.Cache.Size, cfg.Cache.TTL)

	reports := report.NewService(eng, cache, warns, cfg.API.MaxRangeDays, logger).WithMetrics(snapshots)

	if exportRange != "" {
		return writeExport(ctx, reports, exportRange, outPath, logger)
	}

	events := make(chan model.Event, cfg.Ingest.ChannelBuffer)
	collector := ingest.NewCollector(events, sink, cfg.Ingest.DedupeWindow, cfg.Ingest.FlushInterval, logger)
	collector.OnFlush = func(f ingest.Flush) {
		cache.Invalidate(f.Dates...)
		logger.Info("events stored", "batch_id", f.BatchID, "received", f.Received, "stored", f.Stored)
	}
	done := make(chan error, 1)
	go func() { done <- collector.Run(ctx) }()

	pipeline := ingest.NewPipeline(mgr, events, sink, warns, logger)
	pipeline.OnStatuses = func(dates []model.Date) { cache.Invalidate(dates...) }
	pipeline.Start(ctx)

	api.Start(ctx, api.Deps{
		Config:    mgr,
		Reports:   reports,
		Roster:    eng,
		Warnings:  warns,
		Metrics:   snapshots,
		Cache:     refresher{cache: cache, sheet: sheet},
		Ingest:    pipeline.REST(),
		AccessLog: logging.NewRequestLogger(os.Stdout, cfg.LogLevel),
		Logger:    logger,
		Version:   version,
	})

	if mgr.Path() != "" {
		go mgr.Watch(5*time.Second, func(next *config.Config) {
			eng.UpdateRoster(next.BuildRoster())
			eng.UpdateOptions(engineOptions(next))
			cache.Purge()
			logger.Info("config reloaded", "employees", eng.Roster().Len())
		}, func(err error) {
			logger.Error("config reload failed", "err", err)
		}, ctx.Done())
	}

	logger.Info("shiftwatch started", "version", version, "timezone", loc.String(), "employees", eng.Roster().Len())
	<-ctx.Done()
	logger.Info("shutting down")
	return <-done
}

func engineOptions(cfg *config.Config) engine.Options {
	return engine.Options{
		GapThreshold: cfg.Analytics.GapThreshold,
		Parallelism:  cfg.Analytics.Parallelism,
	}
}

func writeExport(ctx context.Context, reports *report.Service, dates, outPath string, logger *slog.Logger) error {
	from, to, err := parseRange(dates)
	if err != nil {
		return err
	}
	reps, err := reports.Range(ctx, from, to)
	if err != nil {
		return err
	}
	if outPath == "" {
		outPath = export.Filename(from, to, "xlsx")
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := export.WriteWorkbook(f, reps...); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("workbook written", "path", outPath, "days", len(reps))
	return nil
}

func parseRange(value string) (model.Date, model.Date, error) {
	fromRaw, toRaw, found := strings.Cut(value, ":")
	from, err := model.ParseDate(fromRaw)
	if err != nil {
		return model.Date{}, model.Date{}, err
	}
	if !found {
		return from, from, nil
	}
	to, err := model.ParseDate(toRaw)
	if err != nil {
		return model.Date{}, model.Date{}, err
	}
	return from, to, nil
}

// refresher drops both the per-date cache and the sheet snapshot.
type refresher struct {
	cache *feed.CachedFeed
	sheet *feed.SheetFeed
}

func (r refresher) Purge() {
	r.cache.Purge()
	if r.sheet != nil {
		r.sheet.Refresh()
	}
}

func (r refresher) Len() int { return r.cache.Len() }
