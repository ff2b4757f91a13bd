package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"shiftwatch/internal/model"
)

type Config struct {
	LogLevel  string          `json:"log_level" yaml:"log_level"`
	Timezone  string          `json:"timezone" yaml:"timezone"`
	Roster    RosterConfig    `json:"roster" yaml:"roster"`
	Ingest    IngestConfig    `json:"ingest" yaml:"ingest"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	API       APIConfig       `json:"api" yaml:"api"`
	Analytics AnalyticsConfig `json:"analytics" yaml:"analytics"`
	Warnings  WarningsConfig  `json:"warnings" yaml:"warnings"`
}

type RosterConfig struct {
	Divisions []model.Division `json:"divisions" yaml:"divisions"`
}

type IngestConfig struct {
	ChannelBuffer int             `json:"channel_buffer" yaml:"channel_buffer"`
	FlushInterval time.Duration   `json:"flush_interval" yaml:"flush_interval"`
	DedupeWindow  time.Duration   `json:"dedupe_window" yaml:"dedupe_window"`
	REST          RESTConfig      `json:"rest" yaml:"rest"`
	TCPStream     TCPStreamConfig `json:"tcp_stream" yaml:"tcp_stream"`
	Files         FilesConfig     `json:"files" yaml:"files"`
	Kafka         KafkaConfig     `json:"kafka" yaml:"kafka"`
	Sheet         SheetConfig     `json:"sheet" yaml:"sheet"`
}

type RESTConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

type TCPStreamConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type FilesConfig struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	EventPaths  []string `json:"event_paths" yaml:"event_paths"`
	StatusPaths []string `json:"status_paths" yaml:"status_paths"`
	StartAtEnd  bool     `json:"start_at_end" yaml:"start_at_end"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

// SheetConfig points at published spreadsheet CSV exports.
type SheetConfig struct {
	Enabled   bool          `json:"enabled" yaml:"enabled"`
	EventsURL string        `json:"events_url" yaml:"events_url"`
	StatusURL string        `json:"status_url" yaml:"status_url"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type CacheConfig struct {
	TTL  time.Duration `json:"ttl" yaml:"ttl"`
	Size int           `json:"size" yaml:"size"`
}

type APIConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	Addr           string   `json:"addr" yaml:"addr"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
	MaxRangeDays   int      `json:"max_range_days" yaml:"max_range_days"`
}

type AnalyticsConfig struct {
	GapThreshold time.Duration `json:"gap_threshold" yaml:"gap_threshold"`
	Parallelism  int           `json:"parallelism" yaml:"parallelism"`
}

type WarningsConfig struct {
	StoreLimit int           `json:"store_limit" yaml:"store_limit"`
	Cooldown   time.Duration `json:"cooldown" yaml:"cooldown"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Timezone: "UTC",
		Ingest: IngestConfig{
			ChannelBuffer: 10000,
			FlushInterval: time.Second,
			DedupeWindow:  10 * time.Minute,
			REST:          RESTConfig{Enabled: true},
			TCPStream:     TCPStreamConfig{Enabled: false, Addr: ":9000"},
			Files:         FilesConfig{Enabled: false},
			Kafka:         KafkaConfig{Enabled: false},
			Sheet:         SheetConfig{Enabled: false, Timeout: 15 * time.Second},
		},
		Storage:   StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:shiftwatch.db?_pragma=busy_timeout(5000)"},
		Cache:     CacheConfig{TTL: 10 * time.Second, Size: 100},
		API:       APIConfig{Enabled: true, Addr: ":8080", MaxRangeDays: 62},
		Analytics: AnalyticsConfig{GapThreshold: 12 * time.Hour},
		Warnings:  WarningsConfig{StoreLimit: 1000, Cooldown: time.Minute},
	}
}

func Load(path string) (*Config, error) {
	_, live, err := loadFile(path)
	return live, err
}

// loadFile returns the config as written on disk (defaults applied) and the
// live config with environment overrides on top.
func loadFile(path string) (*Config, *Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}
	live, err := Parse(content)
	if err != nil {
		return nil, nil, err
	}
	file, err := decode(content)
	if err != nil {
		return nil, nil, err
	}
	applyDefaults(file)
	return file, live, nil
}

// Parse decodes YAML or JSON on top of the defaults, then applies
// environment overrides.
func Parse(content []byte) (*Config, error) {
	cfg, err := decode(content)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(content []byte) (*Config, error) {
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = 10000
	}
	if cfg.Ingest.FlushInterval <= 0 {
		cfg.Ingest.FlushInterval = time.Second
	}
	if cfg.Ingest.Sheet.Timeout <= 0 {
		cfg.Ingest.Sheet.Timeout = 15 * time.Second
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = 10 * time.Second
	}
	if cfg.Cache.Size <= 0 {
		cfg.Cache.Size = 100
	}
	if cfg.API.MaxRangeDays <= 0 {
		cfg.API.MaxRangeDays = 62
	}
	if cfg.Warnings.StoreLimit <= 0 {
		cfg.Warnings.StoreLimit = 1000
	}
}

func Validate(cfg *Config) error {
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.REST.Enabled && !cfg.API.Enabled {
		return errors.New("ingest.rest requires api.enabled")
	}
	if cfg.Ingest.TCPStream.Enabled && cfg.Ingest.TCPStream.Addr == "" {
		return errors.New("ingest.tcp_stream.addr required when ingest.tcp_stream.enabled is true")
	}
	if cfg.Ingest.Files.Enabled && len(cfg.Ingest.Files.EventPaths) == 0 && len(cfg.Ingest.Files.StatusPaths) == 0 {
		return errors.New("ingest.files requires event_paths or status_paths")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Ingest.Sheet.Enabled && cfg.Ingest.Sheet.EventsURL == "" {
		return errors.New("ingest.sheet.events_url required when ingest.sheet.enabled is true")
	}
	if cfg.Storage.Enabled {
		switch strings.ToLower(cfg.Storage.Driver) {
		case "sqlite", "postgres", "postgresql":
		default:
			return fmt.Errorf("storage.driver %q unsupported", cfg.Storage.Driver)
		}
	}
	seen := make(map[string]struct{}, len(cfg.Roster.Divisions))
	for _, div := range cfg.Roster.Divisions {
		if strings.TrimSpace(div.Name) == "" {
			return errors.New("roster.divisions entries need a name")
		}
		if _, dup := seen[div.Name]; dup {
			return fmt.Errorf("division %s already registered", div.Name)
		}
		seen[div.Name] = struct{}{}
	}
	if cfg.Analytics.GapThreshold < 0 {
		return errors.New("analytics.gap_threshold must be >= 0")
	}
	return nil
}

// Location resolves the configured timezone; Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

func (c *Config) BuildRoster() model.Roster {
	return model.NewRoster(c.Roster.Divisions)
}

// Manager holds the live config. Get is lock-free; mu guards the on-disk
// copy and its modTime. Only the on-disk copy is ever saved, so values that
// came from the environment stay out of the file.
type Manager struct {
	path    string
	cfg     atomic.Value
	mu      sync.Mutex
	file    *Config
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	file, live, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path, file: file}
	m.cfg.Store(live)
	m.mu.Lock()
	m.statLocked()
	m.mu.Unlock()
	return m, nil
}

// NewStaticManager wraps an in-memory config; Reload and Watch are no-ops
// without a path.
func NewStaticManager(cfg *Config) *Manager {
	m := &Manager{}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	if m.path == "" {
		return m.Get(), nil
	}
	file, live, err := loadFile(m.path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.file = file
	m.cfg.Store(live)
	m.statLocked()
	return live, nil
}

// Update applies mutate to a copy of the live config and, when the manager
// is file backed, to a copy of the on-disk config, which is then saved.
func (m *Manager) Update(mutate func(*Config)) error {
	if mutate == nil {
		return errors.New("nil config update")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	live := *m.Get()
	mutate(&live)
	if err := Validate(&live); err != nil {
		return err
	}
	if m.path != "" {
		file := DefaultConfig()
		if m.file != nil {
			copied := *m.file
			file = &copied
		}
		mutate(file)
		if err := Save(m.path, file); err != nil {
			return err
		}
		m.file = file
	}
	m.cfg.Store(&live)
	m.statLocked()
	return nil
}

func (m *Manager) statLocked() {
	if m.path == "" {
		return
	}
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
