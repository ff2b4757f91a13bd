package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftwatch/internal/model"
)

const sampleYAML = `
log_level: debug
timezone: Asia/Jakarta
roster:
  divisions:
    - name: Operations
      code: OPS
      color: "#1F77B4"
      priority: 2
      members: [Eko, Patra]
    - name: Finance
      code: FIN
      priority: 1
      members: [Yus, " Eko "]
ingest:
  sheet:
    enabled: true
    events_url: https://example.test/events.csv
storage:
  enabled: true
  driver: sqlite
  dsn: "file::memory:"
analytics:
  gap_threshold: 6h
`

func TestParseYAMLAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "Asia/Jakarta", cfg.Location().String())
	assert.Equal(t, 6*time.Hour, cfg.Analytics.GapThreshold)
	assert.Equal(t, 10*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 100, cfg.Cache.Size)
	assert.Equal(t, 62, cfg.API.MaxRangeDays)
	assert.Equal(t, 15*time.Second, cfg.Ingest.Sheet.Timeout)

	roster := cfg.BuildRoster()
	assert.Equal(t, []string{"Yus", "Eko", "Patra"}, roster.Names())
	assert.Equal(t, "Finance", roster.DivisionOf("Eko"))
}

func TestParseJSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"timezone":"UTC","api":{"enabled":true,"addr":":9090"}}`))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.API.Addr)
	assert.True(t, cfg.Ingest.REST.Enabled)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"empty":        "   ",
		"timezone":     "timezone: Mars/Olympus",
		"storage":      "storage: {enabled: true, driver: oracle}",
		"kafka":        "ingest: {kafka: {enabled: true}}",
		"sheet":        "ingest: {sheet: {enabled: true}}",
		"dup division": "roster: {divisions: [{name: A}, {name: A}]}",
		"rest w/o api": "api: {enabled: false}",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SHIFTWATCH_STORAGE_DSN", "postgres://localhost/shiftwatch")
	t.Setenv("SHIFTWATCH_STORAGE_DRIVER", "postgres")
	t.Setenv("SHIFTWATCH_KAFKA_BROKERS", "a:9092, b:9092,")

	cfg, err := Parse([]byte("log_level: info"))
	require.NoError(t, err)
	assert.True(t, cfg.Storage.Enabled)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Ingest.Kafka.Brokers)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SHIFTWATCH_TEST_DOTENV=loaded\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("SHIFTWATCH_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("SHIFTWATCH_TEST_DOTENV"))
	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestManagerReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shiftwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o644))

	m, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, "info", m.Get().LogLevel)

	require.NoError(t, m.Update(func(c *Config) { c.LogLevel = "warn" }))

	reloaded, err := m.Reload()
	require.NoError(t, err)
	assert.Equal(t, "warn", reloaded.LogLevel)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))
	needs, err := m.NeedsReload()
	require.NoError(t, err)
	assert.True(t, needs)
}

func TestStaticManager(t *testing.T) {
	m := NewStaticManager(nil)
	assert.Equal(t, "info", m.Get().LogLevel)
	needs, err := m.NeedsReload()
	require.NoError(t, err)
	assert.False(t, needs)
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "shiftwatch.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jakarta", cfg.Timezone)
	assert.Equal(t, 12*time.Hour, cfg.Analytics.GapThreshold)
	assert.Equal(t, 5, cfg.BuildRoster().Len())
	assert.True(t, cfg.Storage.Enabled)
}

func TestUpdateKeepsEnvOverridesOutOfFile(t *testing.T) {
	t.Setenv("SHIFTWATCH_STORAGE_DSN", "postgres://admin:s3cret@db/shiftwatch")
	t.Setenv("SHIFTWATCH_STORAGE_DRIVER", "postgres")
	dir := t.TempDir()
	path := filepath.Join(dir, "shiftwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o644))

	m, err := NewManager(path)
	require.NoError(t, err)
	require.True(t, m.Get().Storage.Enabled)

	err = m.Update(func(c *Config) {
		c.Roster.Divisions = []model.Division{{Name: "Finance", Members: []string{"Yus"}}}
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "s3cret")
	assert.Contains(t, string(raw), "Finance")

	onDisk, err := decode(raw)
	require.NoError(t, err)
	assert.False(t, onDisk.Storage.Enabled)
	assert.Equal(t, "sqlite", strings.ToLower(onDisk.Storage.Driver))

	live := m.Get()
	assert.Equal(t, "postgres://admin:s3cret@db/shiftwatch", live.Storage.DSN)
	assert.Equal(t, []string{"Yus"}, live.BuildRoster().Names())
}

func TestUpdateRejectsInvalidConfig(t *testing.T) {
	m := NewStaticManager(nil)
	err := m.Update(func(c *Config) { c.Timezone = "Mars/Olympus" })
	assert.Error(t, err)
	assert.Equal(t, "UTC", m.Get().Timezone)
}
