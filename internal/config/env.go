package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv reads .env files into the process environment. Missing files
// are not an error; variables already set win.
func LoadDotEnv(paths ...string) error {
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(paths) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
	} else if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func applyEnv(cfg *Config) {
	if v := getEnv("SHIFTWATCH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("SHIFTWATCH_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	if v := getEnv("SHIFTWATCH_API_ADDR"); v != "" {
		cfg.API.Addr = v
	}
	if v := getEnv("SHIFTWATCH_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := getEnv("SHIFTWATCH_STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
		cfg.Storage.Enabled = true
	}
	if v := getEnvSlice("SHIFTWATCH_KAFKA_BROKERS"); len(v) > 0 {
		cfg.Ingest.Kafka.Brokers = v
	}
	if v := getEnv("SHIFTWATCH_SHEET_EVENTS_URL"); v != "" {
		cfg.Ingest.Sheet.EventsURL = v
	}
	if v := getEnv("SHIFTWATCH_SHEET_STATUS_URL"); v != "" {
		cfg.Ingest.Sheet.StatusURL = v
	}
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func getEnvSlice(key string) []string {
	raw := getEnv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
