package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string, loc *time.Location) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:shiftwatch.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single writer avoids SQLITE_BUSY and keeps :memory: databases on
	// one connection.
	db.SetMaxOpenConns(1)
	return &sqliteStore{baseStore{db: db, loc: loc}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	return s.exec(ctx, []string{
		`CREATE TABLE IF NOT EXISTS clock_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			employee TEXT NOT NULL,
			event_date TEXT NOT NULL,
			ts_ns INTEGER NOT NULL,
			source TEXT,
			UNIQUE (employee, ts_ns)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_clock_events_date ON clock_events(event_date)`,
		`CREATE TABLE IF NOT EXISTS manual_status (
			employee TEXT NOT NULL,
			status_date TEXT NOT NULL,
			label TEXT NOT NULL,
			updated_ns INTEGER NOT NULL,
			PRIMARY KEY (employee, status_date)
		)`,
	})
}
