package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string, loc *time.Location) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/shiftwatch?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db, loc: loc, numbered: true}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	return s.exec(ctx, []string{
		`CREATE TABLE IF NOT EXISTS clock_events (
			id BIGSERIAL PRIMARY KEY,
			employee TEXT NOT NULL,
			event_date DATE NOT NULL,
			ts_ns BIGINT NOT NULL,
			source TEXT,
			UNIQUE (employee, ts_ns)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_clock_events_date ON clock_events(event_date)`,
		`CREATE TABLE IF NOT EXISTS manual_status (
			employee TEXT NOT NULL,
			status_date DATE NOT NULL,
			label TEXT NOT NULL,
			updated_ns BIGINT NOT NULL,
			PRIMARY KEY (employee, status_date)
		)`,
	})
}
