package storage

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"shiftwatch/internal/config"
	"shiftwatch/internal/model"
)

// Store persists raw clock events and manual status labels. Classification
// results are never stored; they are recomputed from these rows.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveEvents(ctx context.Context, events []model.Event) (int, error)
	SaveStatuses(ctx context.Context, statuses []model.ManualStatus) error
	EventsFor(ctx context.Context, date model.Date) ([]model.Event, error)
	StatusFor(ctx context.Context, date model.Date) (map[string]string, error)
}

func NewStore(cfg config.StorageConfig, loc *time.Location) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN, loc)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN, loc)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db  *sql.DB
	loc *time.Location
	// numbered rewrites ? placeholders as $n.
	numbered bool
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *baseStore) bind(query string) string {
	if !b.numbered {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

func (b *baseStore) location() *time.Location {
	if b.loc == nil {
		return time.UTC
	}
	return b.loc
}

// SaveEvents inserts events, skipping ones already stored for the same
// employee and instant. It returns how many rows were new.
func (b *baseStore) SaveEvents(ctx context.Context, events []model.Event) (int, error) {
	if b.db == nil || len(events) == 0 {
		return 0, nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, b.bind(
		`INSERT INTO clock_events (employee, event_date, ts_ns, source)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (employee, ts_ns) DO NOTHING`))
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	inserted := 0
	for _, ev := range events {
		local := ev.Timestamp.In(b.location())
		res, err := stmt.ExecContext(ctx,
			ev.Employee,
			model.DateOf(local).String(),
			ev.Timestamp.UnixNano(),
			ev.Source,
		)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// SaveStatuses upserts labels; the latest label for an employee-day wins.
func (b *baseStore) SaveStatuses(ctx context.Context, statuses []model.ManualStatus) error {
	if b.db == nil || len(statuses) == 0 {
		return nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, b.bind(
		`INSERT INTO manual_status (employee, status_date, label, updated_ns)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (employee, status_date) DO UPDATE SET label = excluded.label, updated_ns = excluded.updated_ns`))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	now := nowUTC().UnixNano()
	for _, st := range statuses {
		if _, err := stmt.ExecContext(ctx, st.Employee, st.Date.String(), st.Label, now); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (b *baseStore) EventsFor(ctx context.Context, date model.Date) ([]model.Event, error) {
	if b.db == nil {
		return nil, nil
	}
	rows, err := b.db.QueryContext(ctx, b.bind(
		`SELECT employee, ts_ns, source FROM clock_events WHERE event_date = ? ORDER BY ts_ns, employee`),
		date.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		var (
			ev     model.Event
			tsNano int64
			source sql.NullString
		)
		if err := rows.Scan(&ev.Employee, &tsNano, &source); err != nil {
			return nil, err
		}
		ev.Timestamp = time.Unix(0, tsNano).In(b.location())
		ev.Source = source.String
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (b *baseStore) StatusFor(ctx context.Context, date model.Date) (map[string]string, error) {
	if b.db == nil {
		return nil, nil
	}
	rows, err := b.db.QueryContext(ctx, b.bind(
		`SELECT employee, label FROM manual_status WHERE status_date = ?`), date.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var name, label string
		if err := rows.Scan(&name, &label); err != nil {
			return nil, err
		}
		out[name] = label
	}
	return out, rows.Err()
}

func (b *baseStore) exec(ctx context.Context, stmts []string) error {
	if b.db == nil {
		return nil
	}
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
