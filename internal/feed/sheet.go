package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"shiftwatch/internal/ingest"
	"shiftwatch/internal/model"
	"shiftwatch/internal/normalize"
)

const sheetSource = "sheet"

// SheetFeed reads published spreadsheet CSV exports. The whole sheet is
// downloaded at once, so the parsed snapshot is kept for the cache TTL and
// shared by every date.
type SheetFeed struct {
	eventsURL string
	statusURL string
	client    *http.Client
	loc       *time.Location
	warnings  ingest.WarningSink

	events   *expirable.LRU[string, map[model.Date][]model.Event]
	statuses *expirable.LRU[string, map[model.Date]map[string]string]
}

type SheetOptions struct {
	EventsURL string
	StatusURL string
	Timeout   time.Duration
	CacheTTL  time.Duration
	Location  *time.Location
	Client    *http.Client
	Warnings  ingest.WarningSink
}

func NewSheetFeed(opts SheetOptions) *SheetFeed {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &SheetFeed{
		eventsURL: opts.EventsURL,
		statusURL: opts.StatusURL,
		client:    client,
		loc:       opts.Location,
		warnings:  opts.Warnings,
		events:    expirable.NewLRU[string, map[model.Date][]model.Event](1, nil, ttl),
		statuses:  expirable.NewLRU[string, map[model.Date]map[string]string](1, nil, ttl),
	}
}

func (s *SheetFeed) EventsFor(ctx context.Context, date model.Date) ([]model.Event, error) {
	if s.eventsURL == "" {
		return nil, nil
	}
	byDate, ok := s.events.Get(s.eventsURL)
	if !ok {
		var err error
		byDate, err = s.fetchEvents(ctx)
		if err != nil {
			return nil, err
		}
		s.events.Add(s.eventsURL, byDate)
	}
	return byDate[date], nil
}

func (s *SheetFeed) StatusFor(ctx context.Context, date model.Date) (map[string]string, error) {
	if s.statusURL == "" {
		return map[string]string{}, nil
	}
	byDate, ok := s.statuses.Get(s.statusURL)
	if !ok {
		var err error
		byDate, err = s.fetchStatuses(ctx)
		if err != nil {
			return nil, err
		}
		s.statuses.Add(s.statusURL, byDate)
	}
	out := make(map[string]string, len(byDate[date]))
	for name, label := range byDate[date] {
		out[name] = label
	}
	return out, nil
}

// Refresh forgets the downloaded snapshots.
func (s *SheetFeed) Refresh() {
	s.events.Purge()
	s.statuses.Purge()
}

func (s *SheetFeed) fetchEvents(ctx context.Context) (map[model.Date][]model.Event, error) {
	records, err := s.fetch(ctx, s.eventsURL)
	if err != nil {
		return nil, err
	}
	parser := ingest.NewCSVParser()
	out := make(map[model.Date][]model.Event)
	for i, rec := range records {
		if i == 0 && parser.SetHeader(rec) {
			continue
		}
		fields := parser.Fields(rec)
		fields.Source = sheetSource
		ev, err := normalize.Normalize(*fields, s.loc)
		if err != nil {
			s.warn(err, fields.Name)
			continue
		}
		d := localDate(ev.Timestamp, s.loc)
		out[d] = append(out[d], ev)
	}
	return out, nil
}

func (s *SheetFeed) fetchStatuses(ctx context.Context) (map[model.Date]map[string]string, error) {
	records, err := s.fetch(ctx, s.statusURL)
	if err != nil {
		return nil, err
	}
	parser := ingest.NewStatusParser()
	out := make(map[model.Date]map[string]string)
	for _, rec := range records {
		fields := parser.Record(rec)
		if fields == nil {
			continue
		}
		st, err := normalize.NormalizeStatus(*fields)
		if err != nil {
			s.warn(err, fields.Name)
			continue
		}
		day, ok := out[st.Date]
		if !ok {
			day = make(map[string]string)
			out[st.Date] = day
		}
		day[st.Employee] = st.Label
	}
	return out, nil
}

func (s *SheetFeed) fetch(ctx context.Context, url string) ([][]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sheet: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch sheet: unexpected status %d", resp.StatusCode)
	}
	r := csv.NewReader(resp.Body)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse sheet: %w", err)
	}
	return records, nil
}

func (s *SheetFeed) warn(err error, name string) {
	if s.warnings != nil {
		s.warnings.Add(ingest.WarningFor(err, name, sheetSource))
	}
}
