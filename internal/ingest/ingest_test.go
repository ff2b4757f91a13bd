package ingest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftwatch/internal/config"
	"shiftwatch/internal/model"
)

type memorySink struct {
	mu       sync.Mutex
	events   []model.Event
	statuses []model.ManualStatus
	fail     error
}

func (s *memorySink) SaveEvents(_ context.Context, events []model.Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return 0, s.fail
	}
	s.events = append(s.events, events...)
	return len(events), nil
}

func (s *memorySink) SaveStatuses(_ context.Context, statuses []model.ManualStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, statuses...)
	return nil
}

func (s *memorySink) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type warningList struct {
	mu   sync.Mutex
	list []model.DataWarning
}

func (w *warningList) Add(dw model.DataWarning) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.list = append(w.list, dw)
	return true
}

func newTestPipeline(buffer int) (*Pipeline, chan model.Event, *memorySink, *warningList) {
	cfg := config.DefaultConfig()
	cfg.Timezone = "Asia/Jakarta"
	out := make(chan model.Event, buffer)
	sink := &memorySink{}
	warns := &warningList{}
	return NewPipeline(config.NewStaticManager(cfg), out, sink, warns, nil), out, sink, warns
}

func TestRESTEvents(t *testing.T) {
	p, out, _, warns := newTestPipeline(10)
	body := `[{"name":"Eko","timestamp":"2025-01-06 07:01:00"},{"name":"","timestamp":"2025-01-06 07:02:00"},{"name":"Yus","timestamp":"soon"}]`
	rec := httptest.NewRecorder()
	p.REST().HandleEvents(rec, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"accepted":1,"failed":2}`, rec.Body.String())
	require.Len(t, out, 1)
	ev := <-out
	assert.Equal(t, "Eko", ev.Employee)
	assert.Equal(t, "rest", ev.Source)
	assert.Equal(t, "Asia/Jakarta", ev.Timestamp.Location().String())

	require.Len(t, warns.list, 2)
	assert.Equal(t, model.WarningEmptyName, warns.list[0].Kind)
	assert.Equal(t, model.WarningInvalidTimestamp, warns.list[1].Kind)
	assert.Equal(t, "Yus", warns.list[1].Employee)
}

func TestRESTRejectsBadBodies(t *testing.T) {
	p, _, _, _ := newTestPipeline(1)
	for _, body := range []string{"", "   ", "{not json"} {
		rec := httptest.NewRecorder()
		p.REST().HandleEvents(rec, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
	rec := httptest.NewRecorder()
	p.REST().HandleEvents(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRESTStatuses(t *testing.T) {
	p, _, sink, warns := newTestPipeline(1)
	body := `[{"employee":"Eko","date":"2025-01-10","label":"izin"},{"employee":"Yus","date":"2025-01-10","label":""}]`
	rec := httptest.NewRecorder()
	p.REST().HandleStatuses(rec, httptest.NewRequest(http.MethodPost, "/statuses", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"accepted":1,"failed":1}`, rec.Body.String())
	require.Len(t, sink.statuses, 1)
	assert.Equal(t, "IZIN", sink.statuses[0].Label)
	require.Len(t, warns.list, 1)
	assert.Equal(t, model.WarningInvalidStatus, warns.list[0].Kind)
}

func TestSavedStatusesReportTheirDates(t *testing.T) {
	p, _, _, _ := newTestPipeline(1)
	var touched []model.Date
	p.OnStatuses = func(dates []model.Date) { touched = append(touched, dates...) }

	body := `[{"employee":"Eko","date":"2025-01-10","label":"izin"},{"employee":"Yus","date":"2025-01-10","label":"sakit"}]`
	rec := httptest.NewRecorder()
	p.REST().HandleStatuses(rec, httptest.NewRequest(http.MethodPost, "/statuses", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []model.Date{model.NewDate(2025, time.January, 10)}, touched)

	path := filepath.Join(t.TempDir(), "status.csv")
	require.NoError(t, os.WriteFile(path, []byte("Eko,1/13/2025,Cuti\n"), 0o644))
	n, err := p.LoadStatusFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []model.Date{model.NewDate(2025, time.January, 10), model.NewDate(2025, time.January, 13)}, touched)
}

func TestReadStatuses(t *testing.T) {
	p, _, _, warns := newTestPipeline(1)
	data := "Nama Karyawan,Tanggal,Keterangan\nEko,1/10/2025,Izin\n,1/10/2025,Sakit\nYus,someday,Cuti\n"
	got, err := p.ReadStatuses(strings.NewReader(data), "file")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.NewDate(2025, time.January, 10), got[0].Date)
	assert.Len(t, warns.list, 2)
}

func TestSendNonBlockingDropsWhenFull(t *testing.T) {
	out := make(chan model.Event, 1)
	ctx := context.Background()
	assert.True(t, SendNonBlocking(ctx, out, model.Event{Employee: "A"}, nil))
	assert.False(t, SendNonBlocking(ctx, out, model.Event{Employee: "B"}, nil))
}

func TestCollectorDedupesAndFlushes(t *testing.T) {
	in := make(chan model.Event, 10)
	sink := &memorySink{}
	c := NewCollector(in, sink, time.Minute, time.Hour, nil)
	var flushed []model.Date
	var batches []Flush
	c.OnFlush = func(f Flush) {
		batches = append(batches, f)
		flushed = append(flushed, f.Dates...)
	}

	ts := time.Date(2025, 1, 6, 7, 1, 0, 0, time.UTC)
	in <- model.Event{Employee: "Eko", Timestamp: ts, Source: "kafka"}
	in <- model.Event{Employee: "Eko", Timestamp: ts, Source: "kafka"}
	in <- model.Event{Employee: "Yus", Timestamp: ts.AddDate(0, 0, 1)}
	close(in)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 2, sink.eventCount())
	assert.ElementsMatch(t, []model.Date{model.NewDate(2025, time.January, 6), model.NewDate(2025, time.January, 7)}, flushed)
	require.Len(t, batches, 1)
	assert.NotEmpty(t, batches[0].BatchID)
	assert.Equal(t, 2, batches[0].Received)
	assert.Equal(t, 2, batches[0].Stored)
}

func TestCollectorWithoutWindowKeepsRedeliveries(t *testing.T) {
	in := make(chan model.Event, 10)
	sink := &memorySink{}
	c := NewCollector(in, sink, 0, time.Hour, nil)

	ts := time.Date(2025, 1, 6, 7, 1, 0, 0, time.UTC)
	in <- model.Event{Employee: "Eko", Timestamp: ts}
	in <- model.Event{Employee: "Eko", Timestamp: ts}
	close(in)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 2, sink.eventCount())
}

func TestCollectorFlushesOnCancel(t *testing.T) {
	in := make(chan model.Event, 1)
	sink := &memorySink{}
	c := NewCollector(in, sink, 0, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	in <- model.Event{Employee: "Eko", Timestamp: time.Now()}
	require.Eventually(t, func() bool { return len(in) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 1, sink.eventCount())
}

func TestTCPStream(t *testing.T) {
	p, out, _, _ := newTestPipeline(10)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.serveTCP(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	_, err = fmt.Fprint(conn, "2025-01-06 07:01:00 name=Eko\n2025-01-06 12:05:00 name=Eko\n")
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return len(out) == 2 }, 2*time.Second, 10*time.Millisecond)
	ev := <-out
	assert.Equal(t, "tcp_stream", ev.Source)
}

func TestWarningFor(t *testing.T) {
	w := WarningFor(fmt.Errorf("wrap: %w", model.ErrUnknownEmployee), "Ghost", "sheet")
	assert.Equal(t, model.WarningUnknownEmployee, w.Kind)
	assert.Equal(t, "Ghost", w.Employee)
}
