package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"shiftwatch/internal/config"
	"shiftwatch/internal/engine"
	"shiftwatch/internal/feed"
	"shiftwatch/internal/ingest"
	"shiftwatch/internal/metrics"
	"shiftwatch/internal/model"
	"shiftwatch/internal/report"
	"shiftwatch/internal/warnings"
)

var monday = model.NewDate(2025, time.January, 6)

type fixture struct {
	handler http.Handler
	mem     *feed.MemoryFeed
	events  chan model.Event
	eng     *engine.Engine
	warns   *warnings.Store
	metrics *metrics.Store
	cache   *feed.CachedFeed
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Roster.Divisions = []model.Division{
		{Name: "Ops", Code: "OPS", Priority: 1, Members: []string{"A", "B"}},
		{Name: "Finance", Code: "FIN", Priority: 2, Members: []string{"C"}},
	}
	mgr := config.NewStaticManager(cfg)
	mem := feed.NewMemoryFeed(time.UTC)
	cache := feed.NewCachedFeed(mem, 10, time.Minute)
	eng := engine.NewEngine(cfg.BuildRoster(), engine.DefaultOptions(), nil)
	warns := warnings.NewStore(100, 0)
	events := make(chan model.Event, 10)
	pipeline := ingest.NewPipeline(mgr, events, mem, warns, nil)
	snapshots := metrics.NewStore(10)

	srv := NewServer(Deps{
		Config:   mgr,
		Reports:  report.NewService(eng, cache, warns, 31, nil).WithMetrics(snapshots),
		Roster:   eng,
		Warnings: warns,
		Metrics:  snapshots,
		Cache:    cache,
		Ingest:   pipeline.REST(),
		Version:  "test",
	})
	return &fixture{handler: srv.Router(), mem: mem, events: events, eng: eng, warns: warns, metrics: snapshots, cache: cache}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	at := func(clock string) time.Time { return model.MustParseClock(clock).On(monday, time.UTC) }
	_, err := f.mem.SaveEvents(context.Background(), []model.Event{
		{Employee: "A", Timestamp: at("07:00:00")},
		{Employee: "A", Timestamp: at("12:05:00")},
		{Employee: "B", Timestamp: at("07:10:00")},
	})
	require.NoError(t, err)
}

func (f *fixture) do(method, target string, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

type decoded struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorDetail    `json:"error"`
	Meta    *meta           `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) decoded {
	t.Helper()
	var d decoded
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d), rec.Body.String())
	return d
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode(t, rec)
	assert.True(t, d.Success)
	var st statusResponse
	require.NoError(t, json.Unmarshal(d.Data, &st))
	assert.Equal(t, "ok", st.Status)
	assert.Equal(t, 3, st.Employees)
	assert.True(t, st.Ingest.REST)
}

func TestDayReport(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rec := f.do(http.MethodGet, "/api/reports/2025-01-06", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rep model.DayReport
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &rep))
	require.Len(t, rep.Classifications, 3)
	assert.Equal(t, model.StatusPartialDuty, rep.Classifications[0].Status)
	assert.True(t, rep.Classifications[1].Late)
	assert.Equal(t, model.StatusAbsent, rep.Classifications[2].Status)
	assert.Equal(t, "66.67", rep.Metrics.AttendanceRate.StringFixed(2))

	rec = f.do(http.MethodGet, "/api/reports/2025-01-06/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decode(t, rec).Data), `"punctuality_rate":"50"`)
}

func TestBadDates(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/reports/someday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", decode(t, rec).Error.Code)

	rec = f.do(http.MethodGet, "/api/reports?from=2025-01-10&to=2025-01-06", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/reports?from=2025-01-01&to=2025-03-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec).Error.Message, "too long")

	rec = f.do(http.MethodGet, "/api/nothing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRangeAndTrends(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rec := f.do(http.MethodGet, "/api/reports?from=2025-01-06&to=2025-01-08", "")
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode(t, rec)
	assert.Equal(t, 3, d.Meta.Count)

	rec = f.do(http.MethodGet, "/api/trends?from=2025-01-06&to=2025-01-12", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var trends []model.WeekTrend
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &trends))
	require.Len(t, trends, 1)
	assert.Equal(t, 3, trends[0].TotalEvents)
}

func TestExports(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rec := f.do(http.MethodGet, "/api/reports/2025-01-06/export.xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attendance_2025-01-06.xlsx")
	wb, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{"Summary", "06-Jan"}, wb.GetSheetList())
	_ = wb.Close()

	rec = f.do(http.MethodGet, "/api/reports/export.xlsx?from=2025-01-06&to=2025-01-07", "")
	require.Equal(t, http.StatusOK, rec.Code)
	wb, err = excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Len(t, wb.GetSheetList(), 3)
	_ = wb.Close()

	rec = f.do(http.MethodGet, "/api/reports/2025-01-06/export.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, 4, strings.Count(rec.Body.String(), "\n"))
}

func TestRosterUpdate(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPut, "/api/roster", `{"divisions":[{"name":"Ops","members":[" A ","","D"]}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"A", "D"}, f.eng.Roster().Names())

	rec = f.do(http.MethodGet, "/api/roster", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got rosterResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
	assert.Equal(t, []string{"A", "D"}, got.Employees)

	rec = f.do(http.MethodPut, "/api/roster", `{"divisions":[{"name":"X"},{"name":"X"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestAndWarnings(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/events", `[{"name":"A","timestamp":"2025-01-06 07:00:00"},{"name":"A","timestamp":"bogus"}]`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"accepted":1,"failed":1}`, rec.Body.String())
	assert.Len(t, f.events, 1)

	rec = f.do(http.MethodPost, "/api/statuses", `{"employee":"C","date":"2025-01-06","label":"izin"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/reports/2025-01-06", "")
	var rep model.DayReport
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &rep))
	assert.Equal(t, model.StatusPermit, rep.Classifications[2].Status)
	assert.Equal(t, "IZIN", rep.Classifications[2].ManualLabel)

	rec = f.do(http.MethodGet, "/api/warnings?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode(t, rec)
	assert.Equal(t, 1, d.Meta.Count)

	rec = f.do(http.MethodGet, "/api/warnings?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/admin/clear", `{"target":"warnings"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, f.warns.Len())

	rec = f.do(http.MethodPost, "/api/admin/clear", `{"target":"everything"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshPurgesCache(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/reports/2025-01-06", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotZero(t, f.cache.Len())

	f.seed(t)
	rec = f.do(http.MethodPost, "/api/admin/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, f.cache.Len())

	rec = f.do(http.MethodGet, "/api/reports/2025-01-06", "")
	var rep model.DayReport
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &rep))
	assert.Equal(t, 2, rep.Metrics.Present)
}

func TestMetricsSnapshots(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rec := f.do(http.MethodGet, "/api/metrics/2025-01-06", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/api/reports?from=2025-01-06&to=2025-01-07", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode(t, rec).Meta.Count)

	rec = f.do(http.MethodGet, "/api/metrics/2025-01-06", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &snap))
	assert.Equal(t, 2, snap.Metrics.Present)

	rec = f.do(http.MethodPost, "/api/admin/clear", `{"target":"metrics"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, f.metrics.Len())
}
