package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftwatch/internal/model"
)

var (
	wib    = time.FixedZone("WIB", 7*3600)
	monday = model.NewDate(2025, time.January, 6)
)

type countingSource struct {
	calls  atomic.Int32
	events []model.Event
	status map[string]string
	err    error
}

func (c *countingSource) EventsFor(context.Context, model.Date) ([]model.Event, error) {
	c.calls.Add(1)
	return c.events, c.err
}

func (c *countingSource) StatusFor(context.Context, model.Date) (map[string]string, error) {
	c.calls.Add(1)
	return c.status, c.err
}

func TestMemoryFeedKeysByLocalDate(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryFeed(wib)
	late := time.Date(2025, 1, 5, 23, 30, 0, 0, time.UTC)
	n, err := m.SaveEvents(ctx, []model.Event{
		{Employee: "Eko", Timestamp: late},
		{Employee: "Eko", Timestamp: late},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := m.EventsFor(ctx, monday)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, m.SaveStatuses(ctx, []model.ManualStatus{
		{Employee: "Eko", Date: monday, Label: "IZIN"},
		{Employee: "Eko", Date: monday, Label: "SAKIT"},
	}))
	st, err := m.StatusFor(ctx, monday)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Eko": "SAKIT"}, st)
}

func TestCachedFeed(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{events: []model.Event{{Employee: "Eko"}}, status: map[string]string{}}
	c := NewCachedFeed(src, 10, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := c.EventsFor(ctx, monday)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, src.calls.Load())

	c.Invalidate(monday)
	_, err := c.EventsFor(ctx, monday)
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.calls.Load())

	_, err = c.StatusFor(ctx, monday)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCachedFeedDoesNotCacheErrors(t *testing.T) {
	src := &countingSource{err: errors.New("down")}
	c := NewCachedFeed(src, 10, time.Minute)
	_, err := c.EventsFor(context.Background(), monday)
	assert.Error(t, err)
	_, err = c.EventsFor(context.Background(), monday)
	assert.Error(t, err)
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestMultiMerges(t *testing.T) {
	ts := time.Date(2025, 1, 6, 7, 1, 0, 0, wib)
	a := &countingSource{
		events: []model.Event{{Employee: "Eko", Timestamp: ts, Source: "sheet"}},
		status: map[string]string{"Eko": "IZIN", "Yus": "SAKIT"},
	}
	b := &countingSource{
		events: []model.Event{{Employee: "Eko", Timestamp: ts, Source: "kafka"}, {Employee: "Yus", Timestamp: ts}},
		status: map[string]string{"Eko": "CUTI"},
	}
	m := Multi{a, b}
	events, err := m.EventsFor(context.Background(), monday)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "sheet", events[0].Source)

	st, err := m.StatusFor(context.Background(), monday)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Eko": "CUTI", "Yus": "SAKIT"}, st)

	_, err = Multi{a, &countingSource{err: errors.New("down")}}.EventsFor(context.Background(), monday)
	assert.Error(t, err)
}

type recordedWarnings struct{ list []model.DataWarning }

func (r *recordedWarnings) Add(w model.DataWarning) bool {
	r.list = append(r.list, w)
	return true
}

func TestSheetFeed(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/events.csv":
			_, _ = w.Write([]byte("Person Name,Event Time\nEko,1/6/2025 07:01:00\nYus,1/6/2025 08:30:00\n,1/6/2025 09:00:00\nEko,1/7/2025 07:00:00\n"))
		case "/status.csv":
			_, _ = w.Write([]byte("Nama Karyawan,Tanggal,Keterangan\nYus,1/6/2025,sakit\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	warns := &recordedWarnings{}
	s := NewSheetFeed(SheetOptions{
		EventsURL: srv.URL + "/events.csv",
		StatusURL: srv.URL + "/status.csv",
		Location:  wib,
		CacheTTL:  time.Minute,
		Warnings:  warns,
	})
	ctx := context.Background()

	events, err := s.EventsFor(ctx, monday)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Eko", events[0].Employee)
	assert.Equal(t, "sheet", events[0].Source)

	tuesday, err := s.EventsFor(ctx, monday.AddDays(1))
	require.NoError(t, err)
	assert.Len(t, tuesday, 1)
	assert.EqualValues(t, 1, hits.Load(), "snapshot shared across dates")

	require.Len(t, warns.list, 1)
	assert.Equal(t, model.WarningEmptyName, warns.list[0].Kind)

	st, err := s.StatusFor(ctx, monday)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Yus": "SAKIT"}, st)

	s.Refresh()
	_, err = s.EventsFor(ctx, monday)
	require.NoError(t, err)
	assert.EqualValues(t, 3, hits.Load())
}

func TestSheetFeedErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSheetFeed(SheetOptions{EventsURL: srv.URL})
	_, err := s.EventsFor(context.Background(), monday)
	assert.ErrorContains(t, err, "403")

	st, err := s.StatusFor(context.Background(), monday)
	require.NoError(t, err)
	assert.Empty(t, st)
}
