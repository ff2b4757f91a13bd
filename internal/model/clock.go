package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ClockTime is an optional time of day. The zero value is empty and marks a
// slot with no qualifying event.
type ClockTime struct {
	offset time.Duration
	valid  bool
}

const day = 24 * time.Hour

func NewClockTime(hour, minute, second int) ClockTime {
	d := time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second
	return ClockTime{offset: d % day, valid: true}
}

// ClockOf returns the wall-clock time of day of t in t's own location.
func ClockOf(t time.Time) ClockTime {
	h, m, s := t.Clock()
	c := NewClockTime(h, m, s)
	c.offset += time.Duration(t.Nanosecond())
	return c
}

func ParseClock(value string) (ClockTime, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return ClockTime{}, errors.New("empty clock time")
	}
	for _, layout := range []string{"15:04:05", "15:04", "15.04"} {
		if t, err := time.Parse(layout, value); err == nil {
			return ClockOf(t), nil
		}
	}
	return ClockTime{}, fmt.Errorf("unsupported clock format: %q", value)
}

func MustParseClock(value string) ClockTime {
	c, err := ParseClock(value)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) Valid() bool   { return c.valid }
func (c ClockTime) IsEmpty() bool { return !c.valid }

// SinceMidnight is meaningless for an empty clock time.
func (c ClockTime) SinceMidnight() time.Duration { return c.offset }

func (c ClockTime) Before(o ClockTime) bool { return c.offset < o.offset }
func (c ClockTime) After(o ClockTime) bool  { return c.offset > o.offset }
func (c ClockTime) Equal(o ClockTime) bool  { return c.valid == o.valid && c.offset == o.offset }

// Add shifts the clock time, wrapping around midnight.
func (c ClockTime) Add(d time.Duration) ClockTime {
	off := (c.offset + d) % day
	if off < 0 {
		off += day
	}
	return ClockTime{offset: off, valid: c.valid}
}

// On places the time of day on the given date.
func (c ClockTime) On(d Date, loc *time.Location) time.Time {
	return d.Start(loc).Add(c.offset)
}

func (c ClockTime) String() string {
	if !c.valid {
		return ""
	}
	secs := int(c.offset / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}

// HHMM is the short form used by spreadsheets and cards.
func (c ClockTime) HHMM() string {
	if !c.valid {
		return ""
	}
	return c.String()[:5]
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	if !c.valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = ClockTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*c = ClockTime{}
		return nil
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TimeRange is a closed interval of clock times.
type TimeRange struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

func (r TimeRange) Contains(c ClockTime) bool {
	return c.valid && !c.Before(r.Start) && !c.After(r.End)
}

func (r TimeRange) Overlaps(o TimeRange) bool {
	return !r.End.Before(o.Start) && !o.End.Before(r.Start)
}

// Date is a calendar day without a location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const DateLayout = "2006-01-02"

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func NewDate(year int, month time.Month, dayOfMonth int) Date {
	return DateOf(time.Date(year, month, dayOfMonth, 0, 0, 0, 0, time.UTC))
}

var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"1/2/2006",
	"01/02/2006",
	"1/2/2006 15:04:05",
	"2006-01-02 15:04:05",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// ParseDate accepts ISO dates and the month-first layouts spreadsheets emit.
func ParseDate(value string) (Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Date{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("unsupported date format: %q", value)
}

func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

func (d Date) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) Weekday() time.Weekday {
	return d.Start(time.UTC).Weekday()
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Start(time.UTC).AddDate(0, 0, n))
}

func (d Date) Before(o Date) bool {
	return d.Start(time.UTC).Before(o.Start(time.UTC))
}

func (d Date) After(o Date) bool {
	return o.Before(d)
}

// DaysUntil counts whole days from d to o; negative when o is earlier.
func (d Date) DaysUntil(o Date) int {
	return int(o.Start(time.UTC).Sub(d.Start(time.UTC)) / day)
}

func (d Date) String() string {
	return d.Start(time.UTC).Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
