package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"shiftwatch/internal/model"
)

type EventFields struct {
	Name      string
	Timestamp string
	Source    string
	Extras    map[string]string
	Raw       string
}

type StatusFields struct {
	Name  string
	Date  string
	Label string
}

// Normalize turns one raw row into an event in loc. Rows are rejected one
// at a time; callers keep going with the rest of the batch.
func Normalize(fields EventFields, loc *time.Location) (model.Event, error) {
	if loc == nil {
		loc = time.UTC
	}
	name := strings.TrimSpace(fields.Name)
	if name == "" {
		return model.Event{}, model.ErrEmptyName
	}
	ts, err := ParseTimestamp(fields.Timestamp, loc)
	if err != nil {
		return model.Event{}, fmt.Errorf("%w: %v", model.ErrInvalidTimestamp, err)
	}
	source := strings.TrimSpace(fields.Source)
	if source == "" {
		source = "log"
	}
	return model.Event{
		Employee:  name,
		Timestamp: ts.In(loc),
		Source:    source,
	}, nil
}

func NormalizeStatus(fields StatusFields) (model.ManualStatus, error) {
	name := strings.TrimSpace(fields.Name)
	if name == "" {
		return model.ManualStatus{}, model.ErrEmptyName
	}
	label := strings.ToUpper(strings.TrimSpace(fields.Label))
	if label == "" {
		return model.ManualStatus{}, model.ErrEmptyLabel
	}
	date, err := model.ParseDate(fields.Date)
	if err != nil {
		return model.ManualStatus{}, fmt.Errorf("%w: %v", model.ErrInvalidDate, err)
	}
	return model.ManualStatus{Employee: name, Date: date, Label: label}, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"2006/01/02 15:04:05",
	"Jan 2, 2006 15:04:05",
}

// ParseTimestamp accepts ISO layouts, month-first spreadsheet layouts and
// unix seconds or milliseconds. Zone-less values are read in loc.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if loc == nil {
		loc = time.UTC
	}
	if isNumeric(value) {
		if ts, err := parseUnix(value); err == nil {
			return ts, nil
		}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", value)
}

func isNumeric(value string) bool {
	for _, ch := range value {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return len(value) > 0
}

func parseUnix(value string) (time.Time, error) {
	if len(value) >= 13 {
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	sec, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}
