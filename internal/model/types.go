package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	Employee  string    `json:"employee"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
}

type Shift int

const (
	ShiftNone Shift = iota
	Shift1
	Shift2
)

func (s Shift) String() string {
	switch s {
	case Shift1:
		return "SHIFT_1"
	case Shift2:
		return "SHIFT_2"
	default:
		return ""
	}
}

func (s Shift) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Shift) UnmarshalText(text []byte) error {
	switch string(text) {
	case "SHIFT_1":
		*s = Shift1
	case "SHIFT_2":
		*s = Shift2
	case "":
		*s = ShiftNone
	default:
		return fmt.Errorf("unknown shift %q", text)
	}
	return nil
}

// WindowSet holds the slot boundaries for one (shift, weekday).
// BreakReturnBy is the latest on-time break-in and only drives display.
type WindowSet struct {
	ArrivalBefore ClockTime `json:"arrival_before"`
	BreakOut      TimeRange `json:"break_out"`
	BreakIn       TimeRange `json:"break_in"`
	DepartureFrom ClockTime `json:"departure_from"`
	BreakReturnBy ClockTime `json:"break_return_by"`
}

type Slots struct {
	Arrival   ClockTime `json:"arrival"`
	BreakOut  ClockTime `json:"break_out"`
	BreakIn   ClockTime `json:"break_in"`
	Departure ClockTime `json:"departure"`
}

func (s Slots) All() [4]ClockTime {
	return [4]ClockTime{s.Arrival, s.BreakOut, s.BreakIn, s.Departure}
}

func (s Slots) EmptyCount() int {
	n := 0
	for _, c := range s.All() {
		if c.IsEmpty() {
			n++
		}
	}
	return n
}

type EmployeeDayRecord struct {
	Employee string `json:"employee"`
	Date     Date   `json:"date"`
	Slots
}

type ManualStatus struct {
	Employee string `json:"employee"`
	Date     Date   `json:"date"`
	Label    string `json:"label"`
}

type DutyStatus string

const (
	StatusFullDuty    DutyStatus = "FULL_DUTY"
	StatusPartialDuty DutyStatus = "PARTIAL_DUTY"
	StatusAbsent      DutyStatus = "ABSENT"
	StatusPermit      DutyStatus = "PERMIT"
)

// Present reports whether the status counts toward attendance.
func (s DutyStatus) Present() bool {
	return s == StatusFullDuty || s == StatusPartialDuty
}

// Classification is the engine's per employee-day output. Shift and Windows
// are exposed so renderers color cells without re-deriving them.
type Classification struct {
	EmployeeDayRecord
	Division    string     `json:"division,omitempty"`
	Status      DutyStatus `json:"status"`
	Late        bool       `json:"late"`
	Shift       Shift      `json:"shift,omitempty"`
	Windows     *WindowSet `json:"windows,omitempty"`
	ManualLabel string     `json:"manual_label,omitempty"`
	EventCount  int        `json:"event_count"`
}

// BreakReturnLate reports a break-in after the on-time return threshold.
func (c Classification) BreakReturnLate() bool {
	if c.Windows == nil || c.BreakIn.IsEmpty() {
		return false
	}
	return c.BreakIn.After(c.Windows.BreakReturnBy)
}

type LateEntry struct {
	Employee string    `json:"employee"`
	Arrival  ClockTime `json:"arrival"`
}

type PermitEntry struct {
	Employee string `json:"employee"`
	Label    string `json:"label"`
}

type PartialEntry struct {
	Employee   string `json:"employee"`
	EmptySlots int    `json:"empty_slots"`
}

type DailyMetrics struct {
	Date            Date            `json:"date"`
	Total           int             `json:"total"`
	Present         int             `json:"present"`
	Permit          int             `json:"permit"`
	Absent          int             `json:"absent"`
	Late            int             `json:"late"`
	AttendanceRate  decimal.Decimal `json:"attendance_rate"`
	PunctualityRate decimal.Decimal `json:"punctuality_rate"`
	LateList        []LateEntry     `json:"late_list"`
	PermitList      []PermitEntry   `json:"permit_list"`
	AbsentList      []string        `json:"absent_list"`
	PartialList     []PartialEntry  `json:"partial_list"`
}

type DivisionStat struct {
	Division string          `json:"division"`
	Code     string          `json:"code,omitempty"`
	Color    string          `json:"color,omitempty"`
	Total    int             `json:"total"`
	Present  int             `json:"present"`
	Absent   int             `json:"absent"`
	Rate     decimal.Decimal `json:"rate"`
}

type AnomalyKind string

const AnomalyLargeGap AnomalyKind = "LARGE_GAP"

type Anomaly struct {
	Employee string        `json:"employee"`
	Kind     AnomalyKind   `json:"kind"`
	Gap      time.Duration `json:"gap"`
	From     time.Time     `json:"from"`
	To       time.Time     `json:"to"`
}

type WarningKind string

const (
	WarningInvalidTimestamp WarningKind = "invalid_timestamp"
	WarningUnknownEmployee  WarningKind = "unknown_employee"
	WarningEmptyName        WarningKind = "empty_name"
	WarningInvalidStatus    WarningKind = "invalid_status"
)

// DataWarning is a data-quality finding that never blocks classification.
type DataWarning struct {
	ID       string      `json:"id"`
	Time     time.Time   `json:"time"`
	Kind     WarningKind `json:"kind"`
	Employee string      `json:"employee,omitempty"`
	Source   string      `json:"source,omitempty"`
	Detail   string      `json:"detail,omitempty"`
}

type DayReport struct {
	Date            Date                    `json:"date"`
	Classifications []Classification        `json:"classifications"`
	Metrics         DailyMetrics            `json:"metrics"`
	Divisions       map[string]DivisionStat `json:"divisions,omitempty"`
	Anomalies       []Anomaly               `json:"anomalies,omitempty"`
	Warnings        []DataWarning           `json:"warnings,omitempty"`
}

type WeekTrend struct {
	Year            int `json:"year"`
	Week            int `json:"week"`
	UniqueEmployees int `json:"unique_employees"`
	TotalEvents     int `json:"total_events"`
}
