package engine

import (
	"github.com/shopspring/decimal"

	"shiftwatch/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Aggregate folds one date's classifications into organization metrics.
// Status is recomputed from slots and the manual map so callers can pass
// partially populated records; lateness only counts present employees.
func Aggregate(date model.Date, records []model.Classification, manual map[string]string) model.DailyMetrics {
	m := model.DailyMetrics{
		Date:        date,
		Total:       len(records),
		LateList:    []model.LateEntry{},
		PermitList:  []model.PermitEntry{},
		AbsentList:  []string{},
		PartialList: []model.PartialEntry{},
	}
	for _, rec := range records {
		label := manual[rec.Employee]
		switch ClassifyStatus(rec.Slots, label) {
		case model.StatusPermit:
			m.Permit++
			m.PermitList = append(m.PermitList, model.PermitEntry{Employee: rec.Employee, Label: label})
		case model.StatusAbsent:
			m.Absent++
			m.AbsentList = append(m.AbsentList, rec.Employee)
		default:
			m.Present++
			if IsLate(rec.Arrival, shiftOf(rec)) {
				m.Late++
				m.LateList = append(m.LateList, model.LateEntry{Employee: rec.Employee, Arrival: rec.Arrival})
			}
			if empty := rec.EmptyCount(); empty > 0 {
				m.PartialList = append(m.PartialList, model.PartialEntry{Employee: rec.Employee, EmptySlots: empty})
			}
		}
	}
	m.AttendanceRate = percent(m.Present, m.Total)
	m.PunctualityRate = percent(m.Present-m.Late, m.Present)
	return m
}

func percent(part, whole int) decimal.Decimal {
	if whole <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(part)).Mul(hundred).Div(decimal.NewFromInt(int64(whole))).Round(2)
}

// shiftOf falls back to the arrival for records built outside the engine;
// when present, the arrival is always the day's first event.
func shiftOf(rec model.Classification) model.Shift {
	if rec.Shift != model.ShiftNone || rec.Arrival.IsEmpty() {
		return rec.Shift
	}
	return shiftFor(rec.Arrival)
}
