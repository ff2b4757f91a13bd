package engine

import (
	"sort"

	"shiftwatch/internal/model"
)

// shiftCutoff separates the shifts: a first event at or before it is Shift 1.
var shiftCutoff = model.NewClockTime(8, 15, 0)

// DetectShift picks the shift from the earliest event of one employee-day.
// Any non-empty input resolves to exactly one shift, so there is no ambiguous
// outcome; ok is false only when there are no events.
func DetectShift(events []model.Event) (model.Shift, bool) {
	if len(events) == 0 {
		return model.ShiftNone, false
	}
	first := events[0].Timestamp
	for _, ev := range events[1:] {
		if ev.Timestamp.Before(first) {
			first = ev.Timestamp
		}
	}
	return shiftFor(model.ClockOf(first)), true
}

func shiftFor(first model.ClockTime) model.Shift {
	if first.After(shiftCutoff) {
		return model.Shift2
	}
	return model.Shift1
}

func sortedEvents(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
