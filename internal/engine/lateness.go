package engine

import "shiftwatch/internal/model"

var lateAfter = map[model.Shift]model.ClockTime{
	model.Shift1: model.NewClockTime(7, 5, 0),
	model.Shift2: model.NewClockTime(9, 5, 0),
}

// LateThreshold is the last on-time arrival for a shift.
func LateThreshold(shift model.Shift) (model.ClockTime, bool) {
	c, ok := lateAfter[shift]
	return c, ok
}

func IsLate(arrival model.ClockTime, shift model.Shift) bool {
	if arrival.IsEmpty() {
		return false
	}
	threshold, ok := lateAfter[shift]
	if !ok {
		return false
	}
	return arrival.After(threshold)
}
