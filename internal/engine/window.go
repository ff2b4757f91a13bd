package engine

import (
	"time"

	"shiftwatch/internal/model"
)

type dayType int

const (
	regularDay dayType = iota
	friday
)

func dayTypeOf(weekday time.Weekday) dayType {
	if weekday == time.Friday {
		return friday
	}
	return regularDay
}

type windowKey struct {
	shift model.Shift
	day   dayType
}

var (
	clock = model.NewClockTime

	shift1Breaks = struct{ out, in model.TimeRange }{
		out: model.TimeRange{Start: clock(12, 0, 0), End: clock(12, 59, 59)},
		in:  model.TimeRange{Start: clock(13, 0, 0), End: clock(14, 59, 59)},
	}
	shift2Breaks = struct{ out, in model.TimeRange }{
		out: model.TimeRange{Start: clock(14, 0, 0), End: clock(14, 59, 59)},
		in:  model.TimeRange{Start: clock(15, 0, 0), End: clock(16, 59, 59)},
	}

	shift1Windows = model.WindowSet{
		ArrivalBefore: clock(11, 0, 0),
		BreakOut:      shift1Breaks.out,
		BreakIn:       shift1Breaks.in,
		DepartureFrom: clock(17, 0, 0),
		BreakReturnBy: clock(14, 0, 0),
	}

	// Friday prayers move the Shift 2 break onto the Shift 1 break; arrival
	// and departure stay on the Shift 2 schedule.
	windowTable = map[windowKey]model.WindowSet{
		{model.Shift1, regularDay}: shift1Windows,
		{model.Shift1, friday}:     shift1Windows,
		{model.Shift2, regularDay}: {
			ArrivalBefore: clock(12, 0, 0),
			BreakOut:      shift2Breaks.out,
			BreakIn:       shift2Breaks.in,
			DepartureFrom: clock(19, 0, 0),
			BreakReturnBy: clock(16, 0, 0),
		},
		{model.Shift2, friday}: {
			ArrivalBefore: clock(12, 0, 0),
			BreakOut:      shift1Breaks.out,
			BreakIn:       shift1Breaks.in,
			DepartureFrom: clock(19, 0, 0),
			BreakReturnBy: clock(14, 0, 0),
		},
	}
)

// ResolveWindows returns the slot windows for a shift on a weekday. ShiftNone
// has no windows and yields the zero WindowSet.
func ResolveWindows(shift model.Shift, weekday time.Weekday) model.WindowSet {
	return windowTable[windowKey{shift: shift, day: dayTypeOf(weekday)}]
}
