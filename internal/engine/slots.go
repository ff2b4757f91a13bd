package engine

import "shiftwatch/internal/model"

// AssignSlots buckets one employee-day of events into the four slots.
// Arrival and both break slots keep the first qualifying event, departure
// keeps the last. Events outside every window are dropped.
func AssignSlots(events []model.Event, ws model.WindowSet) model.Slots {
	var slots model.Slots
	if !ws.ArrivalBefore.Valid() {
		return slots
	}
	for _, ev := range sortedEvents(events) {
		t := model.ClockOf(ev.Timestamp)
		switch {
		case t.Before(ws.ArrivalBefore):
			if slots.Arrival.IsEmpty() {
				slots.Arrival = t
			}
		case ws.BreakOut.Contains(t):
			if slots.BreakOut.IsEmpty() {
				slots.BreakOut = t
			}
		case ws.BreakIn.Contains(t):
			if slots.BreakIn.IsEmpty() {
				slots.BreakIn = t
			}
		case !t.Before(ws.DepartureFrom):
			slots.Departure = t
		}
	}
	return slots
}
