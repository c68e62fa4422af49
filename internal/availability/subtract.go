package availability

import "time"

// SubtractExceptions removes time-off intervals (PTO, sick leave, courses,
// public holidays, manual blocks) from the expanded schedule. Exceptions
// always win over the weekly schedule.
func SubtractExceptions(base []AvailabilitySlot, exceptions []Exception, granularity time.Duration) []AvailabilitySlot {
	busy := make([]span, 0, len(exceptions))
	for _, e := range exceptions {
		busy = append(busy, span{start: e.StartUTC, end: e.EndUTC})
	}
	return subtractBusy(base, busy, granularity)
}

// SubtractBookings removes intervals already consumed by confirmed booking
// assignments, producing the raw atomic free slots. It is kept separate from
// SubtractExceptions because the booking store is a different collaborator:
// exceptions rarely change mid-request, bookings can.
func SubtractBookings(base []AvailabilitySlot, assignments []BookingAssignment, granularity time.Duration) []AvailabilitySlot {
	busy := make([]span, 0, len(assignments))
	for _, a := range assignments {
		busy = append(busy, span{start: a.StartUTC, end: a.EndUTC})
	}
	return subtractBusy(base, busy, granularity)
}
