// Package availability implements the provider availability engine: it expands
// recurring weekly schedules into concrete UTC intervals, subtracts time-off
// exceptions and confirmed bookings, merges the remaining free slots into
// continuous ranges, classifies candidate appointment windows against them,
// ranks providers for booking suggestions, and guards the reservation write
// path against double booking.
//
// Availability is never stored; every answer is recomputed from the schedule,
// exception, and assignment records so the read path and the reservation guard
// can never disagree.
package availability

import "time"

// Provider is a bookable member of staff.
type Provider struct {
	ID       string
	Name     string
	Timezone string // IANA zone name, e.g. "Australia/Sydney"
	Skills   []string
	Active   bool
}

// HasSkill reports whether the provider can perform the given treatment.
func (p Provider) HasSkill(skill string) bool {
	for _, s := range p.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// DayBlock is one contiguous working interval on a weekday, in the provider's
// local wall-clock time ("15:04").
type DayBlock struct {
	Start    string
	End      string
	Location string
	Chair    string
}

// WeeklySchedule is one version of a provider's recurring weekly roster.
// Versions are never edited in place; a new version supersedes the old one via
// the effective window, so historical availability stays reproducible.
type WeeklySchedule struct {
	ProviderID    string
	Version       int
	EffectiveFrom time.Time // zero means open start
	EffectiveTo   time.Time // zero means open ended
	Days          map[time.Weekday][]DayBlock
}

// Covers reports whether this schedule version is in effect at t.
func (s *WeeklySchedule) Covers(t time.Time) bool {
	if !s.EffectiveFrom.IsZero() && t.Before(s.EffectiveFrom) {
		return false
	}
	if !s.EffectiveTo.IsZero() && !t.Before(s.EffectiveTo) {
		return false
	}
	return true
}

// ExceptionKind discriminates the closed set of schedule override types.
type ExceptionKind string

const (
	ExceptionPTO           ExceptionKind = "pto"
	ExceptionSick          ExceptionKind = "sick"
	ExceptionCourse        ExceptionKind = "course"
	ExceptionPublicHoliday ExceptionKind = "public_holiday"
	ExceptionBlock         ExceptionKind = "block"
)

// Valid reports whether k is one of the known exception kinds.
func (k ExceptionKind) Valid() bool {
	switch k {
	case ExceptionPTO, ExceptionSick, ExceptionCourse, ExceptionPublicHoliday, ExceptionBlock:
		return true
	}
	return false
}

// Exception is an absolute UTC interval during which the provider is not
// bookable regardless of the weekly schedule.
type Exception struct {
	ID         string
	ProviderID string
	Kind       ExceptionKind
	StartUTC   time.Time
	EndUTC     time.Time
	Reason     string
	Location   string
	Chair      string
}

// BookingAssignment is a confirmed occupancy of provider time by an
// appointment. Reschedules are modelled as cancel + reserve.
type BookingAssignment struct {
	ID            string
	ProviderID    string
	AppointmentID string
	SlotID        string
	StartUTC      time.Time
	EndUTC        time.Time
	Context       string
}

// AvailabilitySlot is an atomic free interval left after subtracting
// exceptions and bookings from the expanded schedule. Derived, never persisted.
type AvailabilitySlot struct {
	StartUTC time.Time
	EndUTC   time.Time
	Location string
	Chair    string
}

// Duration returns the slot length.
func (s AvailabilitySlot) Duration() time.Duration {
	return s.EndUTC.Sub(s.StartUTC)
}

// SlotRange is a continuous span of free time built from one or more atomic
// slots merged under a gap tolerance.
type SlotRange struct {
	StartUTC time.Time
	EndUTC   time.Time
	Key      string
	Slots    []AvailabilitySlot
}

// Duration returns the range length.
func (r SlotRange) Duration() time.Duration {
	return r.EndUTC.Sub(r.StartUTC)
}

// Classification is the outcome of checking a candidate window against merged
// availability ranges.
type Classification string

const (
	Fits        Classification = "fits"
	Partial     Classification = "partial"
	Unavailable Classification = "unavailable"
)
