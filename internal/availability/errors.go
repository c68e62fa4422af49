package availability

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRange indicates a malformed or empty query range.
	ErrInvalidRange = errors.New("availability: query range is empty or inverted")

	// ErrScheduleNotFound indicates no weekly schedule version covers the
	// requested instant.
	ErrScheduleNotFound = errors.New("availability: no schedule version covers the requested time")

	// ErrProviderNotFound indicates the provider id is unknown.
	ErrProviderNotFound = errors.New("availability: provider not found")

	// ErrProviderInactive indicates the provider exists but is not bookable.
	ErrProviderInactive = errors.New("availability: provider is inactive")
)

// TimezoneError indicates a provider carries an IANA zone the runtime cannot
// resolve.
type TimezoneError struct {
	Zone string
	Err  error
}

func (e *TimezoneError) Error() string {
	return fmt.Sprintf("availability: cannot resolve timezone %q: %v", e.Zone, e.Err)
}

func (e *TimezoneError) Unwrap() error { return e.Err }

// ConflictSource names the record type a reservation collided with.
type ConflictSource string

const (
	ConflictException ConflictSource = "exception"
	ConflictBooking   ConflictSource = "booking"

	// ConflictSchedule marks a window that never fell inside working hours,
	// so there is no single colliding record to point at.
	ConflictSchedule ConflictSource = "schedule"
)

// ConflictError is returned when a reservation attempt collides with an
// exception or another booking assignment. It carries the colliding interval
// for diagnostics.
type ConflictError struct {
	ProviderID string
	Source     ConflictSource
	StartUTC   time.Time
	EndUTC     time.Time
	Detail     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("availability: provider %s has a conflicting %s %s..%s (%s)",
		e.ProviderID, e.Source,
		e.StartUTC.Format(time.RFC3339), e.EndUTC.Format(time.RFC3339), e.Detail)
}

// AsConflict unwraps err into a *ConflictError if it is one.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
