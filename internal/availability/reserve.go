package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ReserveBooking is the guarded write path. It re-runs the availability
// pipeline for the target interval under the provider's lock immediately
// before committing, so two concurrent attempts for overlapping intervals
// cannot both succeed. The re-check is deliberately redundant with the read
// path; a client-supplied "still available" flag is never trusted.
//
// On conflict the caller receives *ConflictError naming the colliding record
// and must re-query fresh availability; the engine never retries on its own.
func (e *Engine) ReserveBooking(ctx context.Context, providerID string, candidateFrom, candidateTo time.Time, appointmentID string) (*BookingAssignment, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("console.provider_id", providerID),
		attribute.String("console.appointment_id", appointmentID),
		attribute.String("console.from", candidateFrom.Format(time.RFC3339)),
		attribute.String("console.to", candidateTo.Format(time.RFC3339)),
	)

	if !candidateFrom.Before(candidateTo) {
		return nil, ErrInvalidRange
	}

	provider, err := e.directory.GetProvider(ctx, providerID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !provider.Active {
		return nil, ErrProviderInactive
	}

	// Check and commit are one critical section per provider. Reads for
	// other providers and all display queries proceed unaffected.
	release, err := e.locker.Lock(ctx, providerID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer release()

	free, err := e.freeSlots(ctx, provider, candidateFrom, candidateTo)
	if err != nil {
		e.metrics.ObserveReservation("error")
		span.RecordError(err)
		return nil, err
	}
	if !covered(free, candidateFrom.UTC(), candidateTo.UTC()) {
		conflict, err := e.findConflict(ctx, providerID, candidateFrom, candidateTo)
		if err != nil {
			e.metrics.ObserveReservation("error")
			span.RecordError(err)
			return nil, err
		}
		e.metrics.ObserveReservation("rejected")
		e.logger.Info("reservation rejected",
			"provider_id", providerID,
			"appointment_id", appointmentID,
			"conflict_source", string(conflict.Source),
		)
		return nil, conflict
	}

	assignment := BookingAssignment{
		ID:            uuid.NewString(),
		ProviderID:    providerID,
		AppointmentID: appointmentID,
		SlotID:        slotID(providerID, candidateFrom),
		StartUTC:      candidateFrom.UTC(),
		EndUTC:        candidateTo.UTC(),
		Context:       "console",
	}
	if err := e.bookings.CommitBookingAssignment(ctx, assignment); err != nil {
		span.RecordError(err)
		if _, ok := AsConflict(err); ok {
			// The store's own constraint caught a racing writer that slipped
			// past the lock (e.g. another instance without the shared lock).
			// Reject; no blind retry.
			e.metrics.ObserveReservation("rejected")
			return nil, err
		}
		e.metrics.ObserveReservation("error")
		return nil, err
	}

	e.metrics.ObserveReservation("committed")
	e.logger.Info("reservation committed",
		"provider_id", providerID,
		"appointment_id", appointmentID,
		"assignment_id", assignment.ID,
		"start", assignment.StartUTC.Format(time.RFC3339),
		"end", assignment.EndUTC.Format(time.RFC3339),
	)
	return &assignment, nil
}

// findConflict names the record that blocks [from, to): the first overlapping
// exception wins, then the first overlapping assignment, otherwise the window
// simply never fell inside working hours.
func (e *Engine) findConflict(ctx context.Context, providerID string, from, to time.Time) (*ConflictError, error) {
	exceptions, err := e.schedules.ListExceptions(ctx, providerID, from, to)
	if err != nil {
		return nil, err
	}
	for _, ex := range exceptions {
		if overlaps(ex.StartUTC, ex.EndUTC, from, to) {
			return &ConflictError{
				ProviderID: providerID,
				Source:     ConflictException,
				StartUTC:   ex.StartUTC,
				EndUTC:     ex.EndUTC,
				Detail:     string(ex.Kind),
			}, nil
		}
	}

	assignments, err := e.schedules.ListBookingAssignments(ctx, providerID, from, to)
	if err != nil {
		return nil, err
	}
	for _, a := range assignments {
		if overlaps(a.StartUTC, a.EndUTC, from, to) {
			return &ConflictError{
				ProviderID: providerID,
				Source:     ConflictBooking,
				StartUTC:   a.StartUTC,
				EndUTC:     a.EndUTC,
				Detail:     "appointment " + a.AppointmentID,
			}, nil
		}
	}

	return &ConflictError{
		ProviderID: providerID,
		Source:     ConflictSchedule,
		StartUTC:   from.UTC(),
		EndUTC:     to.UTC(),
		Detail:     "outside working hours",
	}, nil
}

func slotID(providerID string, start time.Time) string {
	return fmt.Sprintf("%s/%d", providerID, start.UTC().Unix())
}
