package availability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicops/booking-console/internal/observability/metrics"
	"github.com/clinicops/booking-console/pkg/logging"
)

var availabilityTracer = otel.Tracer("console.internal.availability")

// ProviderDirectory resolves providers and skill-filtered candidate sets.
type ProviderDirectory interface {
	GetProvider(ctx context.Context, providerID string) (*Provider, error)
	ListActiveBySkill(ctx context.Context, skill string) ([]Provider, error)
}

// ScheduleStore owns the long-lived scheduling records the engine reads. The
// engine never caches results across requests; every answer reflects store
// state at read time.
type ScheduleStore interface {
	// GetWeeklySchedule returns the schedule version in effect at asOf.
	GetWeeklySchedule(ctx context.Context, providerID string, asOf time.Time) (*WeeklySchedule, error)
	ListExceptions(ctx context.Context, providerID string, fromUTC, toUTC time.Time) ([]Exception, error)
	ListBookingAssignments(ctx context.Context, providerID string, fromUTC, toUTC time.Time) ([]BookingAssignment, error)
}

// BookingStore owns the reservation write path. CommitBookingAssignment must
// be atomic with respect to concurrent commits for the same provider and
// returns *ConflictError when the interval is already taken.
type BookingStore interface {
	CommitBookingAssignment(ctx context.Context, assignment BookingAssignment) error
	CancelBookingAssignment(ctx context.Context, providerID, assignmentID string) error
}

// Options tune the engine-wide defaults.
type Options struct {
	// MergeTolerance is the default gap allowed between two slots still
	// treated as continuous. The source UI used 60 seconds.
	MergeTolerance time.Duration

	// Granularity is the minimum slot length worth keeping after
	// subtraction. Defaults to one minute.
	Granularity time.Duration

	// SuggestWorkers bounds the per-query provider fan-out.
	SuggestWorkers int
}

// Engine composes the availability pipeline over the storage collaborators.
// The read path is pure and safe for concurrent use; only ReserveBooking
// serializes, per provider.
type Engine struct {
	directory ProviderDirectory
	schedules ScheduleStore
	bookings  BookingStore
	locker    ProviderLocker
	logger    *logging.Logger
	metrics   *metrics.AvailabilityMetrics
	opts      Options
}

// NewEngine constructs the availability engine.
func NewEngine(directory ProviderDirectory, schedules ScheduleStore, bookings BookingStore, locker ProviderLocker, logger *logging.Logger, m *metrics.AvailabilityMetrics, opts Options) *Engine {
	if directory == nil || schedules == nil || bookings == nil {
		panic("availability: directory, schedule and booking stores required")
	}
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if opts.MergeTolerance <= 0 {
		opts.MergeTolerance = time.Minute
	}
	if opts.Granularity <= 0 {
		opts.Granularity = time.Minute
	}
	if opts.SuggestWorkers <= 0 {
		opts.SuggestWorkers = 8
	}
	return &Engine{
		directory: directory,
		schedules: schedules,
		bookings:  bookings,
		locker:    locker,
		logger:    logger,
		metrics:   m,
		opts:      opts,
	}
}

// ComputeOptions are per-request overrides for ComputeAvailability.
type ComputeOptions struct {
	// Tolerance overrides the engine merge tolerance when non-nil.
	Tolerance *time.Duration

	// NoGrouping merges across locations, chairs and days.
	NoGrouping bool

	// GroupKey replaces the default grouping key when non-nil.
	GroupKey GroupKeyFunc
}

// ComputeAvailability runs the full read pipeline for one provider and
// returns the merged free ranges inside [fromUTC, toUTC).
func (e *Engine) ComputeAvailability(ctx context.Context, providerID string, fromUTC, toUTC time.Time, opts *ComputeOptions) ([]SlotRange, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.compute")
	defer span.End()
	span.SetAttributes(
		attribute.String("console.provider_id", providerID),
		attribute.String("console.from", fromUTC.Format(time.RFC3339)),
		attribute.String("console.to", toUTC.Format(time.RFC3339)),
	)
	start := time.Now()
	defer func() { e.metrics.ObserveCompute("availability", time.Since(start).Seconds()) }()

	if !fromUTC.Before(toUTC) {
		return nil, ErrInvalidRange
	}
	provider, err := e.directory.GetProvider(ctx, providerID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	slots, err := e.freeSlots(ctx, provider, fromUTC, toUTC)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	loc, err := time.LoadLocation(provider.Timezone)
	if err != nil {
		return nil, &TimezoneError{Zone: provider.Timezone, Err: err}
	}

	tolerance := e.opts.MergeTolerance
	if opts != nil && opts.Tolerance != nil {
		tolerance = *opts.Tolerance
	}
	var key GroupKeyFunc
	switch {
	case opts != nil && opts.NoGrouping:
		key = nil
	case opts != nil && opts.GroupKey != nil:
		key = opts.GroupKey
	default:
		key = GroupByLocationChairDay(loc)
	}

	ranges := MergeSlots(slots, MergeOptions{Tolerance: tolerance, GroupKey: key})
	e.logger.Debug("availability computed",
		"provider_id", providerID,
		"slots", len(slots),
		"ranges", len(ranges),
	)
	return ranges, nil
}

// ClassifyWindow classifies a candidate appointment window against the
// provider's merged availability inside [fromUTC, toUTC).
func (e *Engine) ClassifyWindow(ctx context.Context, providerID string, fromUTC, toUTC, candidateFrom, candidateTo time.Time) (Classification, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.classify")
	defer span.End()
	span.SetAttributes(attribute.String("console.provider_id", providerID))

	if !candidateFrom.Before(candidateTo) {
		return "", ErrInvalidRange
	}
	ranges, err := e.ComputeAvailability(ctx, providerID, fromUTC, toUTC, nil)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return ClassifyWindow(ranges, candidateFrom.UTC(), candidateTo.UTC()), nil
}

// CancelBooking releases a confirmed assignment. Reschedules are a cancel
// followed by a fresh ReserveBooking.
func (e *Engine) CancelBooking(ctx context.Context, providerID, assignmentID string) error {
	ctx, span := availabilityTracer.Start(ctx, "availability.cancel")
	defer span.End()
	span.SetAttributes(
		attribute.String("console.provider_id", providerID),
		attribute.String("console.assignment_id", assignmentID),
	)
	if err := e.bookings.CancelBookingAssignment(ctx, providerID, assignmentID); err != nil {
		span.RecordError(err)
		return err
	}
	e.logger.Info("booking cancelled", "provider_id", providerID, "assignment_id", assignmentID)
	return nil
}

// freeSlots is the shared expand → subtract exceptions → subtract bookings
// pipeline. Both the display path and the reservation guard go through it, so
// the two cannot disagree about what is free.
func (e *Engine) freeSlots(ctx context.Context, provider *Provider, fromUTC, toUTC time.Time) ([]AvailabilitySlot, error) {
	sched, err := e.schedules.GetWeeklySchedule(ctx, provider.ID, fromUTC)
	if err != nil {
		return nil, err
	}

	base, err := ExpandSchedule(sched, provider.Timezone, fromUTC, toUTC)
	if err != nil {
		return nil, err
	}
	if len(base) == 0 {
		return nil, nil
	}

	exceptions, err := e.schedules.ListExceptions(ctx, provider.ID, fromUTC, toUTC)
	if err != nil {
		return nil, err
	}
	free := SubtractExceptions(base, exceptions, e.opts.Granularity)

	assignments, err := e.schedules.ListBookingAssignments(ctx, provider.ID, fromUTC, toUTC)
	if err != nil {
		return nil, err
	}
	return SubtractBookings(free, assignments, e.opts.Granularity), nil
}
