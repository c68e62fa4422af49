// Package providers implements the availability engine's storage
// collaborators: the provider directory, versioned weekly schedules,
// exceptions, and booking assignments.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/clinicops/booking-console/internal/availability"
)

// ErrAssignmentNotFound indicates a cancellation targeted an unknown or
// already-removed assignment.
var ErrAssignmentNotFound = errors.New("providers: booking assignment not found")

// DB is the subset of pgxpool.Pool the repository uses; pgxmock satisfies it
// in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository provides postgres persistence for the scheduling records.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by a pgx pool (or mock).
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("providers: pgx pool required")
	}
	return &Repository{db: db}
}

// GetProvider loads one provider by id.
func (r *Repository) GetProvider(ctx context.Context, providerID string) (*availability.Provider, error) {
	var p availability.Provider
	err := r.db.QueryRow(ctx, `
		SELECT id, name, timezone, skills, active
		FROM providers WHERE id = $1`, providerID).
		Scan(&p.ID, &p.Name, &p.Timezone, &p.Skills, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, availability.ErrProviderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("providers: load provider: %w", err)
	}
	return &p, nil
}

// ListActiveBySkill returns active providers able to perform the treatment,
// ordered by id for deterministic downstream ranking.
func (r *Repository) ListActiveBySkill(ctx context.Context, skill string) ([]availability.Provider, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, timezone, skills, active
		FROM providers
		WHERE active AND $1 = ANY(skills)
		ORDER BY id`, skill)
	if err != nil {
		return nil, fmt.Errorf("providers: list by skill: %w", err)
	}
	defer rows.Close()

	var out []availability.Provider
	for rows.Next() {
		var p availability.Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.Timezone, &p.Skills, &p.Active); err != nil {
			return nil, fmt.Errorf("providers: scan provider: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetWeeklySchedule returns the schedule version in effect at asOf. Versions
// are append-only; the newest version covering asOf wins.
func (r *Repository) GetWeeklySchedule(ctx context.Context, providerID string, asOf time.Time) (*availability.WeeklySchedule, error) {
	var (
		version       int
		effectiveFrom pgtype.Timestamptz
		effectiveTo   pgtype.Timestamptz
		daysJSON      []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT version, effective_from, effective_to, days
		FROM weekly_schedules
		WHERE provider_id = $1
		  AND (effective_from IS NULL OR effective_from <= $2)
		  AND (effective_to IS NULL OR effective_to > $2)
		ORDER BY version DESC
		LIMIT 1`, providerID, asOf.UTC()).
		Scan(&version, &effectiveFrom, &effectiveTo, &daysJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, availability.ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("providers: load schedule: %w", err)
	}

	days, err := decodeDays(daysJSON)
	if err != nil {
		return nil, err
	}
	sched := &availability.WeeklySchedule{
		ProviderID: providerID,
		Version:    version,
		Days:       days,
	}
	if effectiveFrom.Valid {
		sched.EffectiveFrom = effectiveFrom.Time.UTC()
	}
	if effectiveTo.Valid {
		sched.EffectiveTo = effectiveTo.Time.UTC()
	}
	return sched, nil
}

// ListExceptions returns exceptions overlapping [fromUTC, toUTC), ordered by
// start.
func (r *Repository) ListExceptions(ctx context.Context, providerID string, fromUTC, toUTC time.Time) ([]availability.Exception, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, kind, start_utc, end_utc, reason, location, chair
		FROM exceptions
		WHERE provider_id = $1 AND start_utc < $3 AND end_utc > $2
		ORDER BY start_utc`, providerID, fromUTC.UTC(), toUTC.UTC())
	if err != nil {
		return nil, fmt.Errorf("providers: list exceptions: %w", err)
	}
	defer rows.Close()

	var out []availability.Exception
	for rows.Next() {
		e := availability.Exception{ProviderID: providerID}
		var kind string
		if err := rows.Scan(&e.ID, &kind, &e.StartUTC, &e.EndUTC, &e.Reason, &e.Location, &e.Chair); err != nil {
			return nil, fmt.Errorf("providers: scan exception: %w", err)
		}
		e.Kind = availability.ExceptionKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListBookingAssignments returns assignments overlapping [fromUTC, toUTC),
// ordered by start.
func (r *Repository) ListBookingAssignments(ctx context.Context, providerID string, fromUTC, toUTC time.Time) ([]availability.BookingAssignment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, appointment_id, slot_id, start_utc, end_utc, booking_context
		FROM booking_assignments
		WHERE provider_id = $1 AND start_utc < $3 AND end_utc > $2
		ORDER BY start_utc`, providerID, fromUTC.UTC(), toUTC.UTC())
	if err != nil {
		return nil, fmt.Errorf("providers: list assignments: %w", err)
	}
	defer rows.Close()

	var out []availability.BookingAssignment
	for rows.Next() {
		a := availability.BookingAssignment{ProviderID: providerID}
		if err := rows.Scan(&a.ID, &a.AppointmentID, &a.SlotID, &a.StartUTC, &a.EndUTC, &a.Context); err != nil {
			return nil, fmt.Errorf("providers: scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CommitBookingAssignment inserts the assignment inside a transaction that
// takes a per-provider advisory lock and re-checks overlaps, so two writers
// for the same provider serialize at the database even across processes that
// do not share the engine's lock. The exclusion constraint on the table is the
// final backstop.
func (r *Repository) CommitBookingAssignment(ctx context.Context, a availability.BookingAssignment) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("providers: begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, a.ProviderID); err != nil {
		return fmt.Errorf("providers: advisory lock: %w", err)
	}

	var (
		kind  string
		start time.Time
		end   time.Time
	)
	err = tx.QueryRow(ctx, `
		SELECT kind, start_utc, end_utc FROM exceptions
		WHERE provider_id = $1 AND start_utc < $3 AND end_utc > $2
		LIMIT 1`, a.ProviderID, a.StartUTC, a.EndUTC).Scan(&kind, &start, &end)
	if err == nil {
		return &availability.ConflictError{
			ProviderID: a.ProviderID,
			Source:     availability.ConflictException,
			StartUTC:   start,
			EndUTC:     end,
			Detail:     kind,
		}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("providers: check exceptions: %w", err)
	}

	var appointmentID string
	err = tx.QueryRow(ctx, `
		SELECT appointment_id, start_utc, end_utc FROM booking_assignments
		WHERE provider_id = $1 AND start_utc < $3 AND end_utc > $2
		LIMIT 1`, a.ProviderID, a.StartUTC, a.EndUTC).Scan(&appointmentID, &start, &end)
	if err == nil {
		return &availability.ConflictError{
			ProviderID: a.ProviderID,
			Source:     availability.ConflictBooking,
			StartUTC:   start,
			EndUTC:     end,
			Detail:     "appointment " + appointmentID,
		}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("providers: check assignments: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_assignments (id, provider_id, appointment_id, slot_id, start_utc, end_utc, booking_context)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.ProviderID, a.AppointmentID, a.SlotID, a.StartUTC, a.EndUTC, a.Context)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
			// Exclusion constraint violation; racing writer won.
			return &availability.ConflictError{
				ProviderID: a.ProviderID,
				Source:     availability.ConflictBooking,
				StartUTC:   a.StartUTC,
				EndUTC:     a.EndUTC,
				Detail:     "interval already assigned",
			}
		}
		return fmt.Errorf("providers: insert assignment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("providers: commit assignment: %w", err)
	}
	return nil
}

// CancelBookingAssignment removes a confirmed assignment.
func (r *Repository) CancelBookingAssignment(ctx context.Context, providerID, assignmentID string) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM booking_assignments WHERE id = $1 AND provider_id = $2`,
		assignmentID, providerID)
	if err != nil {
		return fmt.Errorf("providers: cancel assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

// weekdayNames maps the JSONB day keys onto time.Weekday.
var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

type dayBlockJSON struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Location string `json:"location,omitempty"`
	Chair    string `json:"chair,omitempty"`
}

func decodeDays(raw []byte) (map[time.Weekday][]availability.DayBlock, error) {
	var decoded map[string][]dayBlockJSON
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("providers: decode schedule days: %w", err)
	}
	days := make(map[time.Weekday][]availability.DayBlock, len(decoded))
	for name, blocks := range decoded {
		weekday, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("providers: unknown weekday %q in schedule", name)
		}
		for _, b := range blocks {
			days[weekday] = append(days[weekday], availability.DayBlock{
				Start:    b.Start,
				End:      b.End,
				Location: b.Location,
				Chair:    b.Chair,
			})
		}
	}
	return days, nil
}
