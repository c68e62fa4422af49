package providers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/clinicops/booking-console/internal/availability"
)

// MemoryStore is an in-memory implementation of the engine's collaborator
// interfaces, used in tests and when the console boots without DATABASE_URL.
type MemoryStore struct {
	mu          sync.RWMutex
	providers   map[string]availability.Provider
	schedules   map[string][]availability.WeeklySchedule
	exceptions  map[string][]availability.Exception
	assignments map[string][]availability.BookingAssignment
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		providers:   make(map[string]availability.Provider),
		schedules:   make(map[string][]availability.WeeklySchedule),
		exceptions:  make(map[string][]availability.Exception),
		assignments: make(map[string][]availability.BookingAssignment),
	}
}

// AddProvider registers or replaces a provider.
func (m *MemoryStore) AddProvider(p availability.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.ID] = p
}

// AddSchedule appends a schedule version for its provider.
func (m *MemoryStore) AddSchedule(s availability.WeeklySchedule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[s.ProviderID] = append(m.schedules[s.ProviderID], s)
}

// AddException records a time-off exception.
func (m *MemoryStore) AddException(e availability.Exception) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exceptions[e.ProviderID] = append(m.exceptions[e.ProviderID], e)
}

// GetProvider implements availability.ProviderDirectory.
func (m *MemoryStore) GetProvider(ctx context.Context, providerID string) (*availability.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[providerID]
	if !ok {
		return nil, availability.ErrProviderNotFound
	}
	return &p, nil
}

// ListActiveBySkill implements availability.ProviderDirectory.
func (m *MemoryStore) ListActiveBySkill(ctx context.Context, skill string) ([]availability.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []availability.Provider
	for _, p := range m.providers {
		if p.Active && p.HasSkill(skill) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetWeeklySchedule implements availability.ScheduleStore.
func (m *MemoryStore) GetWeeklySchedule(ctx context.Context, providerID string, asOf time.Time) (*availability.WeeklySchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *availability.WeeklySchedule
	for i := range m.schedules[providerID] {
		s := m.schedules[providerID][i]
		if !s.Covers(asOf) {
			continue
		}
		if best == nil || s.Version > best.Version {
			best = &s
		}
	}
	if best == nil {
		return nil, availability.ErrScheduleNotFound
	}
	copied := *best
	return &copied, nil
}

// ListExceptions implements availability.ScheduleStore.
func (m *MemoryStore) ListExceptions(ctx context.Context, providerID string, fromUTC, toUTC time.Time) ([]availability.Exception, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []availability.Exception
	for _, e := range m.exceptions[providerID] {
		if e.StartUTC.Before(toUTC) && e.EndUTC.After(fromUTC) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartUTC.Before(out[j].StartUTC) })
	return out, nil
}

// ListBookingAssignments implements availability.ScheduleStore.
func (m *MemoryStore) ListBookingAssignments(ctx context.Context, providerID string, fromUTC, toUTC time.Time) ([]availability.BookingAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []availability.BookingAssignment
	for _, a := range m.assignments[providerID] {
		if a.StartUTC.Before(toUTC) && a.EndUTC.After(fromUTC) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartUTC.Before(out[j].StartUTC) })
	return out, nil
}

// CommitBookingAssignment implements availability.BookingStore. The overlap
// check and the insert happen under one lock, mirroring the transactional
// guarantee of the postgres store.
func (m *MemoryStore) CommitBookingAssignment(ctx context.Context, a availability.BookingAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.exceptions[a.ProviderID] {
		if e.StartUTC.Before(a.EndUTC) && e.EndUTC.After(a.StartUTC) {
			return &availability.ConflictError{
				ProviderID: a.ProviderID,
				Source:     availability.ConflictException,
				StartUTC:   e.StartUTC,
				EndUTC:     e.EndUTC,
				Detail:     string(e.Kind),
			}
		}
	}
	for _, existing := range m.assignments[a.ProviderID] {
		if existing.StartUTC.Before(a.EndUTC) && existing.EndUTC.After(a.StartUTC) {
			return &availability.ConflictError{
				ProviderID: a.ProviderID,
				Source:     availability.ConflictBooking,
				StartUTC:   existing.StartUTC,
				EndUTC:     existing.EndUTC,
				Detail:     "appointment " + existing.AppointmentID,
			}
		}
	}

	m.assignments[a.ProviderID] = append(m.assignments[a.ProviderID], a)
	return nil
}

// CancelBookingAssignment implements availability.BookingStore.
func (m *MemoryStore) CancelBookingAssignment(ctx context.Context, providerID, assignmentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.assignments[providerID]
	for i, a := range list {
		if a.ID == assignmentID {
			m.assignments[providerID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrAssignmentNotFound
}
