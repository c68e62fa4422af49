package availability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clinicops/booking-console/internal/availability"
	"github.com/clinicops/booking-console/internal/providers"
)

// seedSuggestFixture registers three laser providers in UTC for Monday
// 7 July 2025: dr-a works 09:00-12:00 (fits the test window), dr-b starts at
// 09:30 (partial), dr-c works Tuesday only (unavailable).
func seedSuggestFixture(store *providers.MemoryStore) {
	add := func(id string, days map[time.Weekday][]availability.DayBlock) {
		store.AddProvider(availability.Provider{
			ID:       id,
			Name:     id,
			Timezone: "UTC",
			Skills:   []string{"laser"},
			Active:   true,
		})
		store.AddSchedule(availability.WeeklySchedule{ProviderID: id, Version: 1, Days: days})
	}
	add("dr-a", map[time.Weekday][]availability.DayBlock{
		time.Monday: {{Start: "09:00", End: "12:00"}},
	})
	add("dr-b", map[time.Weekday][]availability.DayBlock{
		time.Monday: {{Start: "09:30", End: "12:00"}},
	})
	add("dr-c", map[time.Weekday][]availability.DayBlock{
		time.Tuesday: {{Start: "09:00", End: "12:00"}},
	})
}

func suggestQuery(t *testing.T) availability.SuggestQuery {
	t.Helper()
	return availability.SuggestQuery{
		Skill:        "laser",
		FromUTC:      ts(t, "2025-07-07T09:00:00Z"),
		ToUTC:        ts(t, "2025-07-07T10:00:00Z"),
		AllowPartial: true,
	}
}

func TestSuggestProvidersRanking(t *testing.T) {
	engine, store := newTestEngine(t)
	seedSuggestFixture(store)

	got, err := engine.SuggestProviders(context.Background(), suggestQuery(t))
	if err != nil {
		t.Fatalf("SuggestProviders: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected fit + partial, got %v", got)
	}
	if got[0].Provider.ID != "dr-a" || !got[0].Fits {
		t.Errorf("full fit must rank first, got %+v", got[0])
	}
	if got[1].Provider.ID != "dr-b" || !got[1].Partial {
		t.Errorf("partial must rank second, got %+v", got[1])
	}
	// Free minutes count only time inside the queried window.
	if got[0].FreeMinutes != 60 {
		t.Errorf("dr-a free minutes = %d, want 60", got[0].FreeMinutes)
	}
	if got[1].FreeMinutes != 30 {
		t.Errorf("dr-b free minutes = %d, want 30", got[1].FreeMinutes)
	}
}

func TestSuggestProvidersOnlyFits(t *testing.T) {
	engine, store := newTestEngine(t)
	seedSuggestFixture(store)

	q := suggestQuery(t)
	q.OnlyFits = true
	got, err := engine.SuggestProviders(context.Background(), q)
	if err != nil {
		t.Fatalf("SuggestProviders: %v", err)
	}
	if len(got) != 1 || got[0].Provider.ID != "dr-a" {
		t.Fatalf("only_fits should keep dr-a alone, got %v", got)
	}
}

func TestSuggestProvidersDropsPartialByDefault(t *testing.T) {
	engine, store := newTestEngine(t)
	seedSuggestFixture(store)

	q := suggestQuery(t)
	q.AllowPartial = false
	got, err := engine.SuggestProviders(context.Background(), q)
	if err != nil {
		t.Fatalf("SuggestProviders: %v", err)
	}
	if len(got) != 1 || got[0].Provider.ID != "dr-a" {
		t.Fatalf("partial should be dropped without allow_partial, got %v", got)
	}
}

func TestSuggestProvidersIncludeUnavailable(t *testing.T) {
	engine, store := newTestEngine(t)
	seedSuggestFixture(store)

	q := suggestQuery(t)
	q.IncludeUnavailable = true
	got, err := engine.SuggestProviders(context.Background(), q)
	if err != nil {
		t.Fatalf("SuggestProviders: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected all three providers, got %v", got)
	}
	last := got[len(got)-1]
	if last.Provider.ID != "dr-c" || last.Fits || last.Partial {
		t.Errorf("unavailable provider must rank last, got %+v", last)
	}
}

func TestSuggestProvidersTieBreaksOnProviderID(t *testing.T) {
	engine, store := newTestEngine(t)
	// Identical schedules so scores tie exactly.
	for _, id := range []string{"dr-z", "dr-m", "dr-a"} {
		store.AddProvider(availability.Provider{
			ID: id, Name: id, Timezone: "UTC", Skills: []string{"laser"}, Active: true,
		})
		store.AddSchedule(availability.WeeklySchedule{
			ProviderID: id,
			Version:    1,
			Days: map[time.Weekday][]availability.DayBlock{
				time.Monday: {{Start: "09:00", End: "12:00"}},
			},
		})
	}

	got, err := engine.SuggestProviders(context.Background(), suggestQuery(t))
	if err != nil {
		t.Fatalf("SuggestProviders: %v", err)
	}
	want := []string{"dr-a", "dr-m", "dr-z"}
	if len(got) != len(want) {
		t.Fatalf("expected %d suggestions, got %v", len(want), got)
	}
	for i, id := range want {
		if got[i].Provider.ID != id {
			t.Errorf("position %d = %s, want %s", i, got[i].Provider.ID, id)
		}
	}
}

func TestSuggestProvidersDeterministic(t *testing.T) {
	engine, store := newTestEngine(t)
	seedSuggestFixture(store)

	q := suggestQuery(t)
	q.IncludeUnavailable = true
	first, err := engine.SuggestProviders(context.Background(), q)
	if err != nil {
		t.Fatalf("SuggestProviders: %v", err)
	}
	// The fan-out must not leak goroutine scheduling into the ordering.
	for i := 0; i < 20; i++ {
		again, err := engine.SuggestProviders(context.Background(), q)
		if err != nil {
			t.Fatalf("SuggestProviders run %d: %v", i, err)
		}
		if len(again) != len(first) {
			t.Fatalf("run %d returned %d suggestions, want %d", i, len(again), len(first))
		}
		for j := range first {
			if again[j].Provider.ID != first[j].Provider.ID || again[j].Score != first[j].Score {
				t.Fatalf("run %d diverged at position %d: %+v vs %+v", i, j, again[j], first[j])
			}
		}
	}
}

func TestSuggestProvidersDurationSearch(t *testing.T) {
	engine, store := newTestEngine(t)
	seedSuggestFixture(store)
	// Carve dr-b's morning down to a 20 minute sliver so a 30 minute
	// appointment no longer fits anywhere.
	store.AddException(availability.Exception{
		ID:         "ex-1",
		ProviderID: "dr-b",
		Kind:       availability.ExceptionBlock,
		StartUTC:   ts(t, "2025-07-07T09:50:00Z"),
		EndUTC:     ts(t, "2025-07-07T12:00:00Z"),
	})

	q := availability.SuggestQuery{
		Skill:        "laser",
		FromUTC:      ts(t, "2025-07-07T09:00:00Z"),
		ToUTC:        ts(t, "2025-07-07T12:00:00Z"),
		Duration:     30 * time.Minute,
		AllowPartial: true,
	}
	got, err := engine.SuggestProviders(context.Background(), q)
	if err != nil {
		t.Fatalf("SuggestProviders: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected dr-a and dr-b, got %v", got)
	}
	if got[0].Provider.ID != "dr-a" || !got[0].Fits {
		t.Errorf("dr-a has room for 30m and should fit, got %+v", got[0])
	}
	if got[1].Provider.ID != "dr-b" || !got[1].Partial {
		t.Errorf("dr-b's 20m sliver should read as partial, got %+v", got[1])
	}
}

func TestSuggestProvidersValidation(t *testing.T) {
	engine, store := newTestEngine(t)
	seedSuggestFixture(store)

	t.Run("inverted range", func(t *testing.T) {
		q := suggestQuery(t)
		q.FromUTC, q.ToUTC = q.ToUTC, q.FromUTC
		if _, err := engine.SuggestProviders(context.Background(), q); !errors.Is(err, availability.ErrInvalidRange) {
			t.Fatalf("expected ErrInvalidRange, got %v", err)
		}
	})

	t.Run("duration longer than window", func(t *testing.T) {
		q := suggestQuery(t)
		q.Duration = 2 * time.Hour
		if _, err := engine.SuggestProviders(context.Background(), q); !errors.Is(err, availability.ErrInvalidRange) {
			t.Fatalf("expected ErrInvalidRange, got %v", err)
		}
	})
}

func TestSuggestProvidersNoCandidates(t *testing.T) {
	engine, store := newTestEngine(t)
	seedSuggestFixture(store)

	q := suggestQuery(t)
	q.Skill = "botox"
	got, err := engine.SuggestProviders(context.Background(), q)
	if err != nil {
		t.Fatalf("SuggestProviders: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result for unknown skill, got %v", got)
	}
}

func TestSuggestProvidersSkipsInactive(t *testing.T) {
	engine, store := newTestEngine(t)
	seedSuggestFixture(store)
	store.AddProvider(availability.Provider{
		ID: "dr-retired", Timezone: "UTC", Skills: []string{"laser"}, Active: false,
	})

	q := suggestQuery(t)
	q.IncludeUnavailable = true
	got, err := engine.SuggestProviders(context.Background(), q)
	if err != nil {
		t.Fatalf("SuggestProviders: %v", err)
	}
	for _, s := range got {
		if s.Provider.ID == "dr-retired" {
			t.Fatal("inactive provider must never be suggested")
		}
	}
}
