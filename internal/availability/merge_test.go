package availability

import (
	"reflect"
	"testing"
	"time"
)

func TestMergeSlotsWithinTolerance(t *testing.T) {
	slots := []AvailabilitySlot{
		slot(t, "2025-07-07T09:00:00Z", "2025-07-07T10:00:00Z"),
		slot(t, "2025-07-07T10:00:30Z", "2025-07-07T11:00:00Z"), // 30s gap
		slot(t, "2025-07-07T13:00:00Z", "2025-07-07T14:00:00Z"), // 2h gap
	}

	got := MergeSlots(slots, MergeOptions{Tolerance: time.Minute})
	if len(got) != 2 {
		t.Fatalf("expected 2 ranges, got %d: %v", len(got), got)
	}
	if !got[0].StartUTC.Equal(ts(t, "2025-07-07T09:00:00Z")) || !got[0].EndUTC.Equal(ts(t, "2025-07-07T11:00:00Z")) {
		t.Errorf("unexpected first range: %+v", got[0])
	}
	if len(got[0].Slots) != 2 {
		t.Errorf("first range should carry 2 source slots, got %d", len(got[0].Slots))
	}
}

func TestMergeSlotsZeroToleranceKeepsGaps(t *testing.T) {
	slots := []AvailabilitySlot{
		slot(t, "2025-07-07T09:00:00Z", "2025-07-07T10:00:00Z"),
		slot(t, "2025-07-07T10:00:30Z", "2025-07-07T11:00:00Z"),
	}

	got := MergeSlots(slots, MergeOptions{Tolerance: 0})
	if len(got) != 2 {
		t.Fatalf("expected gap preserved at zero tolerance, got %v", got)
	}
}

func TestMergeSlotsGroupingKeySeparatesRanges(t *testing.T) {
	loc := time.UTC
	a := slot(t, "2025-07-07T09:00:00Z", "2025-07-07T10:00:00Z")
	a.Location = "cbd"
	b := slot(t, "2025-07-07T10:00:00Z", "2025-07-07T11:00:00Z")
	b.Location = "northside"

	got := MergeSlots([]AvailabilitySlot{a, b}, MergeOptions{
		Tolerance: time.Minute,
		GroupKey:  GroupByLocationChairDay(loc),
	})
	if len(got) != 2 {
		t.Fatalf("different locations must not merge, got %v", got)
	}
}

func TestMergeSlotsGroupingDayUsesProviderZone(t *testing.T) {
	loc, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Fatal(err)
	}
	// 13:30Z and 14:30Z on 7 July are 23:30 and 00:30 the next day in Sydney:
	// different local days, so they must not merge even though the gap is
	// within tolerance.
	a := slot(t, "2025-07-07T13:30:00Z", "2025-07-07T14:00:00Z")
	b := slot(t, "2025-07-07T14:30:00Z", "2025-07-07T15:00:00Z")

	got := MergeSlots([]AvailabilitySlot{a, b}, MergeOptions{
		Tolerance: time.Hour,
		GroupKey:  GroupByLocationChairDay(loc),
	})
	if len(got) != 2 {
		t.Fatalf("slots on different local days must not merge, got %v", got)
	}
}

func TestMergeSlotsIdempotent(t *testing.T) {
	slots := []AvailabilitySlot{
		slot(t, "2025-07-07T09:00:00Z", "2025-07-07T10:00:00Z"),
		slot(t, "2025-07-07T10:00:30Z", "2025-07-07T11:00:00Z"),
		slot(t, "2025-07-07T13:00:00Z", "2025-07-07T14:00:00Z"),
		slot(t, "2025-07-07T13:30:00Z", "2025-07-07T15:00:00Z"), // overlapping
	}

	for _, tolerance := range []time.Duration{0, time.Second, time.Minute, time.Hour} {
		once := MergeSlots(slots, MergeOptions{Tolerance: tolerance})

		var flattened []AvailabilitySlot
		for _, r := range once {
			flattened = append(flattened, AvailabilitySlot{StartUTC: r.StartUTC, EndUTC: r.EndUTC})
		}
		twice := MergeSlots(flattened, MergeOptions{Tolerance: tolerance})

		if len(once) != len(twice) {
			t.Fatalf("tolerance %s: merge not idempotent: %d vs %d ranges", tolerance, len(once), len(twice))
		}
		for i := range once {
			if !once[i].StartUTC.Equal(twice[i].StartUTC) || !once[i].EndUTC.Equal(twice[i].EndUTC) {
				t.Fatalf("tolerance %s: range %d differs after re-merge", tolerance, i)
			}
		}
	}
}

func TestMergeSlotsOrderIndependent(t *testing.T) {
	forward := []AvailabilitySlot{
		slot(t, "2025-07-07T09:00:00Z", "2025-07-07T10:00:00Z"),
		slot(t, "2025-07-07T10:00:00Z", "2025-07-07T11:00:00Z"),
		slot(t, "2025-07-07T13:00:00Z", "2025-07-07T14:00:00Z"),
	}
	reversed := []AvailabilitySlot{forward[2], forward[0], forward[1]}

	a := MergeSlots(forward, MergeOptions{Tolerance: time.Minute})
	b := MergeSlots(reversed, MergeOptions{Tolerance: time.Minute})
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("merge result depends on input order:\n%v\nvs\n%v", a, b)
	}
}

func TestMergeSlotsEmptyInput(t *testing.T) {
	if got := MergeSlots(nil, MergeOptions{Tolerance: time.Minute}); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}
