package availability

import (
	"fmt"
	"sort"
	"time"
)

// GroupKeyFunc derives the grouping key under which slots may merge. Slots
// with different keys never merge into one range.
type GroupKeyFunc func(AvailabilitySlot) string

// MergeOptions control how atomic slots fold into continuous ranges.
type MergeOptions struct {
	// Tolerance is the largest gap between two slots still treated as
	// continuous. Zero merges only touching or overlapping slots.
	Tolerance time.Duration

	// GroupKey partitions slots before merging; nil merges across everything.
	GroupKey GroupKeyFunc
}

// GroupByLocationChairDay is the default grouping key: slots merge only within
// the same location, chair, and calendar day of the slot start in the given
// zone. A nil location falls back to the UTC day.
func GroupByLocationChairDay(loc *time.Location) GroupKeyFunc {
	if loc == nil {
		loc = time.UTC
	}
	return func(s AvailabilitySlot) string {
		return fmt.Sprintf("%s|%s|%s", s.Location, s.Chair, s.StartUTC.In(loc).Format("2006-01-02"))
	}
}

// MergeSlots folds atomic free slots into continuous ranges. Slots are sorted
// by (key, start), then adjacent slots extend the running range while the gap
// stays within tolerance. Merging is idempotent and, given the fixed sort,
// independent of input order. Output is ordered by start time, then key.
func MergeSlots(slots []AvailabilitySlot, opts MergeOptions) []SlotRange {
	if len(slots) == 0 {
		return nil
	}

	key := opts.GroupKey
	if key == nil {
		key = func(AvailabilitySlot) string { return "" }
	}

	sorted := make([]AvailabilitySlot, len(slots))
	copy(sorted, slots)
	sort.Slice(sorted, func(i, j int) bool {
		ki, kj := key(sorted[i]), key(sorted[j])
		if ki != kj {
			return ki < kj
		}
		if !sorted[i].StartUTC.Equal(sorted[j].StartUTC) {
			return sorted[i].StartUTC.Before(sorted[j].StartUTC)
		}
		return sorted[i].EndUTC.Before(sorted[j].EndUTC)
	})

	var out []SlotRange
	var cur *SlotRange
	for _, s := range sorted {
		k := key(s)
		if cur != nil && cur.Key == k && !s.StartUTC.After(cur.EndUTC.Add(opts.Tolerance)) {
			if s.EndUTC.After(cur.EndUTC) {
				cur.EndUTC = s.EndUTC
			}
			cur.Slots = append(cur.Slots, s)
			continue
		}
		out = append(out, SlotRange{
			StartUTC: s.StartUTC,
			EndUTC:   s.EndUTC,
			Key:      k,
			Slots:    []AvailabilitySlot{s},
		})
		cur = &out[len(out)-1]
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartUTC.Equal(out[j].StartUTC) {
			return out[i].StartUTC.Before(out[j].StartUTC)
		}
		return out[i].Key < out[j].Key
	})
	return out
}
