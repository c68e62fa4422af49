package availability

import (
	"sort"
	"time"
)

// span is a half-open UTC interval [start, end). Busy time (exceptions,
// bookings) is reduced to spans before subtraction so the sweep does not care
// where the time came from.
type span struct {
	start time.Time
	end   time.Time
}

func (s span) empty() bool { return !s.start.Before(s.end) }

// overlaps reports whether two half-open intervals intersect:
// [a,b) overlaps [c,d) iff a < d && c < b.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// coalesceSpans sorts spans by start and merges overlapping or touching ones.
// Back-to-back busy spans therefore subtract as one block, leaving no sliver
// between them.
func coalesceSpans(spans []span) []span {
	var in []span
	for _, s := range spans {
		if !s.empty() {
			in = append(in, s)
		}
	}
	if len(in) <= 1 {
		return in
	}
	sort.Slice(in, func(i, j int) bool { return in[i].start.Before(in[j].start) })

	out := in[:1]
	for _, s := range in[1:] {
		last := &out[len(out)-1]
		if !s.start.After(last.end) {
			if s.end.After(last.end) {
				last.end = s.end
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// subtractBusy removes busy spans from the base slots and returns the
// remaining sub-slots. Base slots must be sorted by start and pairwise
// disjoint (the expander guarantees both). Remainders shorter than the
// granularity are dropped rather than kept as unusable slivers.
//
// Busy spans are coalesced once, then a single forward sweep walks both lists,
// so the whole subtraction is O(n log n + m log m) in the sorts and linear in
// the sweep.
func subtractBusy(base []AvailabilitySlot, busy []span, granularity time.Duration) []AvailabilitySlot {
	if len(base) == 0 {
		return nil
	}
	merged := coalesceSpans(busy)
	if granularity <= 0 {
		granularity = time.Minute
	}

	out := make([]AvailabilitySlot, 0, len(base))
	j := 0
	for _, slot := range base {
		cursor := slot.StartUTC

		// Skip busy spans that end before this slot begins.
		for j < len(merged) && !merged[j].end.After(cursor) {
			j++
		}

		for k := j; k < len(merged) && merged[k].start.Before(slot.EndUTC); k++ {
			if merged[k].start.After(cursor) {
				out = appendSlot(out, slot, cursor, merged[k].start, granularity)
			}
			if merged[k].end.After(cursor) {
				cursor = merged[k].end
			}
			if !cursor.Before(slot.EndUTC) {
				break
			}
		}
		if cursor.Before(slot.EndUTC) {
			out = appendSlot(out, slot, cursor, slot.EndUTC, granularity)
		}
	}
	return out
}

func appendSlot(dst []AvailabilitySlot, src AvailabilitySlot, start, end time.Time, granularity time.Duration) []AvailabilitySlot {
	if end.Sub(start) < granularity {
		return dst
	}
	return append(dst, AvailabilitySlot{
		StartUTC: start,
		EndUTC:   end,
		Location: src.Location,
		Chair:    src.Chair,
	})
}

// slotSpans projects slots onto bare spans.
func slotSpans(slots []AvailabilitySlot) []span {
	spans := make([]span, 0, len(slots))
	for _, s := range slots {
		spans = append(spans, span{start: s.StartUTC, end: s.EndUTC})
	}
	return spans
}

// covered reports whether [from, to) lies entirely inside the union of the
// given slots.
func covered(slots []AvailabilitySlot, from, to time.Time) bool {
	for _, s := range coalesceSpans(slotSpans(slots)) {
		if !s.start.After(from) && !s.end.Before(to) {
			return true
		}
	}
	return false
}
