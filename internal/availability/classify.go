package availability

import "time"

// ClassifyWindow checks a candidate window [from, to) against merged
// availability ranges. The result is the best outcome across all ranges: if
// any single range fully contains the window the answer is Fits even when
// other ranges only graze it.
func ClassifyWindow(ranges []SlotRange, from, to time.Time) Classification {
	result := Unavailable
	for _, r := range ranges {
		if !r.StartUTC.After(from) && !r.EndUTC.Before(to) {
			return Fits
		}
		if overlaps(r.StartUTC, r.EndUTC, from, to) {
			result = Partial
		}
	}
	return result
}
