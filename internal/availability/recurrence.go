package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ExpandSchedule turns one weekly schedule version into the concrete UTC
// intervals it produces inside [fromUTC, toUTC), interpreted in the given IANA
// zone. The walk happens per calendar day in the provider's zone, so a block's
// local wall-clock times map through that day's actual offset — on daylight
// saving transition days the same local block covers a different UTC duration.
//
// The schedule's effective window clips the output. Returns ErrInvalidRange
// when the range is empty or inverted and *TimezoneError for unknown zones.
func ExpandSchedule(sched *WeeklySchedule, zone string, fromUTC, toUTC time.Time) ([]AvailabilitySlot, error) {
	if !fromUTC.Before(toUTC) {
		return nil, ErrInvalidRange
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, &TimezoneError{Zone: zone, Err: err}
	}

	from := fromUTC.UTC()
	to := toUTC.UTC()
	if !sched.EffectiveFrom.IsZero() && sched.EffectiveFrom.After(from) {
		from = sched.EffectiveFrom.UTC()
	}
	if !sched.EffectiveTo.IsZero() && sched.EffectiveTo.Before(to) {
		to = sched.EffectiveTo.UTC()
	}
	if !from.Before(to) {
		return nil, nil
	}

	var out []AvailabilitySlot

	// Start at local midnight of the day containing `from` and walk one local
	// calendar day at a time. time.Date re-resolves the offset each day.
	local := from.In(loc)
	y, m, d := local.Date()
	for day := time.Date(y, m, d, 0, 0, 0, 0, loc); day.Before(to); {
		for _, block := range sched.Days[day.Weekday()] {
			slot, err := blockOccurrence(block, day, loc)
			if err != nil {
				return nil, err
			}
			start, end := slot.StartUTC, slot.EndUTC
			if start.Before(from) {
				start = from
			}
			if end.After(to) {
				end = to
			}
			if start.Before(end) {
				out = append(out, AvailabilitySlot{
					StartUTC: start,
					EndUTC:   end,
					Location: block.Location,
					Chair:    block.Chair,
				})
			}
		}
		dy, dm, dd := day.Date()
		day = time.Date(dy, dm, dd+1, 0, 0, 0, 0, loc)
	}
	return out, nil
}

// blockOccurrence resolves a day block to UTC for one specific local day.
func blockOccurrence(block DayBlock, day time.Time, loc *time.Location) (AvailabilitySlot, error) {
	sh, sm, err := parseClock(block.Start)
	if err != nil {
		return AvailabilitySlot{}, err
	}
	eh, em, err := parseClock(block.End)
	if err != nil {
		return AvailabilitySlot{}, err
	}
	if eh*60+em <= sh*60+sm {
		return AvailabilitySlot{}, fmt.Errorf("availability: day block %s-%s is inverted or empty", block.Start, block.End)
	}
	y, m, d := day.Date()
	start := time.Date(y, m, d, sh, sm, 0, 0, loc).UTC()
	end := time.Date(y, m, d, eh, em, 0, 0, loc).UTC()
	return AvailabilitySlot{StartUTC: start, EndUTC: end}, nil
}

// parseClock parses a local wall-clock time "HH:MM".
func parseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("availability: invalid clock time %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("availability: invalid clock time %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("availability: invalid clock time %q", s)
	}
	return hour, minute, nil
}
