package recurrence

import (
	"fmt"
	"time"
)

// Next computes the next occurrence date strictly after ref under the given
// policy. The result is always normalized to start-of-day in ref's location.
// An invalid policy returns an error rather than a guessed date.
func Next(ref time.Time, p Policy) (time.Time, error) {
	if err := p.Validate(); err != nil {
		return time.Time{}, fmt.Errorf("invalid frequency policy: %w", err)
	}

	ref = StartOfDay(ref)

	switch p.Frequency {
	case FrequencyDaily:
		return ref.AddDate(0, 0, p.Interval), nil
	case FrequencyWeekly:
		return nextWeekly(ref, p), nil
	case FrequencyMonthly:
		return nextMonthly(ref, p), nil
	case FrequencyAnnual:
		return nextAnnual(ref, p), nil
	}

	// Unreachable: Validate rejects unknown frequencies.
	return time.Time{}, fmt.Errorf("unknown frequency %q", p.Frequency)
}

// nextWeekly advances by interval weeks, then rolls forward to the anchored
// weekday if one is set. A reference already on the anchor weekday lands a
// full interval later, never on the reference date itself.
func nextWeekly(ref time.Time, p Policy) time.Time {
	next := ref.AddDate(0, 0, 7*p.Interval)
	if p.DayOfWeek == nil {
		return next
	}

	want := time.Weekday(*p.DayOfWeek)
	for next.Weekday() != want {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// nextMonthly advances by interval calendar months. Go's AddDate normalizes
// overflow (Jan 31 + 1 month = Mar 3), so the month arithmetic is done by
// hand and the day clamped to the target month's length.
func nextMonthly(ref time.Time, p Policy) time.Time {
	year, month := ref.Year(), int(ref.Month())+p.Interval
	year += (month - 1) / 12
	month = (month-1)%12 + 1

	day := ref.Day()
	if p.DayOfMonth != nil {
		day = *p.DayOfMonth
	}
	if max := daysIn(year, time.Month(month)); day > max {
		day = max
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, ref.Location())
}

// nextAnnual advances by interval years, optionally re-anchoring the month and
// day. Clamping handles Feb 29 references landing in non-leap years.
func nextAnnual(ref time.Time, p Policy) time.Time {
	year := ref.Year() + p.Interval

	month := ref.Month()
	if p.MonthOfYear != nil {
		month = time.Month(*p.MonthOfYear)
	}

	day := ref.Day()
	if p.DayOfMonth != nil {
		day = *p.DayOfMonth
	}
	if max := daysIn(year, month); day > max {
		day = max
	}

	return time.Date(year, month, day, 0, 0, 0, 0, ref.Location())
}
