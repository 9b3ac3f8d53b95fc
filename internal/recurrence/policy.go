// Package recurrence computes occurrence dates for recurring transactions.
// All functions are pure: given a frequency policy and a reference date they
// deterministically produce the next qualifying date.
package recurrence

import (
	"fmt"
	"time"
)

// Frequency is the base unit a recurring transaction repeats on.
type Frequency string

// Supported frequencies.
const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyAnnual  Frequency = "annual"
)

// Policy describes how often and on which calendar anchor a recurring
// transaction repeats. Only the fields relevant to Frequency are consulted;
// the rest may hold any value and are ignored.
type Policy struct {
	// DayOfWeek anchors weekly recurrences (0=Sunday .. 6=Saturday).
	DayOfWeek *int
	// DayOfMonth anchors monthly and annual recurrences (1-31).
	// 31 acts as a "last day of month" sentinel rather than a literal
	// requirement that the month have 31 days.
	DayOfMonth *int
	// MonthOfYear anchors annual recurrences (1=January .. 12=December).
	MonthOfYear *int
	Frequency   Frequency
	// Interval multiplies the frequency unit (every N days/weeks/months/years).
	Interval int
}

// Validate checks that the policy could only have been produced by a correct
// rule editor. A failing policy is a programming or corruption error, not a
// recoverable user condition.
func (p Policy) Validate() error {
	switch p.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyAnnual:
	default:
		return fmt.Errorf("unknown frequency %q", p.Frequency)
	}

	if p.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %d", p.Interval)
	}

	if p.DayOfWeek != nil && (*p.DayOfWeek < 0 || *p.DayOfWeek > 6) {
		return fmt.Errorf("day of week must be between 0 and 6, got %d", *p.DayOfWeek)
	}
	if p.DayOfMonth != nil && (*p.DayOfMonth < 1 || *p.DayOfMonth > 31) {
		return fmt.Errorf("day of month must be between 1 and 31, got %d", *p.DayOfMonth)
	}
	if p.MonthOfYear != nil && (*p.MonthOfYear < 1 || *p.MonthOfYear > 12) {
		return fmt.Errorf("month of year must be between 1 and 12, got %d", *p.MonthOfYear)
	}

	return nil
}

// StartOfDay strips the time-of-day component, keeping the location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
