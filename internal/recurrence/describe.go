package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// Describe renders a human-readable summary of a policy, e.g. "Every 2 weeks
// on Monday", "Monthly on day 15" or "Annually in December on day 25". Output
// is deterministic for a given policy. An unknown frequency renders as-is so a
// corrupted schedule is still visible in listings rather than blank.
func Describe(p Policy) string {
	var b strings.Builder

	switch p.Frequency {
	case FrequencyDaily:
		if p.Interval == 1 {
			b.WriteString("Daily")
		} else {
			fmt.Fprintf(&b, "Every %d days", p.Interval)
		}
	case FrequencyWeekly:
		if p.Interval == 1 {
			b.WriteString("Weekly")
		} else {
			fmt.Fprintf(&b, "Every %d weeks", p.Interval)
		}
		if p.DayOfWeek != nil {
			fmt.Fprintf(&b, " on %s", time.Weekday(*p.DayOfWeek))
		}
	case FrequencyMonthly:
		if p.Interval == 1 {
			b.WriteString("Monthly")
		} else {
			fmt.Fprintf(&b, "Every %d months", p.Interval)
		}
		if p.DayOfMonth != nil {
			fmt.Fprintf(&b, " on day %d", *p.DayOfMonth)
		}
	case FrequencyAnnual:
		if p.Interval == 1 {
			b.WriteString("Annually")
		} else {
			fmt.Fprintf(&b, "Every %d years", p.Interval)
		}
		if p.MonthOfYear != nil {
			fmt.Fprintf(&b, " in %s", time.Month(*p.MonthOfYear))
		}
		if p.DayOfMonth != nil {
			fmt.Fprintf(&b, " on day %d", *p.DayOfMonth)
		}
	default:
		return string(p.Frequency)
	}

	return b.String()
}
