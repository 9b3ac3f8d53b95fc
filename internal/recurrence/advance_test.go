package recurrence

import (
	"testing"
	"time"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func intp(v int) *int { return &v }

func TestNext_Daily(t *testing.T) {
	tests := []struct {
		name     string
		ref      time.Time
		interval int
		want     time.Time
	}{
		{"every day", date(2026, time.March, 10), 1, date(2026, time.March, 11)},
		{"every 14 days", date(2026, time.March, 10), 14, date(2026, time.March, 24)},
		{"across month boundary", date(2026, time.January, 31), 1, date(2026, time.February, 1)},
		{"across year boundary", date(2025, time.December, 31), 1, date(2026, time.January, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.ref, Policy{Frequency: FrequencyDaily, Interval: tt.interval})
			if err != nil {
				t.Fatalf("Next() error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Next() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNext_Weekly(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		ref    time.Time
		want   time.Time
	}{
		{
			name:   "no anchor advances seven days",
			policy: Policy{Frequency: FrequencyWeekly, Interval: 1},
			ref:    date(2026, time.March, 10), // Tuesday
			want:   date(2026, time.March, 17),
		},
		{
			name:   "rolls forward to anchored weekday",
			policy: Policy{Frequency: FrequencyWeekly, Interval: 1, DayOfWeek: intp(5)}, // Friday
			ref:    date(2026, time.March, 10),                                          // Tuesday
			want:   date(2026, time.March, 20),
		},
		{
			name:   "reference on anchor lands a full week later",
			policy: Policy{Frequency: FrequencyWeekly, Interval: 1, DayOfWeek: intp(2)}, // Tuesday
			ref:    date(2026, time.March, 10),                                          // Tuesday
			want:   date(2026, time.March, 17),
		},
		{
			name:   "biweekly with anchor",
			policy: Policy{Frequency: FrequencyWeekly, Interval: 2, DayOfWeek: intp(1)}, // Monday
			ref:    date(2026, time.March, 9),                                           // Monday
			want:   date(2026, time.March, 23),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.ref, tt.policy)
			if err != nil {
				t.Fatalf("Next() error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Next() = %v, want %v", got, tt.want)
			}
			if !got.After(tt.ref) {
				t.Errorf("Next() = %v is not after reference %v", got, tt.ref)
			}
		})
	}
}

func TestNext_Monthly(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		ref    time.Time
		want   time.Time
	}{
		{
			name:   "mid-month keeps the day",
			policy: Policy{Frequency: FrequencyMonthly, Interval: 1},
			ref:    date(2026, time.March, 15),
			want:   date(2026, time.April, 15),
		},
		{
			name:   "december rolls into january",
			policy: Policy{Frequency: FrequencyMonthly, Interval: 1, DayOfMonth: intp(15)},
			ref:    date(2025, time.December, 15),
			want:   date(2026, time.January, 15),
		},
		{
			name:   "jan 31 clamps to feb 29 in leap year",
			policy: Policy{Frequency: FrequencyMonthly, Interval: 1, DayOfMonth: intp(31)},
			ref:    date(2024, time.January, 31),
			want:   date(2024, time.February, 29),
		},
		{
			name:   "jan 31 clamps to feb 28 in common year",
			policy: Policy{Frequency: FrequencyMonthly, Interval: 1, DayOfMonth: intp(31)},
			ref:    date(2023, time.January, 31),
			want:   date(2023, time.February, 28),
		},
		{
			name:   "day 31 acts as last day of april",
			policy: Policy{Frequency: FrequencyMonthly, Interval: 1, DayOfMonth: intp(31)},
			ref:    date(2026, time.March, 31),
			want:   date(2026, time.April, 30),
		},
		{
			name:   "day 31 recovers after short month",
			policy: Policy{Frequency: FrequencyMonthly, Interval: 1, DayOfMonth: intp(31)},
			ref:    date(2026, time.April, 30),
			want:   date(2026, time.May, 31),
		},
		{
			name:   "anchor below reference day",
			policy: Policy{Frequency: FrequencyMonthly, Interval: 1, DayOfMonth: intp(1)},
			ref:    date(2026, time.March, 31),
			want:   date(2026, time.April, 1),
		},
		{
			name:   "quarterly keeps anchor",
			policy: Policy{Frequency: FrequencyMonthly, Interval: 3, DayOfMonth: intp(15)},
			ref:    date(2025, time.November, 15),
			want:   date(2026, time.February, 15),
		},
		{
			name:   "interval spanning multiple years",
			policy: Policy{Frequency: FrequencyMonthly, Interval: 25},
			ref:    date(2024, time.January, 10),
			want:   date(2026, time.February, 10),
		},
		{
			name:   "no anchor from short month stays clamped",
			policy: Policy{Frequency: FrequencyMonthly, Interval: 1},
			ref:    date(2026, time.January, 30),
			want:   date(2026, time.February, 28),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.ref, tt.policy)
			if err != nil {
				t.Fatalf("Next() error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Next() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNext_Annual(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		ref    time.Time
		want   time.Time
	}{
		{
			name:   "same date next year",
			policy: Policy{Frequency: FrequencyAnnual, Interval: 1},
			ref:    date(2026, time.June, 1),
			want:   date(2027, time.June, 1),
		},
		{
			name:   "feb 29 clamps to feb 28 in common year",
			policy: Policy{Frequency: FrequencyAnnual, Interval: 1},
			ref:    date(2024, time.February, 29),
			want:   date(2025, time.February, 28),
		},
		{
			name:   "feb 29 anchor survives to next leap year",
			policy: Policy{Frequency: FrequencyAnnual, Interval: 4, DayOfMonth: intp(29), MonthOfYear: intp(2)},
			ref:    date(2024, time.February, 29),
			want:   date(2028, time.February, 29),
		},
		{
			name:   "month and day anchors override reference",
			policy: Policy{Frequency: FrequencyAnnual, Interval: 1, MonthOfYear: intp(12), DayOfMonth: intp(25)},
			ref:    date(2026, time.June, 1),
			want:   date(2027, time.December, 25),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.ref, tt.policy)
			if err != nil {
				t.Fatalf("Next() error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Next() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNext_NormalizesTimeOfDay(t *testing.T) {
	ref := time.Date(2026, time.March, 10, 17, 45, 12, 0, time.UTC)
	got, err := Next(ref, Policy{Frequency: FrequencyDaily, Interval: 1})
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	want := date(2026, time.March, 11)
	if !got.Equal(want) {
		t.Errorf("Next() = %v, want start-of-day %v", got, want)
	}
}

func TestNext_AlwaysMovesForward(t *testing.T) {
	policies := []Policy{
		{Frequency: FrequencyDaily, Interval: 1},
		{Frequency: FrequencyWeekly, Interval: 1, DayOfWeek: intp(3)},
		{Frequency: FrequencyMonthly, Interval: 1, DayOfMonth: intp(31)},
		{Frequency: FrequencyAnnual, Interval: 1, MonthOfYear: intp(2), DayOfMonth: intp(29)},
	}

	for _, policy := range policies {
		ref := date(2024, time.January, 31)
		for i := 0; i < 100; i++ {
			next, err := Next(ref, policy)
			if err != nil {
				t.Fatalf("Next(%v, %+v) error: %v", ref, policy, err)
			}
			if !next.After(ref) {
				t.Fatalf("Next(%v, %+v) = %v did not move forward", ref, policy, next)
			}
			ref = next
		}
	}
}

func TestNext_InvalidPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
	}{
		{"unknown frequency", Policy{Frequency: "fortnightly", Interval: 1}},
		{"zero interval", Policy{Frequency: FrequencyDaily, Interval: 0}},
		{"negative interval", Policy{Frequency: FrequencyMonthly, Interval: -2}},
		{"day of week out of range", Policy{Frequency: FrequencyWeekly, Interval: 1, DayOfWeek: intp(7)}},
		{"day of month out of range", Policy{Frequency: FrequencyMonthly, Interval: 1, DayOfMonth: intp(32)}},
		{"month out of range", Policy{Frequency: FrequencyAnnual, Interval: 1, MonthOfYear: intp(13)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Next(date(2026, time.March, 10), tt.policy); err == nil {
				t.Errorf("Next() with %+v expected error, got none", tt.policy)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		policy Policy
	}{
		{"daily", "Daily", Policy{Frequency: FrequencyDaily, Interval: 1}},
		{"every n days", "Every 3 days", Policy{Frequency: FrequencyDaily, Interval: 3}},
		{"weekly plain", "Weekly", Policy{Frequency: FrequencyWeekly, Interval: 1}},
		{"weekly anchored", "Weekly on Monday", Policy{Frequency: FrequencyWeekly, Interval: 1, DayOfWeek: intp(1)}},
		{"biweekly anchored", "Every 2 weeks on Friday", Policy{Frequency: FrequencyWeekly, Interval: 2, DayOfWeek: intp(5)}},
		{"monthly anchored", "Monthly on day 15", Policy{Frequency: FrequencyMonthly, Interval: 1, DayOfMonth: intp(15)}},
		{"quarterly", "Every 3 months on day 1", Policy{Frequency: FrequencyMonthly, Interval: 3, DayOfMonth: intp(1)}},
		{"annual anchored", "Annually in December on day 25", Policy{Frequency: FrequencyAnnual, Interval: 1, MonthOfYear: intp(12), DayOfMonth: intp(25)}},
		{"unknown frequency renders raw", "fortnightly", Policy{Frequency: "fortnightly", Interval: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.policy); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}
