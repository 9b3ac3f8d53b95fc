package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pfennig-app/pfennig/internal/recurrence"
)

// RecurringTransaction is a transaction template plus the frequency policy
// driving when the scheduler materializes it. NextDate is always start-of-day;
// it only moves forward, via Advance or SkipOnce.
type RecurringTransaction struct {
	StartDate     time.Time
	NextDate      time.Time
	EndDate       *time.Time
	LastProcessed *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Description   string
	AccountID     string
	Type          TransactionType
	Policy        recurrence.Policy
	Amount        decimal.Decimal
	CategoryID    *int64
	ID            int64
	IsActive      bool
}

// IsDue reports whether an occurrence should be materialized at now. A past
// EndDate is a derived condition re-evaluated on every call, never a stored
// state: such a schedule is simply never due again.
func (r *RecurringTransaction) IsDue(now time.Time) bool {
	if !r.IsActive {
		return false
	}
	if r.NextDate.After(now) {
		return false
	}
	if r.EndDate != nil && now.After(*r.EndDate) {
		return false
	}
	return true
}

// Next computes the occurrence date following NextDate without mutating the
// schedule, so callers can preview before advancing.
func (r *RecurringTransaction) Next() (time.Time, error) {
	return recurrence.Next(r.NextDate, r.Policy)
}

// Advance moves NextDate to the following occurrence and records the
// processing time. It deliberately does not check IsDue: materialization and
// advancement are split so dry runs stay possible.
func (r *RecurringTransaction) Advance(now time.Time) error {
	next, err := r.Next()
	if err != nil {
		return err
	}

	r.NextDate = next
	processed := now
	r.LastProcessed = &processed
	return nil
}

// SkipOnce advances past the next occurrence without materializing a
// transaction.
func (r *RecurringTransaction) SkipOnce(now time.Time) error {
	return r.Advance(now)
}

// Pause deactivates the schedule. No other field changes.
func (r *RecurringTransaction) Pause() {
	r.IsActive = false
}

// Resume reactivates the schedule. No other field changes.
func (r *RecurringTransaction) Resume() {
	r.IsActive = true
}

// FrequencyLabel renders the policy as a human-readable summary for listings.
func (r *RecurringTransaction) FrequencyLabel() string {
	return recurrence.Describe(r.Policy)
}
