// Package model defines the core data structures for the pfennig application.
package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType describes the direction of money movement.
type TransactionType string

// Transaction type constants.
const (
	TypeIncome   TransactionType = "income"
	TypeExpense  TransactionType = "expense"
	TypeTransfer TransactionType = "transfer"
)

// Transaction represents a single financial transaction as seen by the
// automation engine. Category, tags, notes and the applied-rule attribution
// are the only fields rules may mutate.
type Transaction struct {
	Date        time.Time
	CreatedAt   time.Time
	ID          string
	Description string
	AccountID   string
	Notes       string
	Type        TransactionType
	Tags        []string
	Amount      decimal.Decimal

	// CategoryID is nil until a rule or the user assigns a category.
	CategoryID *int64

	// AppliedRuleID records the single rule credited with classifying this
	// transaction. Write-once per transaction: the first matching rule in a
	// run sets it and later rules never overwrite it.
	AppliedRuleID *int64

	// RecurringTransactionID links back to the recurring template that
	// materialized this transaction. Set only by the scheduler.
	RecurringTransactionID *int64
}

// AddTag adds a tag with set semantics: adding an existing tag is a no-op and
// never duplicates. Tags are kept sorted so serialized forms are stable.
func (t *Transaction) AddTag(tag string) {
	if t.HasTag(tag) {
		return
	}
	t.Tags = append(t.Tags, tag)
	sort.Strings(t.Tags)
}

// HasTag reports whether the transaction carries the given tag.
func (t *Transaction) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}
