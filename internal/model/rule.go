package model

import (
	"time"
)

// RuleApplyTo is the transaction-type filter gating whether a rule is even
// considered for a transaction.
type RuleApplyTo string

// Apply-to scope constants.
const (
	ApplyToAll      RuleApplyTo = "all"
	ApplyToIncome   RuleApplyTo = "income"
	ApplyToExpense  RuleApplyTo = "expense"
	ApplyToTransfer RuleApplyTo = "transfer"
)

// TransactionRule is a named, prioritized automation rule: an ordered list of
// conditions (implicit AND) and an ordered list of actions applied when all
// conditions hold. Higher priority runs first; ties keep insertion order.
type TransactionRule struct {
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastAppliedAt  *time.Time
	Name           string
	Description    string
	ApplyTo        RuleApplyTo
	Conditions     Conditions
	Actions        Actions
	ID             int64
	Priority       int
	TimesApplied   int
	IsActive       bool
	StopProcessing bool
}

// Matches reports whether the transaction passes the rule's scope filter and
// every condition. An empty condition list never matches: rules are validated
// to be non-empty at save time, so an empty list here means corruption and
// the safe answer is "no".
func (r *TransactionRule) Matches(txn *Transaction) bool {
	if !r.IsActive {
		return false
	}

	if r.ApplyTo != ApplyToAll && TransactionType(r.ApplyTo) != txn.Type {
		return false
	}

	if len(r.Conditions) == 0 {
		return false
	}

	for _, condition := range r.Conditions {
		if !condition.Evaluate(txn) {
			return false
		}
	}

	return true
}

// Apply runs every action in order against the transaction, then records the
// application on the rule itself. Callers must check Matches first.
func (r *TransactionRule) Apply(txn *Transaction, now time.Time) {
	for _, action := range r.Actions {
		action.Apply(txn)
	}

	r.TimesApplied++
	applied := now
	r.LastAppliedAt = &applied
}
