// Package rules evaluates transaction automation rules in priority order and
// applies the actions of every matching rule to a transaction.
package rules

import (
	"sort"
	"time"

	"github.com/pfennig-app/pfennig/internal/model"
)

// SkipReason explains why a run did not evaluate any rules.
type SkipReason string

// Skip reasons reported by Run.
const (
	// SkipAlreadyClassified means a rule was applied to the transaction in
	// an earlier run. Re-application is disallowed; the transaction and all
	// rule counters stay untouched.
	SkipAlreadyClassified SkipReason = "already_classified"
	// SkipRecurringOrigin means the transaction was materialized from a
	// recurring template. Those carry their own category and are never
	// auto-classified.
	SkipRecurringOrigin SkipReason = "recurring_origin"
)

// RunResult reports what a single rule run did to a transaction.
type RunResult struct {
	// SkipReason is set when the whole transaction was skipped.
	SkipReason SkipReason
	// AppliedRuleIDs lists every rule whose actions ran, in execution order.
	AppliedRuleIDs []int64
	// AttributedRuleID is the rule credited on the transaction: the first
	// (highest-priority) matching rule of the run. Nil when nothing matched.
	AttributedRuleID *int64
	// Stopped is true when a matched rule with stop-processing halted the run.
	Stopped bool
}

// Skipped reports whether the transaction was skipped without evaluation.
func (r RunResult) Skipped() bool {
	return r.SkipReason != ""
}

// Engine evaluates an ordered set of rules against individual transactions.
// It performs no I/O; persisting the mutated transaction and rule counters is
// the caller's responsibility, inside whatever transaction boundary the
// caller needs for atomicity.
type Engine struct{}

// NewEngine creates a rule engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Run evaluates the rules against the transaction and applies every matching
// rule's actions. Rules run in priority order (higher first, ties in input
// order); the first match sets the transaction's applied-rule attribution and
// a matched stop-processing rule halts the run after its own application.
func (e *Engine) Run(txn *model.Transaction, ruleSet []*model.TransactionRule, now time.Time) RunResult {
	var result RunResult

	if txn.AppliedRuleID != nil {
		result.SkipReason = SkipAlreadyClassified
		return result
	}
	if txn.RecurringTransactionID != nil {
		result.SkipReason = SkipRecurringOrigin
		return result
	}

	ordered := make([]*model.TransactionRule, 0, len(ruleSet))
	for _, rule := range ruleSet {
		if rule.IsActive {
			ordered = append(ordered, rule)
		}
	}
	// Stable sort keeps the caller's order (id ascending from storage) for
	// equal priorities, so runs are reproducible.
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	for _, rule := range ordered {
		if !rule.Matches(txn) {
			continue
		}

		rule.Apply(txn, now)
		result.AppliedRuleIDs = append(result.AppliedRuleIDs, rule.ID)

		if result.AttributedRuleID == nil {
			id := rule.ID
			result.AttributedRuleID = &id
			txn.AppliedRuleID = &id
		}

		if rule.StopProcessing {
			result.Stopped = true
			break
		}
	}

	return result
}
