// Package engine orchestrates the automation layer: batch rule runs over
// unclassified transactions and materialization of due recurring schedules.
// The pure evaluation logic lives in internal/rules and internal/recurrence;
// this package owns the storage transaction boundaries around it.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/pfennig-app/pfennig/internal/common"
	"github.com/pfennig-app/pfennig/internal/model"
	"github.com/pfennig-app/pfennig/internal/rules"
	"github.com/pfennig-app/pfennig/internal/service"
)

// Classifier runs the rule engine over stored transactions.
type Classifier struct {
	storage   service.Storage
	engine    *rules.Engine
	retryOpts service.RetryOptions
}

// NewClassifier creates a classifier backed by the given storage.
func NewClassifier(storage service.Storage) *Classifier {
	return &Classifier{
		storage: storage,
		engine:  rules.NewEngine(),
	}
}

// ClassifyStats summarizes a batch classification run.
type ClassifyStats struct {
	Total      int
	Classified int
	Unmatched  int
	Skipped    int
	Failed     int
}

// ClassifyAll loads the active rules once and runs them against every
// unclassified ad-hoc transaction. Each transaction is classified and
// persisted inside its own storage transaction together with the counters of
// the rules that fired, so a crash never leaves a classified transaction
// without its rule attribution. A single transaction's failure is logged and
// does not abort the batch.
func (c *Classifier) ClassifyAll(ctx context.Context, now time.Time) (ClassifyStats, error) {
	var stats ClassifyStats

	activeRules, err := c.storage.GetActiveRules(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to load active rules: %w", err)
	}

	transactions, err := c.storage.GetUnclassifiedTransactions(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to load unclassified transactions: %w", err)
	}

	stats.Total = len(transactions)
	if stats.Total == 0 {
		common.LogInfo("No transactions to classify", nil)
		return stats, nil
	}

	common.LogInfo("Starting classification run", common.Fields{
		"transactions": stats.Total,
		"rules":        len(activeRules),
	})

	for i := range transactions {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		txn := &transactions[i]
		result, err := c.classifyOne(ctx, txn, activeRules, now)
		if err != nil {
			stats.Failed++
			common.LogError(err, "Failed to classify transaction", common.Fields{
				"transaction_id": txn.ID,
			})
			continue
		}

		switch {
		case result.Skipped():
			stats.Skipped++
		case result.AttributedRuleID != nil:
			stats.Classified++
		default:
			stats.Unmatched++
		}
	}

	common.LogInfo("Classification run complete", common.Fields{
		"classified": stats.Classified,
		"unmatched":  stats.Unmatched,
		"skipped":    stats.Skipped,
		"failed":     stats.Failed,
	})

	return stats, nil
}

// ClassifyOne runs the active rules against a single stored transaction and
// persists the outcome. Used by `transactions classify --id` and rule tests
// against live data.
func (c *Classifier) ClassifyOne(ctx context.Context, id string, now time.Time) (rules.RunResult, error) {
	activeRules, err := c.storage.GetActiveRules(ctx)
	if err != nil {
		return rules.RunResult{}, fmt.Errorf("failed to load active rules: %w", err)
	}

	txn, err := c.storage.GetTransactionByID(ctx, id)
	if err != nil {
		return rules.RunResult{}, err
	}

	return c.classifyOne(ctx, txn, activeRules, now)
}

// Preview evaluates the active rules against a transaction without persisting
// anything. The transaction is copied first so the caller's value stays
// untouched.
func (c *Classifier) Preview(ctx context.Context, txn model.Transaction, now time.Time) (model.Transaction, rules.RunResult, error) {
	activeRules, err := c.storage.GetActiveRules(ctx)
	if err != nil {
		return txn, rules.RunResult{}, fmt.Errorf("failed to load active rules: %w", err)
	}

	ruleSet := ruleSetOf(activeRules)
	result := c.engine.Run(&txn, ruleSet, now)
	return txn, result, nil
}

func (c *Classifier) classifyOne(ctx context.Context, txn *model.Transaction, activeRules []model.TransactionRule, now time.Time) (rules.RunResult, error) {
	// The engine mutates rules and the transaction in memory; run it on
	// copies so a failed persist leaves the loaded state clean for the next
	// transaction in the batch.
	ruleCopies := make([]model.TransactionRule, len(activeRules))
	copy(ruleCopies, activeRules)
	txnCopy := *txn

	result := c.engine.Run(&txnCopy, ruleSetOf(ruleCopies), now)
	if result.Skipped() || len(result.AppliedRuleIDs) == 0 {
		return result, nil
	}

	err := common.WithRetry(ctx, func() error {
		return c.persistRun(ctx, &txnCopy, result, now)
	}, c.retryOpts)
	if err != nil {
		return rules.RunResult{}, err
	}

	*txn = txnCopy
	return result, nil
}

// persistRun writes the mutated transaction and the counters of every rule
// that fired inside one storage transaction.
func (c *Classifier) persistRun(ctx context.Context, txn *model.Transaction, result rules.RunResult, now time.Time) error {
	tx, err := c.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.UpdateTransaction(ctx, txn); err != nil {
		return err
	}
	for _, ruleID := range result.AppliedRuleIDs {
		if err := tx.RecordRuleApplication(ctx, ruleID, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit classification: %w", err)
	}
	return nil
}

func ruleSetOf(ruleList []model.TransactionRule) []*model.TransactionRule {
	ruleSet := make([]*model.TransactionRule, len(ruleList))
	for i := range ruleList {
		ruleSet[i] = &ruleList[i]
	}
	return ruleSet
}
