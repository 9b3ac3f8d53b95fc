package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pfennig-app/pfennig/internal/common"
	"github.com/pfennig-app/pfennig/internal/model"
	"github.com/pfennig-app/pfennig/internal/recurrence"
	"github.com/pfennig-app/pfennig/internal/service"
)

// Processor materializes transactions from due recurring schedules.
type Processor struct {
	storage   service.Storage
	retryOpts service.RetryOptions
}

// NewProcessor creates a processor backed by the given storage.
func NewProcessor(storage service.Storage) *Processor {
	return &Processor{storage: storage}
}

// Occurrence is one materialized (or previewed) transaction of a schedule.
type Occurrence struct {
	Date        time.Time
	Transaction model.Transaction
	RecurringID int64
}

// ProcessStats summarizes a scheduler run.
type ProcessStats struct {
	Occurrences []Occurrence
	Schedules   int
	Failed      int
	DryRun      bool
}

// ProcessDue walks the active recurring schedules and materializes a
// transaction for every occurrence due at now. An overdue schedule catches
// up: it yields one transaction per missed occurrence until its next date
// moves past now. Each schedule's transactions and its advanced next date are
// committed atomically; a failing schedule is logged and skipped so the rest
// of the run proceeds.
//
// With dryRun set, ProcessDue computes the same occurrences on copies and
// persists nothing.
func (p *Processor) ProcessDue(ctx context.Context, now time.Time, dryRun bool) (ProcessStats, error) {
	stats := ProcessStats{DryRun: dryRun}

	schedules, err := p.storage.GetActiveRecurringTransactions(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to load recurring transactions: %w", err)
	}

	for i := range schedules {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		schedule := schedules[i]
		if !schedule.IsDue(now) {
			continue
		}
		stats.Schedules++

		occurrences, err := dueOccurrences(&schedule, now)
		if err != nil {
			stats.Failed++
			common.LogError(err, "Failed to advance recurring transaction", common.Fields{
				"recurring_id": schedule.ID,
				"description":  schedule.Description,
			})
			continue
		}

		if !dryRun {
			err := common.WithRetry(ctx, func() error {
				return p.persistSchedule(ctx, &schedule, occurrences)
			}, p.retryOpts)
			if err != nil {
				stats.Failed++
				common.LogError(err, "Failed to process recurring transaction", common.Fields{
					"recurring_id": schedule.ID,
					"description":  schedule.Description,
				})
				continue
			}
		}

		stats.Occurrences = append(stats.Occurrences, occurrences...)
		common.LogInfo("Processed recurring transaction", common.Fields{
			"recurring_id": schedule.ID,
			"description":  schedule.Description,
			"occurrences":  len(occurrences),
			"next_date":    schedule.NextDate.Format("2006-01-02"),
			"dry_run":      dryRun,
		})
	}

	return stats, nil
}

// Skip advances a schedule past its next occurrence without materializing a
// transaction.
func (p *Processor) Skip(ctx context.Context, id int64, now time.Time) (*model.RecurringTransaction, error) {
	schedule, err := p.storage.GetRecurringTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := schedule.SkipOnce(now); err != nil {
		return nil, err
	}
	if err := p.storage.UpdateRecurringTransaction(ctx, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

// SetActive pauses or resumes a schedule.
func (p *Processor) SetActive(ctx context.Context, id int64, active bool) (*model.RecurringTransaction, error) {
	schedule, err := p.storage.GetRecurringTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if active {
		schedule.Resume()
	} else {
		schedule.Pause()
	}
	if err := p.storage.UpdateRecurringTransaction(ctx, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

// dueOccurrences mutates the schedule in memory, advancing it past now and
// collecting one transaction per due occurrence. The caller decides whether
// the mutation is persisted.
func dueOccurrences(schedule *model.RecurringTransaction, now time.Time) ([]Occurrence, error) {
	var occurrences []Occurrence
	for schedule.IsDue(now) {
		occurrences = append(occurrences, Occurrence{
			Date:        schedule.NextDate,
			Transaction: materialize(schedule, schedule.NextDate),
			RecurringID: schedule.ID,
		})
		if err := schedule.Advance(now); err != nil {
			return nil, err
		}
	}
	return occurrences, nil
}

// materialize builds the concrete transaction for one occurrence of a
// schedule. The back-reference to the schedule keeps the rule engine away
// from it.
func materialize(schedule *model.RecurringTransaction, date time.Time) model.Transaction {
	recurringID := schedule.ID
	txn := model.Transaction{
		ID:                     uuid.NewString(),
		Date:                   recurrence.StartOfDay(date),
		Type:                   schedule.Type,
		Amount:                 schedule.Amount,
		Description:            schedule.Description,
		AccountID:              schedule.AccountID,
		Tags:                   []string{},
		RecurringTransactionID: &recurringID,
	}
	if schedule.CategoryID != nil {
		categoryID := *schedule.CategoryID
		txn.CategoryID = &categoryID
	}
	return txn
}

func (p *Processor) persistSchedule(ctx context.Context, schedule *model.RecurringTransaction, occurrences []Occurrence) error {
	tx, err := p.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range occurrences {
		txn := occurrences[i].Transaction
		if err := tx.SaveTransaction(ctx, &txn); err != nil {
			return err
		}
	}
	if err := tx.UpdateRecurringTransaction(ctx, schedule); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit recurring run: %w", err)
	}
	return nil
}
