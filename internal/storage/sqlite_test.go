package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfennig-app/pfennig/internal/common"
	"github.com/pfennig-app/pfennig/internal/model"
	"github.com/pfennig-app/pfennig/internal/recurrence"
	"github.com/pfennig-app/pfennig/internal/service"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func testTransaction(id, description string) *model.Transaction {
	return &model.Transaction{
		ID:          id,
		Date:        time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC),
		Type:        model.TypeExpense,
		Amount:      decimal.RequireFromString("42.17"),
		Description: description,
		AccountID:   "checking",
		Tags:        []string{},
	}
}

func testRule(name string, priority int) *model.TransactionRule {
	return &model.TransactionRule{
		Name:     name,
		ApplyTo:  model.ApplyToAll,
		Priority: priority,
		IsActive: true,
		Conditions: model.Conditions{
			&model.DescriptionCondition{Operator: model.StringContains, Value: "coffee"},
		},
		Actions: model.Actions{&model.AddTagAction{Tag: "caffeine"}},
	}
}

func testRecurring(description string) *model.RecurringTransaction {
	day := 1
	return &model.RecurringTransaction{
		Description: description,
		AccountID:   "checking",
		Type:        model.TypeExpense,
		Amount:      decimal.RequireFromString("1450.00"),
		Policy: recurrence.Policy{
			Frequency:  recurrence.FrequencyMonthly,
			Interval:   1,
			DayOfMonth: &day,
		},
		StartDate: time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC),
		NextDate:  time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestTransactionRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	txn := testTransaction("txn-1", "Coffee House")
	txn.Notes = "morning espresso"
	txn.AddTag("caffeine")
	txn.AddTag("daily")
	require.NoError(t, store.SaveTransaction(ctx, txn))

	loaded, err := store.GetTransactionByID(ctx, "txn-1")
	require.NoError(t, err)

	assert.Equal(t, txn.ID, loaded.ID)
	assert.Equal(t, txn.Description, loaded.Description)
	assert.Equal(t, txn.Type, loaded.Type)
	assert.True(t, txn.Amount.Equal(loaded.Amount), "amount %s != %s", txn.Amount, loaded.Amount)
	assert.Equal(t, []string{"caffeine", "daily"}, loaded.Tags)
	assert.Equal(t, "morning espresso", loaded.Notes)
	assert.Nil(t, loaded.CategoryID)
	assert.Nil(t, loaded.AppliedRuleID)
	assert.Nil(t, loaded.RecurringTransactionID)
}

func TestSaveTransaction_Duplicate(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTransaction(ctx, testTransaction("txn-1", "first")))
	err := store.SaveTransaction(ctx, testTransaction("txn-1", "second"))
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestGetTransactionByID_NotFound(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.GetTransactionByID(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetTransactions_DateFilterAndLimit(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	dates := []time.Time{
		time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC),
	}
	for i, date := range dates {
		txn := testTransaction("txn-"+string(rune('a'+i)), "filter test")
		txn.Date = date
		require.NoError(t, store.SaveTransaction(ctx, txn))
	}

	from := time.Date(2026, time.August, 5, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC)
	results, err := store.GetTransactions(ctx, service.TransactionFilter{StartDate: &from, EndDate: &to})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "txn-b", results[0].ID)

	limited, err := store.GetTransactions(ctx, service.TransactionFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	// Newest first.
	assert.Equal(t, "txn-c", limited[0].ID)
}

func TestGetUnclassifiedTransactions(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	plain := testTransaction("txn-plain", "unclassified")
	require.NoError(t, store.SaveTransaction(ctx, plain))

	rule := testRule("classifier", 1)
	require.NoError(t, store.CreateRule(ctx, rule))
	classified := testTransaction("txn-classified", "classified")
	classified.AppliedRuleID = &rule.ID
	require.NoError(t, store.SaveTransaction(ctx, classified))

	schedule := testRecurring("Rent")
	require.NoError(t, store.CreateRecurringTransaction(ctx, schedule))
	materialized := testTransaction("txn-recurring", "from schedule")
	materialized.RecurringTransactionID = &schedule.ID
	require.NoError(t, store.SaveTransaction(ctx, materialized))

	unclassified, err := store.GetUnclassifiedTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, unclassified, 1)
	assert.Equal(t, "txn-plain", unclassified[0].ID)
}

func TestRuleRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	rule := testRule("coffee rule", 10)
	rule.Description = "tags coffee purchases"
	rule.StopProcessing = true
	rule.Conditions = append(rule.Conditions,
		&model.AmountCondition{Operator: model.CompareLessThan, Value: "20"})
	rule.Actions = append(rule.Actions,
		&model.SetCategoryAction{CategoryID: 1},
		&model.SetNotesAction{Notes: "auto"})
	require.NoError(t, store.CreateRule(ctx, rule))
	require.NotZero(t, rule.ID)

	loaded, err := store.GetRule(ctx, rule.ID)
	require.NoError(t, err)

	assert.Equal(t, rule.Name, loaded.Name)
	assert.Equal(t, rule.Priority, loaded.Priority)
	assert.True(t, loaded.StopProcessing)
	require.Len(t, loaded.Conditions, 2)
	require.Len(t, loaded.Actions, 3)

	// Restored conditions still evaluate.
	txn := testTransaction("txn-1", "Coffee House")
	txn.Amount = decimal.RequireFromString("9.99")
	assert.True(t, loaded.Matches(txn))
}

func TestCreateRule_Validation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	noConditions := testRule("bad", 0)
	noConditions.Conditions = nil
	assert.ErrorIs(t, store.CreateRule(ctx, noConditions), ErrInvalidRule)

	noActions := testRule("bad", 0)
	noActions.Actions = nil
	assert.ErrorIs(t, store.CreateRule(ctx, noActions), ErrInvalidRule)

	badScope := testRule("bad", 0)
	badScope.ApplyTo = "everything"
	assert.ErrorIs(t, store.CreateRule(ctx, badScope), ErrInvalidRule)
}

func TestGetActiveRules_Ordering(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	low := testRule("low", 1)
	highA := testRule("high a", 10)
	highB := testRule("high b", 10)
	inactive := testRule("inactive", 99)
	inactive.IsActive = false

	for _, rule := range []*model.TransactionRule{low, highA, highB, inactive} {
		require.NoError(t, store.CreateRule(ctx, rule))
	}

	active, err := store.GetActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)

	// Priority descending, ties by id ascending.
	assert.Equal(t, "high a", active[0].Name)
	assert.Equal(t, "high b", active[1].Name)
	assert.Equal(t, "low", active[2].Name)
}

func TestRecordRuleApplication(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	rule := testRule("counted", 1)
	require.NoError(t, store.CreateRule(ctx, rule))

	appliedAt := time.Date(2026, time.August, 30, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordRuleApplication(ctx, rule.ID, appliedAt))
	require.NoError(t, store.RecordRuleApplication(ctx, rule.ID, appliedAt.Add(time.Hour)))

	loaded, err := store.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.TimesApplied)
	require.NotNil(t, loaded.LastAppliedAt)

	assert.ErrorIs(t, store.RecordRuleApplication(ctx, 9999, appliedAt), common.ErrNotFound)
}

func TestRecurringRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	schedule := testRecurring("Rent")
	end := time.Date(2027, time.August, 31, 0, 0, 0, 0, time.UTC)
	schedule.EndDate = &end
	require.NoError(t, store.CreateRecurringTransaction(ctx, schedule))
	require.NotZero(t, schedule.ID)

	loaded, err := store.GetRecurringTransaction(ctx, schedule.ID)
	require.NoError(t, err)

	assert.Equal(t, schedule.Description, loaded.Description)
	assert.True(t, schedule.Amount.Equal(loaded.Amount))
	assert.Equal(t, recurrence.FrequencyMonthly, loaded.Policy.Frequency)
	assert.Equal(t, 1, loaded.Policy.Interval)
	require.NotNil(t, loaded.Policy.DayOfMonth)
	assert.Equal(t, 1, *loaded.Policy.DayOfMonth)
	assert.Nil(t, loaded.Policy.DayOfWeek)
	require.NotNil(t, loaded.EndDate)
	assert.True(t, loaded.IsActive)
	assert.Nil(t, loaded.LastProcessed)
	assert.True(t, loaded.NextDate.Equal(schedule.NextDate))
}

func TestCreateRecurring_RejectsInvalidPolicy(t *testing.T) {
	store := newTestStorage(t)

	schedule := testRecurring("broken")
	schedule.Policy.Interval = 0
	err := store.CreateRecurringTransaction(context.Background(), schedule)
	assert.ErrorIs(t, err, ErrInvalidRecurring)
}

func TestUpdateRecurring_AdvancesNextDate(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	schedule := testRecurring("Rent")
	require.NoError(t, store.CreateRecurringTransaction(ctx, schedule))

	now := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, schedule.Advance(now))
	require.NoError(t, store.UpdateRecurringTransaction(ctx, schedule))

	loaded, err := store.GetRecurringTransaction(ctx, schedule.ID)
	require.NoError(t, err)
	assert.True(t, loaded.NextDate.Equal(time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)),
		"NextDate = %v", loaded.NextDate)
	require.NotNil(t, loaded.LastProcessed)
}

func TestGetActiveRecurringTransactions_ExcludesPaused(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	active := testRecurring("active")
	paused := testRecurring("paused")
	paused.IsActive = false
	require.NoError(t, store.CreateRecurringTransaction(ctx, active))
	require.NoError(t, store.CreateRecurringTransaction(ctx, paused))

	schedules, err := store.GetActiveRecurringTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "active", schedules[0].Description)

	// Paused schedules stay reachable by id.
	loaded, err := store.GetRecurringTransaction(ctx, paused.ID)
	require.NoError(t, err)
	assert.False(t, loaded.IsActive)
}

func TestDeleteRecurringTransaction(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	schedule := testRecurring("doomed")
	require.NoError(t, store.CreateRecurringTransaction(ctx, schedule))
	require.NoError(t, store.DeleteRecurringTransaction(ctx, schedule.ID))

	_, err := store.GetRecurringTransaction(ctx, schedule.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCategories(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	groceries, err := store.CreateCategory(ctx, "Groceries", "food and household", model.TypeExpense)
	require.NoError(t, err)
	_, err = store.CreateCategory(ctx, "Salary", "", model.TypeIncome)
	require.NoError(t, err)

	_, err = store.CreateCategory(ctx, "Groceries", "", model.TypeExpense)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	categories, err := store.GetCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Groceries", categories[0].Name)

	loaded, err := store.GetCategoryByID(ctx, groceries.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TypeExpense, loaded.Type)

	_, err = store.GetCategoryByID(ctx, 9999)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBeginTx_CommitAndRollback(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SaveTransaction(ctx, testTransaction("txn-committed", "kept")))
	require.NoError(t, tx.Commit())

	_, err = store.GetTransactionByID(ctx, "txn-committed")
	require.NoError(t, err)

	tx, err = store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SaveTransaction(ctx, testTransaction("txn-rolled-back", "gone")))
	require.NoError(t, tx.Rollback())

	_, err = store.GetTransactionByID(ctx, "txn-rolled-back")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestTransactionBoundary_AtomicClassification(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	rule := testRule("atomic", 1)
	require.NoError(t, store.CreateRule(ctx, rule))
	txn := testTransaction("txn-1", "Coffee House")
	require.NoError(t, store.SaveTransaction(ctx, txn))

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)

	txn.AppliedRuleID = &rule.ID
	txn.AddTag("caffeine")
	require.NoError(t, tx.UpdateTransaction(ctx, txn))
	require.NoError(t, tx.RecordRuleApplication(ctx, rule.ID, time.Now()))
	require.NoError(t, tx.Commit())

	loadedTxn, err := store.GetTransactionByID(ctx, "txn-1")
	require.NoError(t, err)
	require.NotNil(t, loadedTxn.AppliedRuleID)
	assert.Equal(t, rule.ID, *loadedTxn.AppliedRuleID)

	loadedRule, err := store.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loadedRule.TimesApplied)
}
