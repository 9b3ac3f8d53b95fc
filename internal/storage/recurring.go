package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pfennig-app/pfennig/internal/common"
	"github.com/pfennig-app/pfennig/internal/model"
	"github.com/pfennig-app/pfennig/internal/recurrence"
)

// CreateRecurringTransaction creates a new recurring transaction template.
// The frequency policy is validated here so the advancer can assume a
// well-formed schedule.
func (s *SQLiteStorage) CreateRecurringTransaction(ctx context.Context, recurring *model.RecurringTransaction) error {
	return createRecurringTransaction(ctx, s.db, recurring)
}

// GetRecurringTransaction retrieves a recurring transaction by id.
func (s *SQLiteStorage) GetRecurringTransaction(ctx context.Context, id int64) (*model.RecurringTransaction, error) {
	return getRecurringTransaction(ctx, s.db, id)
}

// GetActiveRecurringTransactions retrieves all active recurring transactions
// ordered by next occurrence.
func (s *SQLiteStorage) GetActiveRecurringTransactions(ctx context.Context) ([]model.RecurringTransaction, error) {
	return getActiveRecurringTransactions(ctx, s.db)
}

// UpdateRecurringTransaction persists the state of a recurring transaction,
// including an advanced next date.
func (s *SQLiteStorage) UpdateRecurringTransaction(ctx context.Context, recurring *model.RecurringTransaction) error {
	return updateRecurringTransaction(ctx, s.db, recurring)
}

// DeleteRecurringTransaction deletes a recurring transaction template.
func (s *SQLiteStorage) DeleteRecurringTransaction(ctx context.Context, id int64) error {
	return deleteRecurringTransaction(ctx, s.db, id)
}

const recurringColumns = `id, description, account_id, type, amount, category_id,
	frequency, interval, day_of_week, day_of_month, month_of_year,
	start_date, next_date, end_date, last_processed, is_active,
	created_at, updated_at`

func createRecurringTransaction(ctx context.Context, exec executor, recurring *model.RecurringTransaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecurring(recurring); err != nil {
		return err
	}

	query := `
		INSERT INTO recurring_transactions (
			description, account_id, type, amount, category_id,
			frequency, interval, day_of_week, day_of_month, month_of_year,
			start_date, next_date, end_date, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := exec.ExecContext(ctx, query,
		recurring.Description, recurring.AccountID, recurring.Type,
		recurring.Amount.String(), nullInt64(recurring.CategoryID),
		recurring.Policy.Frequency, recurring.Policy.Interval,
		nullInt(recurring.Policy.DayOfWeek), nullInt(recurring.Policy.DayOfMonth),
		nullInt(recurring.Policy.MonthOfYear),
		recurring.StartDate, recurring.NextDate, nullTime(recurring.EndDate),
		recurring.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to create recurring transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get recurring transaction ID: %w", err)
	}

	recurring.ID = id
	recurring.CreatedAt = time.Now()
	recurring.UpdatedAt = time.Now()

	return nil
}

func getRecurringTransaction(ctx context.Context, exec executor, id int64) (*model.RecurringTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := exec.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_transactions WHERE id = ?`, id)

	recurring, err := scanRecurring(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: recurring transaction %d", common.ErrNotFound, id)
		}
		return nil, err
	}
	return recurring, nil
}

func getActiveRecurringTransactions(ctx context.Context, exec executor) ([]model.RecurringTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + recurringColumns + `
		FROM recurring_transactions
		WHERE is_active = 1
		ORDER BY next_date ASC, id ASC
	`

	rows, err := exec.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active recurring transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recurrings []model.RecurringTransaction
	for rows.Next() {
		recurring, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurring transaction: %w", err)
		}
		recurrings = append(recurrings, *recurring)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recurring transactions: %w", err)
	}

	return recurrings, nil
}

func updateRecurringTransaction(ctx context.Context, exec executor, recurring *model.RecurringTransaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecurring(recurring); err != nil {
		return err
	}

	query := `
		UPDATE recurring_transactions SET
			description = ?, account_id = ?, type = ?, amount = ?, category_id = ?,
			frequency = ?, interval = ?, day_of_week = ?, day_of_month = ?,
			month_of_year = ?, start_date = ?, next_date = ?, end_date = ?,
			last_processed = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := exec.ExecContext(ctx, query,
		recurring.Description, recurring.AccountID, recurring.Type,
		recurring.Amount.String(), nullInt64(recurring.CategoryID),
		recurring.Policy.Frequency, recurring.Policy.Interval,
		nullInt(recurring.Policy.DayOfWeek), nullInt(recurring.Policy.DayOfMonth),
		nullInt(recurring.Policy.MonthOfYear),
		recurring.StartDate, recurring.NextDate, nullTime(recurring.EndDate),
		nullTime(recurring.LastProcessed), recurring.IsActive,
		recurring.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update recurring transaction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: recurring transaction %d", common.ErrNotFound, recurring.ID)
	}

	return nil
}

func deleteRecurringTransaction(ctx context.Context, exec executor, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := exec.ExecContext(ctx, "DELETE FROM recurring_transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete recurring transaction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: recurring transaction %d", common.ErrNotFound, id)
	}

	return nil
}

func scanRecurring(row scanner) (*model.RecurringTransaction, error) {
	var recurring model.RecurringTransaction
	var amount string
	var accountID sql.NullString
	var categoryID sql.NullInt64
	var dayOfWeek, dayOfMonth, monthOfYear sql.NullInt64
	var endDate, lastProcessed sql.NullTime

	err := row.Scan(
		&recurring.ID, &recurring.Description, &accountID, &recurring.Type,
		&amount, &categoryID,
		&recurring.Policy.Frequency, &recurring.Policy.Interval,
		&dayOfWeek, &dayOfMonth, &monthOfYear,
		&recurring.StartDate, &recurring.NextDate, &endDate, &lastProcessed,
		&recurring.IsActive, &recurring.CreatedAt, &recurring.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	recurring.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}

	recurring.AccountID = accountID.String
	recurring.CategoryID = int64Ptr(categoryID)
	recurring.Policy.DayOfWeek = intPtr(dayOfWeek)
	recurring.Policy.DayOfMonth = intPtr(dayOfMonth)
	recurring.Policy.MonthOfYear = intPtr(monthOfYear)
	recurring.EndDate = timePtr(endDate)
	recurring.LastProcessed = timePtr(lastProcessed)

	// NextDate is always start-of-day.
	recurring.NextDate = recurrence.StartOfDay(recurring.NextDate)

	return &recurring, nil
}

// nullInt converts an *int to its sql form.
func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// intPtr converts a sql.NullInt64 back to an *int.
func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	value := int(v.Int64)
	return &value
}
