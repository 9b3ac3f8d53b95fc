package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pfennig-app/pfennig/internal/common"
	"github.com/pfennig-app/pfennig/internal/model"
	"github.com/pfennig-app/pfennig/internal/service"
)

// SaveTransaction persists a new transaction.
func (s *SQLiteStorage) SaveTransaction(ctx context.Context, txn *model.Transaction) error {
	return saveTransaction(ctx, s.db, txn)
}

// GetTransactionByID retrieves a transaction by its id.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	return getTransactionByID(ctx, s.db, id)
}

// GetTransactions retrieves transactions matching the filter, newest first.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	return getTransactions(ctx, s.db, filter)
}

// GetUnclassifiedTransactions retrieves ad-hoc transactions no rule has been
// applied to yet. Scheduler-materialized transactions are excluded: the rule
// engine never touches them.
func (s *SQLiteStorage) GetUnclassifiedTransactions(ctx context.Context) ([]model.Transaction, error) {
	return getUnclassifiedTransactions(ctx, s.db)
}

// UpdateTransaction persists the mutable fields of an existing transaction.
func (s *SQLiteStorage) UpdateTransaction(ctx context.Context, txn *model.Transaction) error {
	return updateTransaction(ctx, s.db, txn)
}

const transactionColumns = `id, date, type, amount, description, account_id,
	category_id, tags, notes, applied_rule_id, recurring_transaction_id, created_at`

func saveTransaction(ctx context.Context, exec executor, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	tags, err := json.Marshal(txn.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
		INSERT INTO transactions (
			id, date, type, amount, description, account_id,
			category_id, tags, notes, applied_rule_id, recurring_transaction_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = exec.ExecContext(ctx, query,
		txn.ID, txn.Date, txn.Type, txn.Amount.String(), txn.Description, txn.AccountID,
		nullInt64(txn.CategoryID), string(tags), txn.Notes,
		nullInt64(txn.AppliedRuleID), nullInt64(txn.RecurringTransactionID),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: transaction %s", common.ErrDuplicateEntry, txn.ID)
		}
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	txn.CreatedAt = time.Now()
	return nil
}

func getTransactionByID(ctx context.Context, exec executor, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := exec.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)

	txn, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
		}
		return nil, err
	}
	return txn, nil
}

func getTransactions(ctx context.Context, exec executor, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	var conditions []string
	var args []any

	if filter.StartDate != nil {
		conditions = append(conditions, "date >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "date <= ?")
		args = append(args, *filter.EndDate)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY date DESC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTransactions(rows)
}

func getUnclassifiedTransactions(ctx context.Context, exec executor) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE applied_rule_id IS NULL AND recurring_transaction_id IS NULL
		ORDER BY date ASC, id ASC
	`

	rows, err := exec.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get unclassified transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTransactions(rows)
}

func updateTransaction(ctx context.Context, exec executor, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	tags, err := json.Marshal(txn.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
		UPDATE transactions SET
			date = ?, type = ?, amount = ?, description = ?, account_id = ?,
			category_id = ?, tags = ?, notes = ?, applied_rule_id = ?
		WHERE id = ?
	`

	result, err := exec.ExecContext(ctx, query,
		txn.Date, txn.Type, txn.Amount.String(), txn.Description, txn.AccountID,
		nullInt64(txn.CategoryID), string(tags), txn.Notes, nullInt64(txn.AppliedRuleID),
		txn.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: transaction %s", common.ErrNotFound, txn.ID)
	}

	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*model.Transaction, error) {
	var txn model.Transaction
	var amount, tags string
	var accountID sql.NullString
	var categoryID, appliedRuleID, recurringID sql.NullInt64

	err := row.Scan(
		&txn.ID, &txn.Date, &txn.Type, &amount, &txn.Description, &accountID,
		&categoryID, &tags, &txn.Notes, &appliedRuleID, &recurringID, &txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	if err := json.Unmarshal([]byte(tags), &txn.Tags); err != nil {
		return nil, fmt.Errorf("failed to parse tags: %w", err)
	}

	txn.AccountID = accountID.String
	txn.CategoryID = int64Ptr(categoryID)
	txn.AppliedRuleID = int64Ptr(appliedRuleID)
	txn.RecurringTransactionID = int64Ptr(recurringID)

	return &txn, nil
}

func collectTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

// nullInt64 converts an *int64 to its sql form.
func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// int64Ptr converts a sql.NullInt64 back to a pointer.
func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	value := v.Int64
	return &value
}

// nullTime converts a *time.Time to its sql form.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// timePtr converts a sql.NullTime back to a pointer.
func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	value := t.Time
	return &value
}
