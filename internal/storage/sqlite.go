package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pfennig-app/pfennig/internal/model"
	"github.com/pfennig-app/pfennig/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// executor abstracts *sql.DB and *sql.Tx so each query helper can serve both
// the storage instance and an open transaction.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to shared helpers bound to the open sql.Tx.

func (t *sqliteTransaction) SaveTransaction(ctx context.Context, txn *model.Transaction) error {
	return saveTransaction(ctx, t.tx, txn)
}

func (t *sqliteTransaction) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	return getTransactionByID(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	return getTransactions(ctx, t.tx, filter)
}

func (t *sqliteTransaction) GetUnclassifiedTransactions(ctx context.Context) ([]model.Transaction, error) {
	return getUnclassifiedTransactions(ctx, t.tx)
}

func (t *sqliteTransaction) UpdateTransaction(ctx context.Context, txn *model.Transaction) error {
	return updateTransaction(ctx, t.tx, txn)
}

func (t *sqliteTransaction) CreateRule(ctx context.Context, rule *model.TransactionRule) error {
	return createRule(ctx, t.tx, rule)
}

func (t *sqliteTransaction) GetRule(ctx context.Context, id int64) (*model.TransactionRule, error) {
	return getRule(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetActiveRules(ctx context.Context) ([]model.TransactionRule, error) {
	return getActiveRules(ctx, t.tx)
}

func (t *sqliteTransaction) UpdateRule(ctx context.Context, rule *model.TransactionRule) error {
	return updateRule(ctx, t.tx, rule)
}

func (t *sqliteTransaction) DeleteRule(ctx context.Context, id int64) error {
	return deleteRule(ctx, t.tx, id)
}

func (t *sqliteTransaction) RecordRuleApplication(ctx context.Context, id int64, appliedAt time.Time) error {
	return recordRuleApplication(ctx, t.tx, id, appliedAt)
}

func (t *sqliteTransaction) CreateRecurringTransaction(ctx context.Context, recurring *model.RecurringTransaction) error {
	return createRecurringTransaction(ctx, t.tx, recurring)
}

func (t *sqliteTransaction) GetRecurringTransaction(ctx context.Context, id int64) (*model.RecurringTransaction, error) {
	return getRecurringTransaction(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetActiveRecurringTransactions(ctx context.Context) ([]model.RecurringTransaction, error) {
	return getActiveRecurringTransactions(ctx, t.tx)
}

func (t *sqliteTransaction) UpdateRecurringTransaction(ctx context.Context, recurring *model.RecurringTransaction) error {
	return updateRecurringTransaction(ctx, t.tx, recurring)
}

func (t *sqliteTransaction) DeleteRecurringTransaction(ctx context.Context, id int64) error {
	return deleteRecurringTransaction(ctx, t.tx, id)
}

func (t *sqliteTransaction) CreateCategory(ctx context.Context, name, description string, categoryType model.TransactionType) (*model.Category, error) {
	return createCategory(ctx, t.tx, name, description, categoryType)
}

func (t *sqliteTransaction) GetCategories(ctx context.Context) ([]model.Category, error) {
	return getCategories(ctx, t.tx)
}

func (t *sqliteTransaction) GetCategoryByID(ctx context.Context, id int64) (*model.Category, error) {
	return getCategoryByID(ctx, t.tx, id)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
