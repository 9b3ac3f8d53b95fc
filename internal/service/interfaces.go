// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/pfennig-app/pfennig/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, txn *model.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	GetUnclassifiedTransactions(ctx context.Context) ([]model.Transaction, error)
	UpdateTransaction(ctx context.Context, txn *model.Transaction) error

	// Rule operations
	CreateRule(ctx context.Context, rule *model.TransactionRule) error
	GetRule(ctx context.Context, id int64) (*model.TransactionRule, error)
	GetActiveRules(ctx context.Context) ([]model.TransactionRule, error)
	UpdateRule(ctx context.Context, rule *model.TransactionRule) error
	DeleteRule(ctx context.Context, id int64) error
	RecordRuleApplication(ctx context.Context, id int64, appliedAt time.Time) error

	// Recurring transaction operations
	CreateRecurringTransaction(ctx context.Context, recurring *model.RecurringTransaction) error
	GetRecurringTransaction(ctx context.Context, id int64) (*model.RecurringTransaction, error)
	GetActiveRecurringTransactions(ctx context.Context) ([]model.RecurringTransaction, error)
	UpdateRecurringTransaction(ctx context.Context, recurring *model.RecurringTransaction) error
	DeleteRecurringTransaction(ctx context.Context, id int64) error

	// Category operations
	CreateCategory(ctx context.Context, name, description string, categoryType model.TransactionType) (*model.Category, error)
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*model.Category, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
