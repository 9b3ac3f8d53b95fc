package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/pfennig-app/pfennig/internal/common"
	"github.com/pfennig-app/pfennig/internal/config"
	"github.com/pfennig-app/pfennig/internal/model"
	"github.com/pfennig-app/pfennig/internal/service"
	"github.com/pfennig-app/pfennig/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/pfennig/pfennig.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("could not open database at %s", dbPath), err)
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// parseDate parses a YYYY-MM-DD date in local time.
func parseDate(value string) (time.Time, error) {
	date, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", value)
	}
	return date, nil
}

// parseAmount parses a decimal amount string.
func parseAmount(value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return amount, nil
}

// parseTransactionType validates a transaction type argument.
func parseTransactionType(value string) (model.TransactionType, error) {
	switch t := model.TransactionType(value); t {
	case model.TypeIncome, model.TypeExpense, model.TypeTransfer:
		return t, nil
	default:
		return "", fmt.Errorf("invalid transaction type %q (expected income, expense, or transfer)", value)
	}
}

func boolLabel(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}
