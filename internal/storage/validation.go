// Package storage provides the data persistence layer for the pfennig application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pfennig-app/pfennig/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidRule        = errors.New("invalid rule")
	ErrInvalidRecurring   = errors.New("invalid recurring transaction")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if txn.Description == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidTransaction)
	}
	switch txn.Type {
	case model.TypeIncome, model.TypeExpense, model.TypeTransfer:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, txn.Type)
	}
	return nil
}

// validateRule enforces the save-time invariants the engine assumes at
// evaluation time: non-empty condition and action lists and a known apply-to
// scope. Operator-field compatibility is unrepresentable in the typed
// condition variants, so it needs no check here.
func validateRule(rule *model.TransactionRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := validateString(rule.Name, "name"); err != nil {
		return err
	}
	if len(rule.Conditions) == 0 {
		return fmt.Errorf("%w: at least one condition is required", ErrInvalidRule)
	}
	if len(rule.Actions) == 0 {
		return fmt.Errorf("%w: at least one action is required", ErrInvalidRule)
	}

	switch rule.ApplyTo {
	case model.ApplyToAll, model.ApplyToIncome, model.ApplyToExpense, model.ApplyToTransfer:
	default:
		return fmt.Errorf("%w: unknown apply-to scope %q", ErrInvalidRule, rule.ApplyTo)
	}

	return nil
}

// validateRecurring validates a recurring transaction template, including its
// frequency policy, so a schedule the advancer would reject never reaches the
// database.
func validateRecurring(recurring *model.RecurringTransaction) error {
	if recurring == nil {
		return fmt.Errorf("%w: recurring transaction", ErrNilParameter)
	}
	if err := validateString(recurring.Description, "description"); err != nil {
		return err
	}
	if recurring.StartDate.IsZero() {
		return fmt.Errorf("%w: missing start date", ErrInvalidRecurring)
	}
	if recurring.NextDate.IsZero() {
		return fmt.Errorf("%w: missing next date", ErrInvalidRecurring)
	}
	switch recurring.Type {
	case model.TypeIncome, model.TypeExpense, model.TypeTransfer:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRecurring, recurring.Type)
	}
	if err := recurring.Policy.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecurring, err)
	}
	return nil
}
