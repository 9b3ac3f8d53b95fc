package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pfennig-app/pfennig/internal/common"
	"github.com/pfennig-app/pfennig/internal/model"
)

// CreateRule creates a new transaction rule. Rules are validated here, at
// save time: the engine assumes well-formed rules and never re-validates.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.TransactionRule) error {
	return createRule(ctx, s.db, rule)
}

// GetRule retrieves a rule by id.
func (s *SQLiteStorage) GetRule(ctx context.Context, id int64) (*model.TransactionRule, error) {
	return getRule(ctx, s.db, id)
}

// GetActiveRules retrieves all active rules ordered by priority descending,
// ties by id ascending. This is the order the rule engine expects.
func (s *SQLiteStorage) GetActiveRules(ctx context.Context) ([]model.TransactionRule, error) {
	return getActiveRules(ctx, s.db)
}

// UpdateRule updates an existing rule.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.TransactionRule) error {
	return updateRule(ctx, s.db, rule)
}

// DeleteRule deletes a rule.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, id int64) error {
	return deleteRule(ctx, s.db, id)
}

// RecordRuleApplication increments a rule's application counter and stamps
// the application time.
func (s *SQLiteStorage) RecordRuleApplication(ctx context.Context, id int64, appliedAt time.Time) error {
	return recordRuleApplication(ctx, s.db, id, appliedAt)
}

const ruleColumns = `id, name, description, apply_to, priority, is_active,
	stop_processing, conditions, actions, times_applied, last_applied_at,
	created_at, updated_at`

func createRule(ctx context.Context, exec executor, rule *model.TransactionRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	conditions, actions, err := marshalRuleParts(rule)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO transaction_rules (
			name, description, apply_to, priority, is_active,
			stop_processing, conditions, actions
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := exec.ExecContext(ctx, query,
		rule.Name, rule.Description, rule.ApplyTo, rule.Priority, rule.IsActive,
		rule.StopProcessing, conditions, actions,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}

	rule.ID = id
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()

	return nil
}

func getRule(ctx context.Context, exec executor, id int64) (*model.TransactionRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := exec.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM transaction_rules WHERE id = ?`, id)

	rule, err := scanRule(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: rule %d", common.ErrNotFound, id)
		}
		return nil, err
	}
	return rule, nil
}

func getActiveRules(ctx context.Context, exec executor) ([]model.TransactionRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + ruleColumns + `
		FROM transaction_rules
		WHERE is_active = 1
		ORDER BY priority DESC, id ASC
	`

	rows, err := exec.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.TransactionRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

func updateRule(ctx context.Context, exec executor, rule *model.TransactionRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	conditions, actions, err := marshalRuleParts(rule)
	if err != nil {
		return err
	}

	query := `
		UPDATE transaction_rules SET
			name = ?, description = ?, apply_to = ?, priority = ?, is_active = ?,
			stop_processing = ?, conditions = ?, actions = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := exec.ExecContext(ctx, query,
		rule.Name, rule.Description, rule.ApplyTo, rule.Priority, rule.IsActive,
		rule.StopProcessing, conditions, actions,
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: rule %d", common.ErrNotFound, rule.ID)
	}

	return nil
}

func deleteRule(ctx context.Context, exec executor, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := exec.ExecContext(ctx, "DELETE FROM transaction_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: rule %d", common.ErrNotFound, id)
	}

	return nil
}

func recordRuleApplication(ctx context.Context, exec executor, id int64, appliedAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	query := `
		UPDATE transaction_rules
		SET times_applied = times_applied + 1, last_applied_at = ?
		WHERE id = ?
	`
	result, err := exec.ExecContext(ctx, query, appliedAt, id)
	if err != nil {
		return fmt.Errorf("failed to record rule application: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: rule %d", common.ErrNotFound, id)
	}

	return nil
}

func marshalRuleParts(rule *model.TransactionRule) (conditions, actions string, err error) {
	conditionJSON, err := json.Marshal(rule.Conditions)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal conditions: %w", err)
	}
	actionJSON, err := json.Marshal(rule.Actions)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal actions: %w", err)
	}
	return string(conditionJSON), string(actionJSON), nil
}

func scanRule(row scanner) (*model.TransactionRule, error) {
	var rule model.TransactionRule
	var conditions, actions string
	var lastAppliedAt sql.NullTime

	err := row.Scan(
		&rule.ID, &rule.Name, &rule.Description, &rule.ApplyTo, &rule.Priority,
		&rule.IsActive, &rule.StopProcessing, &conditions, &actions,
		&rule.TimesApplied, &lastAppliedAt, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to parse conditions for rule %d: %w", rule.ID, err)
	}
	if err := json.Unmarshal([]byte(actions), &rule.Actions); err != nil {
		return nil, fmt.Errorf("failed to parse actions for rule %d: %w", rule.ID, err)
	}

	rule.LastAppliedAt = timePtr(lastAppliedAt)

	return &rule, nil
}
