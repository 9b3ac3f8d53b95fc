package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pfennig-app/pfennig/internal/common"
	"github.com/pfennig-app/pfennig/internal/model"
)

// CreateCategory creates a new category.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, name, description string, categoryType model.TransactionType) (*model.Category, error) {
	return createCategory(ctx, s.db, name, description, categoryType)
}

// GetCategories retrieves all active categories ordered by name.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	return getCategories(ctx, s.db)
}

// GetCategoryByID retrieves a category by id.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, id int64) (*model.Category, error) {
	return getCategoryByID(ctx, s.db, id)
}

func createCategory(ctx context.Context, exec executor, name, description string, categoryType model.TransactionType) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	switch categoryType {
	case model.TypeIncome, model.TypeExpense, model.TypeTransfer:
	default:
		return nil, fmt.Errorf("invalid category type: %s", categoryType)
	}

	result, err := exec.ExecContext(ctx,
		"INSERT INTO categories (name, description, type) VALUES (?, ?, ?)",
		name, description, categoryType,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: category %q", common.ErrDuplicateEntry, name)
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get category ID: %w", err)
	}

	return &model.Category{
		ID:          id,
		Name:        name,
		Description: description,
		Type:        categoryType,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}, nil
}

func getCategories(ctx context.Context, exec executor) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT id, name, description, type, is_active, created_at
		FROM categories
		WHERE is_active = 1
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var category model.Category
		var description sql.NullString
		if err := rows.Scan(&category.ID, &category.Name, &description,
			&category.Type, &category.IsActive, &category.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		category.Description = description.String
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

func getCategoryByID(ctx context.Context, exec executor, id int64) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var category model.Category
	var description sql.NullString
	err := exec.QueryRowContext(ctx, `
		SELECT id, name, description, type, is_active, created_at
		FROM categories
		WHERE id = ?
	`, id).Scan(&category.ID, &category.Name, &description,
		&category.Type, &category.IsActive, &category.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: category %d", common.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	category.Description = description.String

	return &category, nil
}
