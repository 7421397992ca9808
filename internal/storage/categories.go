package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"finanzas/internal/core"
)

// ErrCategoryInUse is returned when deleting a category that is referenced by
// transactions or budgets.
var ErrCategoryInUse = errors.New("category in use")

// ListCategories returns the predefined categories plus the user's own,
// predefined first.
func (r *Repository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, COALESCE(user_id, ''), name, is_predefined, created_at
		 FROM categories
		 WHERE user_id IS NULL OR user_id = ?
		 ORDER BY is_predefined DESC, name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetCategoryForUser resolves a category the user may reference: either a
// predefined one or one they own.
func (r *Repository) GetCategoryForUser(ctx context.Context, userID, id string) (core.Category, error) {
	return scanCategory(r.db.QueryRowContext(ctx,
		`SELECT id, COALESCE(user_id, ''), name, is_predefined, created_at
		 FROM categories WHERE id = ? AND (user_id IS NULL OR user_id = ?)`, id, userID))
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, user_id, name, is_predefined, created_at) VALUES (?, ?, ?, 0, ?)`,
		c.ID, c.UserID, c.Name, c.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// UpdateCategory renames a user-owned category. Predefined categories are
// immutable and report ErrNotFound, same as rows the user does not own.
func (r *Repository) UpdateCategory(ctx context.Context, userID, id, name string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ? WHERE id = ? AND user_id = ? AND is_predefined = 0`,
		name, id, userID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return requireAffected(res)
}

// DeleteCategory removes a user-owned category. Predefined categories cannot
// be deleted, and categories referenced by transactions or budgets are
// protected.
func (r *Repository) DeleteCategory(ctx context.Context, userID, id string) error {
	var txCount, budgetCount int
	err := r.db.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM transactions WHERE category_id = ?),
		   (SELECT COUNT(*) FROM budgets WHERE category_id = ?)`, id, id).
		Scan(&txCount, &budgetCount)
	if err != nil {
		return fmt.Errorf("count category references: %w", err)
	}
	if txCount > 0 || budgetCount > 0 {
		return ErrCategoryInUse
	}

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ? AND user_id = ? AND is_predefined = 0`, id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return requireAffected(res)
}

func scanCategory(row rowScanner) (core.Category, error) {
	var c core.Category
	var predefined int
	var createdAt int64
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &predefined, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("scan category: %w", err)
	}
	c.IsPredefined = predefined != 0
	c.CreatedAt = time.Unix(createdAt, 0)
	return c, nil
}
