package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"finanzas/internal/core"
)

// BudgetRecord is a budget joined with its category name.
type BudgetRecord struct {
	core.Budget
	CategoryName string
}

func (r *Repository) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, user_id, category_id, month, amount, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.CategoryID, b.Month, b.Amount.String(), b.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

func (r *Repository) GetBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	var b core.Budget
	var amount string
	var createdAt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, category_id, month, amount, created_at FROM budgets WHERE id = ? AND user_id = ?`,
		id, userID).
		Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Month, &amount, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("scan budget: %w", err)
	}
	b.CreatedAt = time.Unix(createdAt, 0)
	if b.Amount, err = parseAmount(amount); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

// ListBudgets returns the user's budgets for a month, joined with category
// names, ordered by category name.
func (r *Repository) ListBudgets(ctx context.Context, userID, month string) ([]BudgetRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT b.id, b.user_id, b.category_id, b.month, b.amount, b.created_at, c.name
		 FROM budgets b
		 JOIN categories c ON c.id = b.category_id
		 WHERE b.user_id = ? AND b.month = ?
		 ORDER BY c.name ASC`, userID, month)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	records := []BudgetRecord{}
	for rows.Next() {
		var rec BudgetRecord
		var amount string
		var createdAt int64
		err := rows.Scan(&rec.ID, &rec.UserID, &rec.CategoryID, &rec.Month, &amount, &createdAt, &rec.CategoryName)
		if err != nil {
			return nil, fmt.Errorf("scan budget record: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		if rec.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *Repository) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET amount = ? WHERE id = ? AND user_id = ?`,
		b.Amount.String(), b.ID, b.UserID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return requireAffected(res)
}

func (r *Repository) DeleteBudget(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return requireAffected(res)
}
