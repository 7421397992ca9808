package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"finanzas/internal/analysis"
	"finanzas/internal/core"
)

// TransactionRecord is a transaction joined with the names the list and
// export views need.
type TransactionRecord struct {
	core.Transaction
	CategoryName string
	AccountName  string
}

func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, account_id, category_id, date, amount, type, description, payment_method, merchant, tags, currency, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.AccountID, t.CategoryID, t.Date.Unix(), t.Amount.String(), string(t.Type),
		t.Description, string(t.PaymentMethod), t.Merchant, tags, t.Currency, t.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetTransactionRecord returns one transaction joined with its category and
// account names.
func (r *Repository) GetTransactionRecord(ctx context.Context, userID, id string) (TransactionRecord, error) {
	var rec TransactionRecord
	var amount, txType, paymentMethod, tags string
	var date, createdAt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT t.id, t.user_id, t.account_id, t.category_id, t.date, t.amount, t.type, t.description,
		        t.payment_method, t.merchant, t.tags, t.currency, t.created_at, c.name, a.name
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id
		 JOIN accounts a ON a.id = t.account_id
		 WHERE t.id = ? AND t.user_id = ?`, id, userID).
		Scan(&rec.ID, &rec.UserID, &rec.AccountID, &rec.CategoryID, &date, &amount, &txType,
			&rec.Description, &paymentMethod, &rec.Merchant, &tags, &rec.Currency, &createdAt,
			&rec.CategoryName, &rec.AccountName)
	if errors.Is(err, sql.ErrNoRows) {
		return TransactionRecord{}, ErrNotFound
	}
	if err != nil {
		return TransactionRecord{}, fmt.Errorf("scan transaction record: %w", err)
	}
	rec.Date = time.Unix(date, 0)
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.Type = core.TransactionType(txType)
	rec.PaymentMethod = core.PaymentMethod(paymentMethod)
	if rec.Amount, err = parseAmount(amount); err != nil {
		return TransactionRecord{}, err
	}
	if rec.Tags, err = decodeTags(tags); err != nil {
		return TransactionRecord{}, err
	}
	return rec, nil
}

func (r *Repository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	return scanTransaction(r.db.QueryRowContext(ctx,
		`SELECT id, user_id, account_id, category_id, date, amount, type, description, payment_method, merchant, tags, currency, created_at
		 FROM transactions WHERE id = ? AND user_id = ?`, id, userID))
}

// TransactionFilter narrows ListTransactions. Zero values mean no filter.
type TransactionFilter struct {
	AccountID  string
	CategoryID string
	Type       core.TransactionType
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

func (r *Repository) ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]TransactionRecord, error) {
	query := `SELECT t.id, t.user_id, t.account_id, t.category_id, t.date, t.amount, t.type, t.description,
	                 t.payment_method, t.merchant, t.tags, t.currency, t.created_at, c.name, a.name
	          FROM transactions t
	          JOIN categories c ON c.id = t.category_id
	          JOIN accounts a ON a.id = t.account_id
	          WHERE t.user_id = ?`
	args := []any{userID}

	if f.AccountID != "" {
		query += " AND t.account_id = ?"
		args = append(args, f.AccountID)
	}
	if f.CategoryID != "" {
		query += " AND t.category_id = ?"
		args = append(args, f.CategoryID)
	}
	if f.Type != "" {
		query += " AND t.type = ?"
		args = append(args, string(f.Type))
	}
	if !f.From.IsZero() {
		query += " AND t.date >= ?"
		args = append(args, f.From.Unix())
	}
	if !f.To.IsZero() {
		query += " AND t.date < ?"
		args = append(args, f.To.Unix())
	}

	query += " ORDER BY t.date DESC, t.created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	records := []TransactionRecord{}
	for rows.Next() {
		var rec TransactionRecord
		var amount, txType, paymentMethod, tags string
		var date, createdAt int64
		err := rows.Scan(&rec.ID, &rec.UserID, &rec.AccountID, &rec.CategoryID, &date, &amount, &txType,
			&rec.Description, &paymentMethod, &rec.Merchant, &tags, &rec.Currency, &createdAt,
			&rec.CategoryName, &rec.AccountName)
		if err != nil {
			return nil, fmt.Errorf("scan transaction record: %w", err)
		}
		rec.Date = time.Unix(date, 0)
		rec.CreatedAt = time.Unix(createdAt, 0)
		rec.Type = core.TransactionType(txType)
		rec.PaymentMethod = core.PaymentMethod(paymentMethod)
		if rec.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if rec.Tags, err = decodeTags(tags); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET account_id = ?, category_id = ?, date = ?, amount = ?, type = ?,
		        description = ?, payment_method = ?, merchant = ?, tags = ?
		 WHERE id = ? AND user_id = ?`,
		t.AccountID, t.CategoryID, t.Date.Unix(), t.Amount.String(), string(t.Type),
		t.Description, string(t.PaymentMethod), t.Merchant, tags, t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireAffected(res)
}

func (r *Repository) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireAffected(res)
}

// TransactionsSince implements the aggregator's read interface: transactions
// dated on or after since, joined with their category names.
func (r *Repository) TransactionsSince(ctx context.Context, userID string, since time.Time) ([]analysis.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.date, t.amount, t.type, c.name, t.merchant
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id
		 WHERE t.user_id = ? AND t.date >= ?
		 ORDER BY t.date ASC`, userID, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("list transactions since: %w", err)
	}
	defer rows.Close()

	transactions := []analysis.Transaction{}
	for rows.Next() {
		var t analysis.Transaction
		var date int64
		var amount, txType string
		if err := rows.Scan(&date, &amount, &txType, &t.Category, &t.Merchant); err != nil {
			return nil, fmt.Errorf("scan analysis transaction: %w", err)
		}
		t.Date = time.Unix(date, 0)
		t.Type = core.TransactionType(txType)
		if t.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// BudgetsForMonth implements the aggregator's read interface.
func (r *Repository) BudgetsForMonth(ctx context.Context, userID, month string) ([]analysis.BudgetEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.name, b.amount
		 FROM budgets b
		 JOIN categories c ON c.id = b.category_id
		 WHERE b.user_id = ? AND b.month = ?
		 ORDER BY c.name ASC`, userID, month)
	if err != nil {
		return nil, fmt.Errorf("list budgets for month: %w", err)
	}
	defer rows.Close()

	entries := []analysis.BudgetEntry{}
	for rows.Next() {
		var e analysis.BudgetEntry
		var amount string
		if err := rows.Scan(&e.Category, &amount); err != nil {
			return nil, fmt.Errorf("scan budget entry: %w", err)
		}
		if e.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SpentByCategory sums expense amounts (absolute value) per category for the
// given month. The budget views use it to compute progress.
func (r *Repository) SpentByCategory(ctx context.Context, userID, month string) (map[string]decimal.Decimal, error) {
	start, err := time.ParseInLocation("2006-01", month, time.Local)
	if err != nil {
		return nil, fmt.Errorf("parse month: %w", err)
	}
	end := start.AddDate(0, 1, 0)

	rows, err := r.db.QueryContext(ctx,
		`SELECT category_id, amount FROM transactions
		 WHERE user_id = ? AND type = ? AND date >= ? AND date < ?`,
		userID, string(core.Expense), start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("list spent by category: %w", err)
	}
	defer rows.Close()

	sums := map[string]decimal.Decimal{}
	for rows.Next() {
		var categoryID, amount string
		if err := rows.Scan(&categoryID, &amount); err != nil {
			return nil, fmt.Errorf("scan spent row: %w", err)
		}
		d, err := parseAmount(amount)
		if err != nil {
			return nil, err
		}
		sums[categoryID] = sums[categoryID].Add(d.Abs())
	}
	return sums, rows.Err()
}

func scanTransaction(row *sql.Row) (core.Transaction, error) {
	var t core.Transaction
	var amount, txType, paymentMethod, tags string
	var date, createdAt int64
	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.CategoryID, &date, &amount, &txType,
		&t.Description, &paymentMethod, &t.Merchant, &tags, &t.Currency, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	t.Date = time.Unix(date, 0)
	t.CreatedAt = time.Unix(createdAt, 0)
	t.Type = core.TransactionType(txType)
	t.PaymentMethod = core.PaymentMethod(paymentMethod)
	if t.Amount, err = parseAmount(amount); err != nil {
		return core.Transaction{}, err
	}
	if t.Tags, err = decodeTags(tags); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}
