package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"finanzas/internal/core"
)

// ErrAccountInUse is returned when deleting an account that still has
// transactions attached.
var ErrAccountInUse = errors.New("account has transactions")

func (r *Repository) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, user_id, name, type, balance, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, string(a.Type), a.Balance.String(), a.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *Repository) GetAccount(ctx context.Context, userID, id string) (core.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, type, balance, created_at FROM accounts WHERE id = ? AND user_id = ?`,
		id, userID))
}

func (r *Repository) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, type, balance, created_at FROM accounts WHERE user_id = ? ORDER BY created_at ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []core.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *Repository) UpdateAccount(ctx context.Context, a core.Account) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, type = ?, balance = ? WHERE id = ? AND user_id = ?`,
		a.Name, string(a.Type), a.Balance.String(), a.ID, a.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update account: %w", err)
	}
	return requireAffected(res)
}

func (r *Repository) DeleteAccount(ctx context.Context, userID, id string) error {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE account_id = ? AND user_id = ?`, id, userID).Scan(&count)
	if err != nil {
		return fmt.Errorf("count account transactions: %w", err)
	}
	if count > 0 {
		return ErrAccountInUse
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return requireAffected(res)
}

// AdjustAccountBalance applies a signed delta to the stored balance.
func (r *Repository) AdjustAccountBalance(ctx context.Context, userID, id string, delta decimal.Decimal) error {
	a, err := r.GetAccount(ctx, userID, id)
	if err != nil {
		return err
	}
	a.Balance = a.Balance.Add(delta)
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET balance = ? WHERE id = ? AND user_id = ?`,
		a.Balance.String(), id, userID)
	if err != nil {
		return fmt.Errorf("adjust account balance: %w", err)
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (core.Account, error) {
	var a core.Account
	var accType, balance string
	var createdAt int64
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &accType, &balance, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.Type = core.AccountType(accType)
	a.Balance, err = parseAmount(balance)
	if err != nil {
		return core.Account{}, err
	}
	a.CreatedAt = time.Unix(createdAt, 0)
	return a, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
