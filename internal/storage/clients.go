package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"finanzas/internal/core"
)

// ClientRecord is a client joined with its invoice count.
type ClientRecord struct {
	core.Client
	InvoiceCount int
}

func (r *Repository) CreateClient(ctx context.Context, c core.Client) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (id, user_id, name, email, company, phone, notes, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Email, c.Company, c.Phone, c.Notes, c.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

func (r *Repository) GetClient(ctx context.Context, userID, id string) (core.Client, error) {
	var c core.Client
	var createdAt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, email, company, phone, notes, created_at FROM clients WHERE id = ? AND user_id = ?`,
		id, userID).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Company, &c.Phone, &c.Notes, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Client{}, ErrNotFound
	}
	if err != nil {
		return core.Client{}, fmt.Errorf("scan client: %w", err)
	}
	c.CreatedAt = time.Unix(createdAt, 0)
	return c, nil
}

func (r *Repository) ListClients(ctx context.Context, userID string) ([]ClientRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.user_id, c.name, c.email, c.company, c.phone, c.notes, c.created_at,
		        (SELECT COUNT(*) FROM invoices i WHERE i.client_id = c.id)
		 FROM clients c
		 WHERE c.user_id = ?
		 ORDER BY c.name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	records := []ClientRecord{}
	for rows.Next() {
		var rec ClientRecord
		var createdAt int64
		err := rows.Scan(&rec.ID, &rec.UserID, &rec.Name, &rec.Email, &rec.Company, &rec.Phone,
			&rec.Notes, &createdAt, &rec.InvoiceCount)
		if err != nil {
			return nil, fmt.Errorf("scan client record: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *Repository) UpdateClient(ctx context.Context, c core.Client) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE clients SET name = ?, email = ?, company = ?, phone = ?, notes = ? WHERE id = ? AND user_id = ?`,
		c.Name, c.Email, c.Company, c.Phone, c.Notes, c.ID, c.UserID)
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	return requireAffected(res)
}

// DeleteClient removes the client; invoices cascade.
func (r *Repository) DeleteClient(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	return requireAffected(res)
}
