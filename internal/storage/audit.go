package storage

import (
	"context"
	"fmt"
	"time"
)

// AuditEntry is one row of the append-only audit trail.
type AuditEntry struct {
	ID        string
	UserID    string
	Action    string
	Entity    string
	EntityID  string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

func (r *Repository) CreateAuditEntry(ctx context.Context, e AuditEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, user_id, action, entity, entity_id, ip_address, user_agent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Action, e.Entity, e.EntityID, e.IPAddress, e.UserAgent, e.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
