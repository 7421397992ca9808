package storage

import (
	"context"
	"database/sql"
	"fmt"

	"finanzas/internal/core"
)

func (r *Repository) CreateFeedback(ctx context.Context, f core.Feedback) error {
	userID := sql.NullString{String: f.UserID, Valid: f.UserID != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO feedback (id, user_id, rating, message, url, user_agent, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, userID, f.Rating, f.Message, f.URL, f.UserAgent, f.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}
