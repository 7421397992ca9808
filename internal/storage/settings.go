package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"finanzas/internal/core"
)

// GetOrCreateSettings returns the user's settings, inserting the defaults the
// first time they are requested.
func (r *Repository) GetOrCreateSettings(ctx context.Context, userID string) (core.UserSettings, error) {
	s, err := r.getSettings(ctx, userID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return core.UserSettings{}, err
	}

	now := time.Now()
	s = core.UserSettings{UserID: userID, Language: "es", Currency: "EUR", UpdatedAt: now}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, language, currency, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		s.UserID, s.Language, s.Currency, now.Unix())
	if err != nil {
		return core.UserSettings{}, fmt.Errorf("insert default settings: %w", err)
	}
	return r.getSettings(ctx, userID)
}

func (r *Repository) getSettings(ctx context.Context, userID string) (core.UserSettings, error) {
	var s core.UserSettings
	var updatedAt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, language, currency, updated_at FROM user_settings WHERE user_id = ?`, userID).
		Scan(&s.UserID, &s.Language, &s.Currency, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserSettings{}, ErrNotFound
	}
	if err != nil {
		return core.UserSettings{}, fmt.Errorf("scan settings: %w", err)
	}
	s.UpdatedAt = time.Unix(updatedAt, 0)
	return s, nil
}

func (r *Repository) UpsertSettings(ctx context.Context, s core.UserSettings) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, language, currency, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET language = excluded.language, currency = excluded.currency, updated_at = excluded.updated_at`,
		s.UserID, s.Language, s.Currency, s.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}
